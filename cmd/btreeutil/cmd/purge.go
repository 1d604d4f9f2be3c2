package cmd

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/freyjadb/btreeengine/pkg/btree"
	"github.com/freyjadb/btreeengine/pkg/rootstore"
)

var purgeBelow string

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Drop every key strictly below --below from the tree",
	Run: func(cmd *cobra.Command, args []string) {
		if purgeBelow == "" {
			fatalf("--below is required")
		}
		bound := []byte(purgeBelow)

		tf, err := openTreeFile()
		if err != nil {
			fatalf("open tree_file: %v", err)
		}
		defer tf.Close()

		rs, err := openRootStore()
		if err != nil {
			fatalf("open root catalog: %v", err)
		}
		defer rs.Close()

		root, _, err := rs.Latest(treeName)
		if err != nil {
			fatalf("load root: %v", err)
		}
		if root == nil {
			return
		}

		dropped := 0
		var newRoot *btree.Pointer
		err = instrumentOp("purge", func() error {
			newRoot, err = btree.Purge(tf, root, btree.PurgeOptions{
				OnFlush: onFlush,
				PurgeKV: func(key, value []byte, ctx any) (btree.PurgeDecision, error) {
					if bytes.Compare(key, bound) < 0 {
						dropped++
						return btree.PurgeItem, nil
					}
					return btree.PurgeKeep, nil
				},
			})
			return err
		})
		if err != nil {
			fatalf("purge: %v", err)
		}

		gen := rootstore.NewGeneration()
		if err := rs.Publish(treeName, gen, newRoot); err != nil {
			fatalf("publish root: %v", err)
		}
		fmt.Printf("purged %d keys below %q (generation %s)\n", dropped, purgeBelow, gen.String())
	},
}

func init() {
	rootCmd.AddCommand(purgeCmd)
	purgeCmd.Flags().StringVar(&purgeBelow, "below", "", "drop every key strictly less than this bound")
}
