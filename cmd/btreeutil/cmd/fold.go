package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/freyjadb/btreeengine/pkg/btree"
)

var foldCmd = &cobra.Command{
	Use:   "fold [low] [high]",
	Short: "Print every key-value pair in [low, high] (unbounded above if high is omitted)",
	Args:  cobra.RangeArgs(0, 2),
	Run: func(cmd *cobra.Command, args []string) {
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

		keys := [][]byte{{}}
		if len(args) > 0 {
			keys[0] = []byte(args[0])
		}
		if len(args) > 1 {
			keys = append(keys, []byte(args[1]))
		}

		err = instrumentOp("lookup", func() error {
			return btree.Lookup(tf, root, keys, btree.LookupOptions{
				Fold: true,
				Fetch: func(k, v []byte) error {
					fmt.Printf("%s=%s\n", k, v)
					return nil
				},
			})
		})
		if err != nil {
			fatalf("fold: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(foldCmd)
}
