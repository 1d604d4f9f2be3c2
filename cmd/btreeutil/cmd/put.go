package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/freyjadb/btreeengine/pkg/btree"
	"github.com/freyjadb/btreeengine/pkg/rootstore"
)

var putCmd = &cobra.Command{
	Use:   "put <key> <value>",
	Short: "Insert or overwrite a key-value pair",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		key, value := []byte(args[0]), []byte(args[1])

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

		var newRoot *btree.Pointer
		err = instrumentOp("modify", func() error {
			newRoot, err = btree.Modify(tf, root, []btree.Action{
				{Type: btree.ActionInsert, Key: key, Value: value},
			}, btree.ModifyOptions{OnFlush: onFlush})
			return err
		})
		if err != nil {
			fatalf("modify: %v", err)
		}

		gen := rootstore.NewGeneration()
		if err := rs.Publish(treeName, gen, newRoot); err != nil {
			fatalf("publish root: %v", err)
		}
		fmt.Printf("put %s=%s (generation %s)\n", args[0], args[1], gen.String())
	},
}

func init() {
	rootCmd.AddCommand(putCmd)
}
