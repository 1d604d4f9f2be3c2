package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/freyjadb/btreeengine/pkg/btree"
)

var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Fetch the value stored for a key",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		key := []byte(args[0])

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
			fatalf("tree %q is empty", treeName)
		}

		found := false
		err = instrumentOp("lookup", func() error {
			return btree.Lookup(tf, root, [][]byte{key}, btree.LookupOptions{
				Fetch: func(k, v []byte) error {
					found = true
					fmt.Printf("%s\n", v)
					return nil
				},
			})
		})
		if err != nil {
			fatalf("lookup: %v", err)
		}
		if !found {
			fatalf("key %q not found", args[0])
		}
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
}
