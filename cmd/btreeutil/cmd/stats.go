package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the current root's offset, subtree size, and generation",
	Run: func(cmd *cobra.Command, args []string) {
		rs, err := openRootStore()
		if err != nil {
			fatalf("open root catalog: %v", err)
		}
		defer rs.Close()

		root, gen, err := rs.Latest(treeName)
		if err != nil {
			fatalf("load root: %v", err)
		}
		if root == nil {
			fmt.Printf("tree %q is empty\n", treeName)
			return
		}
		fmt.Printf("tree=%s generation=%s offset=%d subtree_size=%d reduce_len=%d\n",
			treeName, gen.String(), root.Offset, root.SubtreeSize, len(root.Reduce))
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
