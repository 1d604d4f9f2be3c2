/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/freyjadb/btreeengine/pkg/rootstore"
	"github.com/freyjadb/btreeengine/pkg/treefile"
)

var (
	dataDir  string
	treeName string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "btreeutil",
	Short: "Inspect and drive a standalone B+tree engine instance",
	Long: `btreeutil is a command-line front end for the copy-on-write,
reduce-annotated B+tree engine. It opens a tree_file and a root catalog
under --data-dir and exposes put/get/fold/purge/stats subcommands.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := os.MkdirAll(dataDir, 0750); err != nil {
			return err
		}
		maybeStartMetrics()
		return nil
	},
}

// Execute adds all child commands to the root command and runs it. It is
// called once from main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&dataDir, "data-dir", "d", "./data", "directory holding the tree_file and root catalog")
	rootCmd.PersistentFlags().StringVarP(&treeName, "tree", "t", "default", "name of the tree within the root catalog")
}

// openTreeFile opens the append-only backing file under dataDir.
func openTreeFile() (*treefile.File, error) {
	return treefile.Open(treefile.Config{FilePath: filepath.Join(dataDir, "tree.dat")})
}

// openRootStore opens the root pointer catalog under dataDir.
func openRootStore() (*rootstore.Store, error) {
	return rootstore.Open(filepath.Join(dataDir, "roots"))
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
