package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "canvas",
	Short: "content graph share tool",
	Example: `canvas share create -u <uid> -e <entity-id> -t <entity-type> --allow-duplication
canvas share list -u <uid>
canvas share data -s <share-id>
canvas share delete -u <uid> -s <share-id>
canvas share duplicate -u <uid> -s <share-id> -p <project-id>
canvas worker
canvas db migrate`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(shareCmd)
	rootCmd.AddCommand(workerCommand())
	rootCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})

	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	cobra.EnableCommandSorting = false
}
