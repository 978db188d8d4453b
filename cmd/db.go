package cmd

import (
	"github.com/emrgen/canvas/internal/config"
	"github.com/emrgen/canvas/internal/model"
	"github.com/spf13/cobra"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "db commands",
}

func init() {
	dbCmd.AddCommand(Migrate())
}

func Migrate() *cobra.Command {
	command := &cobra.Command{
		Use:   "migrate",
		Short: "Migrate the database",
		Run: func(cmd *cobra.Command, args []string) {
			db, err := config.GetDb(config.Load())
			if err != nil {
				panic(err)
			}
			if err := model.Migrate(db); err != nil {
				panic(err)
			}
		},
	}

	return command
}
