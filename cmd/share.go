package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/emrgen/canvas/internal/config"
	"github.com/emrgen/canvas/internal/model"
	"github.com/emrgen/canvas/internal/service"
	"github.com/emrgen/canvas/internal/store"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var shareCmd = &cobra.Command{
	Use:   "share",
	Short: "share commands",
}

func init() {
	shareCmd.AddCommand(createShareCommand())
	shareCmd.AddCommand(listSharesCommand())
	shareCmd.AddCommand(shareDataCommand())
	shareCmd.AddCommand(deleteShareCommand())
	shareCmd.AddCommand(duplicateShareCommand())
}

func createShareCommand() *cobra.Command {
	var uid string
	var entityID string
	var entityType string
	var allowDuplication bool
	var title string

	command := &cobra.Command{
		Use:   "create",
		Short: "publish an entity",
		Run: func(cmd *cobra.Command, args []string) {
			if uid == "" || entityID == "" || entityType == "" {
				color.Red("missing: --uid, --entity-id and --entity-type")
				return
			}

			shares, _, _, err := buildService(config.Load())
			if err != nil {
				color.Red("connect: %v", err)
				return
			}

			share, err := shares.CreateShare(context.Background(), uid, service.EntityRef{
				EntityID:   entityID,
				EntityType: model.EntityType(entityType),
			}, service.PublishOptions{
				AllowDuplication: allowDuplication,
				Title:            title,
			})
			if err != nil {
				color.Red("create share: %v", err)
				return
			}

			color.Green("share created: %s", share.ID)
		},
	}

	command.Flags().StringVarP(&uid, "uid", "u", "", "user id")
	command.Flags().StringVarP(&entityID, "entity-id", "e", "", "entity id")
	command.Flags().StringVarP(&entityType, "entity-type", "t", "", "entity type")
	command.Flags().BoolVar(&allowDuplication, "allow-duplication", false, "allow duplication")
	command.Flags().StringVar(&title, "title", "", "share title")

	return command
}

func listSharesCommand() *cobra.Command {
	var uid string
	var entityType string

	command := &cobra.Command{
		Use:   "list",
		Short: "list shares",
		Run: func(cmd *cobra.Command, args []string) {
			if uid == "" {
				color.Red("missing: --uid")
				return
			}

			shares, _, _, err := buildService(config.Load())
			if err != nil {
				color.Red("connect: %v", err)
				return
			}

			items, err := shares.ListShares(context.Background(), uid, store.ShareFilter{
				EntityType: model.EntityType(entityType),
			})
			if err != nil {
				color.Red("list shares: %v", err)
				return
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Share ID", "Entity ID", "Type", "Title", "Duplicable"})
			for _, share := range items {
				table.Append([]string{
					share.ID,
					share.EntityID,
					share.EntityType,
					share.Title,
					fmt.Sprintf("%v", share.AllowDuplication),
				})
			}
			table.Render()
		},
	}

	command.Flags().StringVarP(&uid, "uid", "u", "", "user id")
	command.Flags().StringVarP(&entityType, "entity-type", "t", "", "filter by entity type")

	return command
}

func shareDataCommand() *cobra.Command {
	var shareID string

	command := &cobra.Command{
		Use:   "data",
		Short: "print the public payload of a share",
		Run: func(cmd *cobra.Command, args []string) {
			if shareID == "" {
				color.Red("missing: --share-id")
				return
			}

			shares, _, _, err := buildService(config.Load())
			if err != nil {
				color.Red("connect: %v", err)
				return
			}

			data, err := shares.GetShareData(context.Background(), shareID)
			if err != nil {
				color.Red("get share data: %v", err)
				return
			}

			fmt.Println(string(data))
		},
	}

	command.Flags().StringVarP(&shareID, "share-id", "s", "", "share id")

	return command
}

func deleteShareCommand() *cobra.Command {
	var uid string
	var shareID string

	command := &cobra.Command{
		Use:   "delete",
		Short: "unpublish a share and its children",
		Run: func(cmd *cobra.Command, args []string) {
			if uid == "" || shareID == "" {
				color.Red("missing: --uid and --share-id")
				return
			}

			shares, _, _, err := buildService(config.Load())
			if err != nil {
				color.Red("connect: %v", err)
				return
			}

			if err := shares.DeleteShare(context.Background(), uid, shareID); err != nil {
				color.Red("delete share: %v", err)
				return
			}

			color.Green("share deleted: %s", shareID)
		},
	}

	command.Flags().StringVarP(&uid, "uid", "u", "", "user id")
	command.Flags().StringVarP(&shareID, "share-id", "s", "", "share id")

	return command
}

func duplicateShareCommand() *cobra.Command {
	var uid string
	var shareID string
	var projectID string

	command := &cobra.Command{
		Use:   "duplicate",
		Short: "copy a share into your own graph",
		Run: func(cmd *cobra.Command, args []string) {
			if uid == "" || shareID == "" {
				color.Red("missing: --uid and --share-id")
				return
			}

			shares, _, _, err := buildService(config.Load())
			if err != nil {
				color.Red("connect: %v", err)
				return
			}

			result, err := shares.DuplicateShare(context.Background(), uid, shareID, service.DuplicateTarget{
				ProjectID: projectID,
			})
			if err != nil {
				color.Red("duplicate share: %v", err)
				return
			}

			color.Green("duplicated into %s (%s)", result.EntityID, result.EntityType)
			for _, outcome := range result.Outcomes {
				if outcome.Status == service.OutcomeSkipped {
					color.Yellow("skipped %s (%s): %s", outcome.EntityID, outcome.EntityType, outcome.Reason)
				}
			}
		},
	}

	command.Flags().StringVarP(&uid, "uid", "u", "", "user id")
	command.Flags().StringVarP(&shareID, "share-id", "s", "", "share id")
	command.Flags().StringVarP(&projectID, "project-id", "p", "", "target project id")

	return command
}
