package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tendant/content-lineage/pkg/lineage"
)

var restoreCmd = &cobra.Command{
	Use:   "restore [item-id] [version]",
	Short: "Make a historical version current again",
	Long: `Restore preserves the current content as a new version, then points the
item at a copy of the chosen version's content.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := uuid.Parse(args[0])
		if err != nil {
			fatal("Invalid item ID: %v", err)
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			fatal("Invalid version number: %v", err)
		}

		ctx := context.Background()
		svc, svcs := openService(ctx)
		defer svcs.Close()

		item, err := svc.Restore(ctx, lineage.RestoreRequest{ItemID: id, VersionNumber: n, Author: actor})
		if err != nil {
			fatal("Error restoring version: %v", err)
		}

		if jsonOut {
			printJSON(item)
			return
		}
		fmt.Printf("Restored %s to version %d (%d bytes)\n", item.ID, n, item.SizeBytes)
	},
}

func init() {
	rootCmd.AddCommand(restoreCmd)
}
