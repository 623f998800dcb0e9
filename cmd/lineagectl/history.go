package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history [item-id]",
	Short: "Show the version history of an item, newest first",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := uuid.Parse(args[0])
		if err != nil {
			fatal("Invalid item ID: %v", err)
		}

		ctx := context.Background()
		svc, svcs := openService(ctx)
		defer svcs.Close()

		entries, err := svc.History(ctx, id)
		if err != nil {
			fatal("Error reading history: %v", err)
		}

		if jsonOut {
			printJSON(entries)
			return
		}
		if len(entries) == 0 {
			fmt.Println("No versions")
			return
		}
		for _, e := range entries {
			fmt.Printf("v%-4d %s  %-24s %10d  %s\n",
				e.VersionNumber, e.CreatedAt.Format("2006-01-02 15:04"), e.Author, e.SizeBytes, e.ChangeNote)
		}
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
}
