package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list [project-id]",
	Short: "List the items of a project",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		projectID, err := uuid.Parse(args[0])
		if err != nil {
			fatal("Invalid project ID: %v", err)
		}

		ctx := context.Background()
		svc, svcs := openService(ctx)
		defer svcs.Close()

		items, err := svc.List(ctx, projectID)
		if err != nil {
			fatal("Error listing items: %v", err)
		}

		if jsonOut {
			printJSON(items)
			return
		}
		for _, item := range items {
			fmt.Printf("%s  %-40s %10d  %s\n", item.ID, item.Name, item.SizeBytes, item.UpdatedAt.Format("2006-01-02 15:04"))
		}
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
