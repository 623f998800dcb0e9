package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete [item-id]",
	Short: "Delete an item with all of its versions and content",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := uuid.Parse(args[0])
		if err != nil {
			fatal("Invalid item ID: %v", err)
		}

		ctx := context.Background()
		svc, svcs := openService(ctx)
		defer svcs.Close()

		if err := svc.Delete(ctx, id); err != nil {
			fatal("Error deleting item: %v", err)
		}
		fmt.Printf("Item deleted: %s\n", id)
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
