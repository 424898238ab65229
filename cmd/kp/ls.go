package main

import (
	"context"

	"github.com/spf13/cobra"
)

func lsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List cards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := fromContext(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			result, err := app.service.ListCards(ctx)
			if err != nil {
				return err
			}
			return app.printer.Print(result)
		},
	}
}
