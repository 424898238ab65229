package main

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mikey-austin/kodi_playlists/internal/core"
)

// cardCommand builds a command acting on one card. The card selector is
// the --card flag so positional arguments stay free for the command.
func cardCommand(use, short string, args cobra.PositionalArgs, run func(ctx context.Context, app *app, card string, args []string) (any, error)) *cobra.Command {
	var card string

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := fromContext(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			result, err := run(ctx, app, card, args)
			if err != nil {
				return err
			}
			if result == nil || app.quiet {
				return nil
			}
			return app.printer.Print(result)
		},
	}
	cmd.Flags().StringVarP(&card, "card", "c", "", "card selector (node id, alias, id or name)")
	return cmd
}

func entriesCommand() *cobra.Command {
	return cardCommand("entries", "List the entries of a card", cobra.NoArgs,
		func(ctx context.Context, app *app, card string, _ []string) (any, error) {
			return app.service.Entries(ctx, card)
		})
}

func playCommand() *cobra.Command {
	return cardCommand("play <index|name>", "Start an entry", cobra.ExactArgs(1),
		func(ctx context.Context, app *app, card string, args []string) (any, error) {
			return app.service.Play(ctx, card, args[0])
		})
}

func previewCommand() *cobra.Command {
	return cardCommand("preview <index>", "Show the request an entry would send", cobra.ExactArgs(1),
		func(ctx context.Context, app *app, card string, args []string) (any, error) {
			index, err := parseIndex(args[0])
			if err != nil {
				return nil, err
			}
			return app.service.Preview(ctx, card, index)
		})
}

func systemCommand() *cobra.Command {
	return cardCommand("system <reboot|shutdown>", "Send a system action to Kodi", cobra.ExactArgs(1),
		func(ctx context.Context, app *app, card string, args []string) (any, error) {
			return app.service.System(ctx, card, args[0])
		})
}

func debugCommand() *cobra.Command {
	return cardCommand("debug", "Show the recent request history", cobra.NoArgs,
		func(ctx context.Context, app *app, card string, _ []string) (any, error) {
			return app.service.Debug(ctx, card)
		})
}

func statusCommand() *cobra.Command {
	return cardCommand("status", "Show card state", cobra.NoArgs,
		func(ctx context.Context, app *app, card string, _ []string) (any, error) {
			return app.service.Status(ctx, card)
		})
}

func reloadCommand() *cobra.Command {
	return cardCommand("reload", "Reload the card file", cobra.NoArgs,
		func(ctx context.Context, app *app, card string, _ []string) (any, error) {
			return app.service.Reload(ctx, card)
		})
}

func parseIndex(arg string) (int, error) {
	index, err := strconv.Atoi(arg)
	if err != nil || index < 0 {
		return 0, core.UsageError("index must be a non-negative integer")
	}
	return index, nil
}
