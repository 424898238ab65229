package main

import (
	"github.com/spf13/cobra"

	"github.com/mikey-austin/kodi_playlists/internal/core"
)

func normalizeCommand() *cobra.Command {
	var write bool

	cmd := &cobra.Command{
		Use:         "normalize <card-file>",
		Short:       "Show the normalized entries of a card file",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{offline: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := fromContext(cmd)
			if err != nil {
				return err
			}
			result, err := core.NormalizeFile(app.fs, args[0], write)
			if err != nil {
				return err
			}
			return app.printer.Print(result)
		},
	}
	cmd.Flags().BoolVarP(&write, "write", "w", false, "rewrite the file in canonical form")
	return cmd
}

func requestCommand() *cobra.Command {
	var entity string

	cmd := &cobra.Command{
		Use:         "request <card-file> <index>",
		Short:       "Build the request an entry of a card file would send",
		Args:        cobra.ExactArgs(2),
		Annotations: map[string]string{offline: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := fromContext(cmd)
			if err != nil {
				return err
			}
			index, err := parseIndex(args[1])
			if err != nil {
				return err
			}
			result, err := core.RequestFile(app.fs, args[0], index, entity)
			if err != nil {
				return err
			}
			return app.printer.Print(result)
		},
	}
	cmd.Flags().StringVarP(&entity, "entity", "e", "", "override the card entity")
	return cmd
}
