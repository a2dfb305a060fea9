package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bryanwahyu/clinisense/internal/application/handles"
)

func newNormalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "normalize <input>",
		Short: "Turn a profile URL or @handle into a bare handle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			handle, err := handles.Normalize(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), handle)
			return nil
		},
	}
}
