package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/bryanwahyu/clinisense/internal/application/projection"
	"github.com/bryanwahyu/clinisense/internal/domain/patients"
)

func newProjectCmd() *cobra.Command {
	var tz string
	cmd := &cobra.Command{
		Use:   "project <payload.json|->",
		Short: "Print the chart projection of an analysis payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := time.LoadLocation(tz)
			if err != nil {
				return fmt.Errorf("timezone: %w", err)
			}

			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}

			var payload patients.AnalysisPayload
			if err := json.NewDecoder(r).Decode(&payload); err != nil {
				return fmt.Errorf("decoding payload: %w", err)
			}
			if err := payload.Validate(); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), projection.Projector{Location: loc}.Project(&payload))
		},
	}
	cmd.Flags().StringVar(&tz, "tz", "UTC", "timezone for formatted dates")
	return cmd
}
