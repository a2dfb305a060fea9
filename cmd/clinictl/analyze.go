package main

import (
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bryanwahyu/clinisense/internal/application"
	apppatients "github.com/bryanwahyu/clinisense/internal/application/patients"
	"github.com/bryanwahyu/clinisense/internal/config"
	"github.com/bryanwahyu/clinisense/internal/domain/doctors"
	"github.com/bryanwahyu/clinisense/internal/infra/upstream"
	"github.com/bryanwahyu/clinisense/internal/logger"
	"github.com/bryanwahyu/clinisense/internal/state"
)

func newAnalyzeCmd() *cobra.Command {
	var (
		patient  string
		maxItems int
		verbose  bool
	)
	cmd := &cobra.Command{
		Use:   "analyze <profile>",
		Short: "Run one analysis against the configured analysis service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			level := "warn"
			if verbose {
				level = "debug"
			}
			log, err := logger.New(level, "console", "stderr")
			if err != nil {
				return err
			}
			defer log.Sync()

			if maxItems <= 0 {
				maxItems = cfg.Upstream.MaxItems
			}
			svc := &apppatients.Service{
				State:    state.New(state.NewMemorySessions(), state.NewMemoryCache()),
				Analyzer: upstream.NewAnalyzer(cfg.Upstream.AnalyzeURL, &http.Client{}),
				Clock:    application.SystemClock{},
				Log:      log,
				MaxItems: maxItems,
				Location: cfg.Location(),
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			res, err := svc.Analyze(ctx, doctors.Anonymous("clinictl"), apppatients.AnalyzeCommand{PatientName: patient, Profile: args[0]})
			if err != nil {
				return err
			}
			log.Debug("analysis done", zap.String("record_id", string(res.Record.ID)))
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&patient, "patient", "", "patient name (required)")
	cmd.Flags().IntVar(&maxItems, "max-items", 0, "number of posts to analyse (default from config)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging on stderr")
	_ = cmd.MarkFlagRequired("patient")
	return cmd
}

