package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/iconidentify/dispatcher/internal/archive"
	"github.com/iconidentify/dispatcher/internal/config"
	"github.com/iconidentify/dispatcher/internal/domain"
	"github.com/iconidentify/dispatcher/internal/preview"
	"github.com/iconidentify/dispatcher/internal/repository"
	"github.com/iconidentify/dispatcher/internal/service"
	"github.com/iconidentify/dispatcher/internal/sink"
)

// session is a loaded config plus the workspace built from a plan.
type session struct {
	cfg    *config.Config
	ws     domain.Workspace
	logger *slog.Logger
}

func openSession(configPath, planPath string, stderr io.Writer) (*session, error) {
	if planPath == "" {
		return nil, errors.New("--plan is required")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	plan, err := loadPlan(planPath)
	if err != nil {
		return nil, err
	}
	ws, err := buildWorkspace(plan, filepath.Dir(planPath), cfg.Workspace.PlaceholderName)
	if err != nil {
		return nil, err
	}

	var logger *slog.Logger
	if f, ok := stderr.(*os.File); ok {
		logger = cfg.Log.NewLogger(f)
	} else {
		logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))
	}
	return &session{cfg: cfg, ws: ws, logger: logger}, nil
}

func newPlanCommand(configFlag *string) *cobra.Command {
	var planFlag string

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show how files will be named in the archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(*configFlag, planFlag, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			entries := archive.Plan(s.ws.Folders(), s.cfg.Workspace.FallbackExtension)
			fmt.Fprintln(cmd.OutOrStdout(), renderPlan(entries))
			return nil
		},
	}
	cmd.Flags().StringVarP(&planFlag, "plan", "p", "", "Plan file (YAML or TOML)")
	return cmd
}

func newExportCommand(configFlag *string) *cobra.Command {
	var planFlag, outputFlag string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Build the archive and save it",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(*configFlag, planFlag, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if outputFlag != "" {
				s.cfg.Sink.Kind = config.SinkDesktop
				s.cfg.Sink.DesktopDir = outputFlag
			}

			out, err := sink.New(cmd.Context(), s.cfg.Sink, s.logger)
			if err != nil {
				return err
			}
			history, err := repository.NewExportHistory(s.cfg.History.SQLitePath, s.cfg.History.Size)
			if err != nil {
				return err
			}
			defer history.Close()

			workspace := service.NewWorkspaceService(s.ws, preview.NewRegistry(), s.logger)
			defer workspace.Close()
			exports := service.NewExportService(
				workspace,
				archive.NewBuilder(s.cfg.Workspace.FallbackExtension),
				out,
				history,
				s.logger,
			)

			fmt.Fprintln(cmd.OutOrStdout(), renderPlan(exports.Plan()))

			result, err := exports.Export(cmd.Context())
			if err != nil {
				return err
			}
			if !result.Success {
				return fmt.Errorf("export failed: %s", result.Error)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %d files (%s) to %s\n",
				result.Files, humanize.Bytes(uint64(result.Bytes)), result.Path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&planFlag, "plan", "p", "", "Plan file (YAML or TOML)")
	cmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Save into this directory instead of the configured sink")
	return cmd
}

func renderPlan(entries []domain.ArchiveEntry) string {
	if len(entries) == 0 {
		return "No files to export"
	}
	rows := make([][]string, 0, len(entries))
	var total int64
	for _, e := range entries {
		rows = append(rows, []string{e.Path, e.OriginalName, humanize.Bytes(uint64(e.Size))})
		total += e.Size
	}
	table := renderTable(
		[]string{"Archive path", "Original", "Size"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight},
	)
	return fmt.Sprintf("%s\n%d files, %s", table, len(entries), humanize.Bytes(uint64(total)))
}
