package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"
	"time"

	"github.com/phrazzld/scry-import/internal/app"
	"github.com/phrazzld/scry-import/internal/config"
	"github.com/phrazzld/scry-import/internal/platform/logger"
	"github.com/phrazzld/scry-import/internal/service"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 15 * time.Second

type runOptions struct {
	dir      string
	outDir   string
	migrate  bool
	noExport bool
}

func newRunCommand() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Analyse every image in a directory and export the exercises",
		Long: "Analyse every image in a directory and export the exercises.\n\n" +
			"Press Ctrl+C once to stop after the current item, twice to abort.\n" +
			"Type s and Enter to skip a rate-limit wait.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.dir, "dir", "d", "", "directory of worksheet images")
	cmd.Flags().StringVarP(&opts.outDir, "out", "o", "", "export directory (overrides SCRY_EXPORT_DIR)")
	cmd.Flags().BoolVar(&opts.migrate, "migrate", false, "apply database migrations before running")
	cmd.Flags().BoolVar(&opts.noExport, "no-export", false, "skip exporting collected exercises")
	_ = cmd.MarkFlagRequired("dir")

	return cmd
}

func runImport(ctx context.Context, in io.Reader, out, errOut io.Writer, opts runOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if opts.outDir != "" {
		cfg.Export.Dir = opts.outDir
	}

	log := logger.New(errOut, cfg.Server.LogLevel, logger.FormatText)
	slog.SetDefault(log)

	payloads, err := loadPayloads(opts.dir)
	if err != nil {
		return err
	}
	if len(payloads) == 0 {
		return fmt.Errorf("no images found in %s", opts.dir)
	}

	appOpts := []app.Option{app.WithEventHandler(newProgressPrinter(out))}
	if opts.migrate {
		appOpts = append(appOpts, app.WithMigrations())
	}
	a, err := app.New(ctx, cfg, log, appOpts...)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			log.Error("shutdown failed", "error", err)
		}
	}()

	svc := a.Service
	submitted, err := svc.Submit(ctx, payloads)
	if err != nil {
		return fmt.Errorf("submit images: %w", err)
	}
	fmt.Fprintf(out, "queued %d of %d images\n", len(submitted.Accepted), len(payloads))

	if err := svc.StartRun(ctx, false); err != nil {
		return fmt.Errorf("start run: %w", err)
	}

	watchCtx, stopWatching := context.WithCancel(ctx)
	defer stopWatching()

	signals := make(chan os.Signal, 2)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signals)
	go watchSignals(watchCtx, signals, svc, out)
	go watchInput(watchCtx, in, svc, out)

	res, err := svc.Wait(ctx)
	stopWatching()
	if err != nil {
		return fmt.Errorf("wait for run: %w", err)
	}

	fmt.Fprintln(out, renderTable(
		[]string{"File", "Status", "Retries", "Detail"},
		buildItemRows(svc.Items()),
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft}))
	fmt.Fprintln(out, renderTable(
		[]string{"Run", "Value"},
		buildRunRows(res),
		[]columnAlignment{alignLeft, alignRight}))

	if opts.noExport {
		return nil
	}
	return exportResults(ctx, svc, out)
}

type exporter interface {
	Export(ctx context.Context) (service.ExportResult, error)
}

func exportResults(ctx context.Context, svc exporter, out io.Writer) error {
	res, err := svc.Export(ctx)
	if errors.Is(err, service.ErrNothingToExport) {
		fmt.Fprintln(out, "nothing new to export")
		return nil
	}
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}

	names := make([]string, 0, len(res.Destinations))
	for name := range res.Destinations {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		rows = append(rows, []string{name, strconv.Itoa(res.Destinations[name])})
	}
	fmt.Fprintln(out, renderTable([]string{"Destination", "Exercises"}, rows, []columnAlignment{alignLeft, alignRight}))
	fmt.Fprintf(out, "exported %d exercises\n", res.Exported)
	return nil
}
