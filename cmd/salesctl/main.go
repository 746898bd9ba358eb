// Command salesctl loads a sales CSV once and exports the summary tables.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"salesboard/internal/config"
	"salesboard/internal/engine"
	"salesboard/internal/export"
	"salesboard/internal/models"
	"salesboard/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "salesctl:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "path to a TOML config file")
		source     = flag.String("source", "", "override data.source")
		format     = flag.String("format", "xlsx", "output format: xlsx or sqlite")
		out        = flag.String("out", "", "output path (defaults to salesboard.<format ext>)")
		current    = flag.String("current", "", "current period for the comparison sheet")
		reference  = flag.String("reference", "", "reference period for the comparison sheet")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *source != "" {
		cfg.Data.Source = *source
	}
	logger := telemetry.NewLogger(cfg.Log, os.Stderr)
	ctx := logger.WithContext(context.Background())

	src, err := engine.NewSource(ctx, cfg.Data.Source, engine.S3Options{
		Region:          cfg.Data.S3.Region,
		Endpoint:        cfg.Data.S3.Endpoint,
		PathStyle:       cfg.Data.S3.PathStyle,
		AccessKeyID:     cfg.Data.S3.AccessKeyID,
		SecretAccessKey: cfg.Data.S3.SecretAccessKey,
		SessionToken:    cfg.Data.S3.SessionToken,
	})
	if err != nil {
		return err
	}
	d, err := engine.Build(ctx, src)
	if err != nil {
		return err
	}

	switch *format {
	case "xlsx":
		path := *out
		if path == "" {
			path = "salesboard.xlsx"
		}
		cmp, err := compare(d, *current, *reference, cfg.Dashboard.TopN)
		if err != nil {
			return err
		}
		return writeWorkbook(path, d, cmp, logger)
	case "sqlite":
		path := *out
		if path == "" {
			path = "salesboard.db"
		}
		if err := export.WriteSQLite(ctx, path, d); err != nil {
			return err
		}
		logger.Info().Str("path", path).Msg("sqlite snapshot written")
		return nil
	}
	return fmt.Errorf("unknown format %q", *format)
}

// compare returns nil when the dataset has a single period and no explicit
// reference was given.
func compare(d *engine.Dashboard, current, reference string, n int) (*models.Comparison, error) {
	if current == "" {
		current = d.DefaultCurrent()
	}
	if reference == "" {
		ref, err := d.DefaultReference(current)
		if err != nil {
			if len(d.Periods()) == 1 {
				return nil, nil
			}
			return nil, err
		}
		reference = ref
	}
	return d.Compare(current, reference, n)
}

func writeWorkbook(path string, d *engine.Dashboard, cmp *models.Comparison, logger zerolog.Logger) (retErr error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && retErr == nil {
			retErr = cerr
		}
	}()
	if err := export.WriteWorkbook(f, d, cmp); err != nil {
		return err
	}
	logger.Info().Str("path", path).Bool("comparison", cmp != nil).Msg("workbook written")
	return nil
}
