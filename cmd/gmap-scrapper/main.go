package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Maarij07/gmap-scrapper/internal/config"
	"github.com/Maarij07/gmap-scrapper/internal/control"
	"github.com/Maarij07/gmap-scrapper/internal/discover"
	"github.com/Maarij07/gmap-scrapper/internal/logging"
	"github.com/Maarij07/gmap-scrapper/internal/pipeline"
	"github.com/Maarij07/gmap-scrapper/internal/record"
	"github.com/Maarij07/gmap-scrapper/internal/sink"
	"github.com/Maarij07/gmap-scrapper/internal/snapshot"
	"github.com/Maarij07/gmap-scrapper/internal/surface"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const searchBaseURL = "https://www.google.com/maps/search/"

var (
	configPath string
	region     string
	searchTerm string
	outPath    string
)

func main() {
	root := &cobra.Command{
		Use:           "gmap-scrapper",
		Short:         "Harvest business listings from Google Maps into a tabular sink",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "optional YAML tuning file")

	harvest := &cobra.Command{
		Use:   "harvest",
		Short: "Continuously harvest live search results until interrupted",
		RunE:  runHarvest,
	}
	harvest.Flags().StringVar(&region, "region", "", "region to search in")
	harvest.Flags().StringVar(&searchTerm, "search-term", "", "what to search for")
	_ = harvest.MarkFlagRequired("region")
	_ = harvest.MarkFlagRequired("search-term")

	parse := &cobra.Command{
		Use:   "parse <snapshot.html>",
		Short: "Extract businesses from a captured HTML snapshot",
		Args:  cobra.ExactArgs(1),
		RunE:  runParse,
	}
	parse.Flags().StringVar(&region, "region", "", "region metadata for the records")
	parse.Flags().StringVar(&searchTerm, "search-term", "", "search-term metadata for the records")
	parse.Flags().StringVar(&outPath, "out", "", "CSV destination (defaults to csv_path from config)")

	root.AddCommand(harvest, parse)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func runHarvest(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	writer := sink.NewWriter(store, record.Columns, cfg.AppendsPerMinute, log)
	if err := writer.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("reconcile sink schema: %w", err)
	}

	browser, err := surface.NewBrowser(ctx, cfg.Headless, log)
	if err != nil {
		return err
	}
	defer browser.Close()

	query := fmt.Sprintf("%s in %s", searchTerm, region)
	log.Info("starting harvest", zap.String("query", query))
	if err := browser.Navigate(ctx, searchBaseURL+url.QueryEscape(query)); err != nil {
		return err
	}
	if err := browser.WaitVisible(ctx, `div[role="feed"]`, cfg.ResultsWait); err != nil {
		// Soft: results may still be loading, discovery will find out.
		log.Warn("results container not confirmed, proceeding", zap.Error(err))
	}

	driver := pipeline.NewDriver(browser, writer, region, searchTerm, cfg.DetailWait, cfg.SettleInterval/2, log)
	controller := control.New(control.Config{
		SettleInterval:   cfg.SettleInterval,
		BackoffInterval:  cfg.BackoffInterval,
		BackoffThreshold: cfg.BackoffThreshold,
	}, browser, discover.NewTracker(), driver, log)

	total, err := controller.Run(ctx)
	log.Info("harvest finished", zap.Int("businesses_recorded", total))
	if err != nil {
		return fmt.Errorf("surface lost after %d businesses: %w", total, err)
	}
	return nil
}

func runParse(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	businesses, err := snapshot.ExtractAll(f, log)
	if err != nil {
		return err
	}
	if len(businesses) == 0 {
		log.Warn("no businesses found in snapshot")
		return nil
	}

	dest := outPath
	if dest == "" {
		dest = cfg.CSVPath
	}
	writer := sink.NewWriter(sink.NewCSVStore(dest), record.Columns, 0, log)
	if err := writer.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("reconcile sink schema: %w", err)
	}

	now := time.Now()
	appended := 0
	for _, b := range businesses {
		lead := record.Enrich(b, region, searchTerm, now)
		if err := writer.Append(ctx, lead.Fields()); err != nil {
			log.Error("sink append failed", zap.String("name", b.Name), zap.Error(err))
			continue
		}
		appended++
	}

	logCompleteness(log, businesses)
	log.Info("snapshot export complete",
		zap.Int("extracted", len(businesses)),
		zap.Int("appended", appended),
		zap.String("destination", dest))
	return nil
}

// openStore picks the sink: Sheets when credentials exist, otherwise the
// local CSV fallback.
func openStore(ctx context.Context, cfg config.Config, log *zap.Logger) (sink.Tabular, error) {
	if _, err := os.Stat(cfg.CredentialsPath); err == nil {
		return sink.OpenSheets(ctx, cfg.CredentialsPath, cfg.SpreadsheetName, cfg.WorksheetName, log)
	}
	log.Warn("no Sheets credentials found, writing to local CSV",
		zap.String("credentials", cfg.CredentialsPath),
		zap.String("csv", cfg.CSVPath))
	return sink.NewCSVStore(cfg.CSVPath), nil
}

// logCompleteness reports how many records populated each field.
func logCompleteness(log *zap.Logger, businesses []record.Business) {
	counts := make(map[string]int)
	for _, b := range businesses {
		lead := record.Lead{Business: b}
		for field, value := range lead.Fields() {
			if value != "" {
				counts[field]++
			}
		}
	}
	fields := make([]zap.Field, 0, len(counts))
	for _, col := range record.Columns {
		if n, ok := counts[col]; ok {
			fields = append(fields, zap.Int(col, n))
		}
	}
	log.Info("field completeness", fields...)
}
