package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	photohistory "github.com/anatolykoptev/go-photohistory"
)

const progressInterval = 2 * time.Second

var scanCmd = &cobra.Command{
	Use:   "scan <dir>",
	Short: "Analyze a photo directory and list historic outdoor photos",
	Long: `Scan walks a directory of photos, reads their EXIF location and capture
time, and classifies every located photo with a vision model. The newest
photos are analyzed first, up to --limit.

Example:
  photohistory scan ~/Pictures
  photohistory scan ~/Pictures --filter --allow-unrecognizable-people
  photohistory scan ~/Pictures --format yaml --base-url http://localhost:11434/v1 --model llava`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	d := DefaultSettings()
	f := scanCmd.Flags()
	f.Int("workers", d.Workers, "concurrent analysis workers")
	f.Duration("timeout", d.ItemTimeout, "per-photo fetch and classification timeout")
	f.Bool("filter", d.Filter, "list only photos that match the policy")
	f.Bool("allow-unrecognizable-people", d.AllowUnrecognizablePeople, "accept photos with people when no face is detected")
	f.Int("limit", d.Limit, "maximum number of photos to scan, newest first")
	f.Int("min-width", d.MinWidth, "skip images narrower than this many pixels")
	f.String("format", d.Format, "output format: table or yaml")
	f.String("metrics-addr", d.MetricsAddr, "serve Prometheus metrics on this address while scanning")
	f.String("model", d.Vision.Model, "vision model name")
	f.String("base-url", d.Vision.BaseURL, "OpenAI-compatible API base URL")
	f.Float64("rps", d.Vision.RequestsPerSecond, "vision requests per second (0 = unlimited)")

	bind := map[string]string{
		"workers":                     "workers",
		"item_timeout":                "timeout",
		"filter":                      "filter",
		"allow_unrecognizable_people": "allow-unrecognizable-people",
		"limit":                       "limit",
		"min_width":                   "min-width",
		"format":                      "format",
		"metrics_addr":                "metrics-addr",
		"vision.model":                "model",
		"vision.base_url":             "base-url",
		"vision.requests_per_second":  "rps",
	}
	for key, flag := range bind {
		_ = viper.BindPFlag(key, f.Lookup(flag))
	}
}

func runScan(cmd *cobra.Command, args []string) error {
	s, err := loadSettings()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if s.Format != "table" && s.Format != "yaml" {
		return fmt.Errorf("unknown format %q (want table or yaml)", s.Format)
	}
	if s.Vision.APIKey == "" {
		return errors.New("PHOTOHISTORY_API_KEY or OPENAI_API_KEY environment variable not set")
	}

	logger := newLogger()
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cache := photohistory.NewMemoryCache(s.CacheTTL, time.Minute)

	lib, assets, err := photohistory.OpenDirLibrary(ctx, args[0], photohistory.DirLibraryOpts{
		FetchLimit: s.Limit,
		MinWidth:   s.MinWidth,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	vision, err := photohistory.NewVisionClassifier(photohistory.VisionConfig{
		APIKey:            s.Vision.APIKey,
		BaseURL:           s.Vision.BaseURL,
		Model:             s.Vision.Model,
		Timeout:           s.Vision.Timeout,
		RequestsPerSecond: s.Vision.RequestsPerSecond,
		Cache:             cache,
		Logger:            logger,
	})
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	metrics, err := photohistory.NewMetrics(reg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	if s.MetricsAddr != "" {
		stopMetrics := serveMetrics(s.MetricsAddr, reg, logger)
		defer stopMetrics()
	}

	c, err := photohistory.NewCollection(ctx, assets, photohistory.Config{
		Library:      lib,
		Labeler:      vision,
		FaceDetector: vision,
		Workers:      s.Workers,
		ItemTimeout:  s.ItemTimeout,
		Logger:       logger,
		Metrics:      metrics,
	},
		photohistory.WithFilter(s.Filter),
		photohistory.WithPolicy(photohistory.Policy{AllowUnrecognizablePeople: s.AllowUnrecognizablePeople}),
	)
	if err != nil {
		return err
	}
	defer c.Close()

	interrupted := waitWithProgress(ctx, c, cmd.ErrOrStderr())
	if interrupted {
		c.Close()
		fmt.Fprintln(cmd.ErrOrStderr(), "interrupted; showing partial results")
	}

	return writeReport(cmd.OutOrStdout(), s.Format, buildReport(c))
}

// waitWithProgress prints the collection title until analysis finishes and
// reports whether ctx ended first.
func waitWithProgress(ctx context.Context, c *photohistory.Collection, w io.Writer) bool {
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	done := c.Pipeline().Done()
	for {
		select {
		case <-done:
			return false
		case <-ctx.Done():
			return true
		case <-ticker.C:
			fmt.Fprintln(w, c.Title())
		}
	}
}

func writeReport(w io.Writer, format string, r Report) error {
	if format == "yaml" {
		data, err := yaml.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshal report: %w", err)
		}
		_, err = w.Write(data)
		return err
	}

	if _, err := fmt.Fprintln(w, renderReportTable(r)); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%s (analyzed %d, skipped %d)\n", r.Title, r.Analyzed, r.Skipped)
	return err
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("photohistory: metrics server failed", "addr", addr, "error", err.Error())
		}
	}()
	logger.Info("photohistory: serving metrics", "addr", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
