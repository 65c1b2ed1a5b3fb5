package main

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"catalogscan/pkg/config"
	"catalogscan/pkg/logger"
	"catalogscan/pkg/ocr"
	"catalogscan/pkg/ocr/cvregion"
	"catalogscan/pkg/ocr/tesseract"
	"catalogscan/pkg/ocr/vision"
	"catalogscan/process/extract"
	"catalogscan/process/progress"
	"catalogscan/process/report"
	"catalogscan/process/watch"
)

var cfg *config.Config

func newRootCmd() *cobra.Command {
	var profile string
	root := &cobra.Command{
		Use:   "catalogscan",
		Short: "Extract product names and prices from catalog page images",
		Long: `catalogscan reads catalog pages or screenshots, finds product and price
text, and writes a products table plus a log of items it could not resolve.
Runs are checkpointed after every page and resume where they stopped.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.LoadWithProfile(profile)
			if err != nil {
				return err
			}
			applyFlagOverrides(cmd, c)
			if err := c.Validate(); err != nil {
				return fmt.Errorf("config validation failed: %w", err)
			}
			if err := logger.Setup(c.GetLoggerConfig()); err != nil {
				return err
			}
			cfg = c
			jwtSecret = []byte(c.JWTSecret)
			outputDir = c.OutputDir
			return nil
		},
	}
	root.PersistentFlags().StringVar(&profile, "profile", "", "YAML profile (overrides CATALOG_PROFILE)")
	root.PersistentFlags().String("mode", "", "operating mode: pages or template")
	root.PersistentFlags().String("output", "", "output directory for tables, logs and checkpoints")

	root.AddCommand(newRunCmd(), newWatchCmd(), newServeCmd(), newTokenCmd(), newMigrateCmd(), newGuideCmd(), newReportCmd())
	return root
}

func applyFlagOverrides(cmd *cobra.Command, c *config.Config) {
	if v, _ := cmd.Flags().GetString("mode"); v != "" {
		c.Mode = v
	}
	if v, _ := cmd.Flags().GetString("output"); v != "" {
		c.OutputDir = v
	}
	if f := cmd.Flags().Lookup("workers"); f != nil && f.Changed {
		c.Workers, _ = cmd.Flags().GetInt("workers")
	}
	if f := cmd.Flags().Lookup("backend"); f != nil && f.Changed {
		c.OCRBackend, _ = cmd.Flags().GetString("backend")
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// newBackend returns the configured recognition backend and its cleanup.
func newBackend(ctx context.Context) (ocr.Backend, func(), error) {
	switch cfg.OCRBackend {
	case "vision":
		// tesseract codes like "eng" are not BCP-47; let Vision detect those
		var hints []string
		if len(cfg.OCRLanguage) == 2 {
			hints = append(hints, cfg.OCRLanguage)
		}
		b, err := vision.New(ctx, hints...)
		if err != nil {
			return nil, nil, err
		}
		return b, func() { _ = b.Close() }, nil
	default:
		log := logger.WithComponent("recognizer")
		log.Debug().Str("tesseract", tesseract.Version()).Msg("using tesseract")
		b := tesseract.New(cfg.OCRLanguage)
		b.Confidence = cfg.Scorer == "confidence"
		return b, func() {}, nil
	}
}

func newFinder() ocr.BoxFinder {
	if cfg.RegionFinder == "opencv" {
		return cvregion.Finder{}
	}
	return ocr.LabelFinder{}
}

// newRunner wires engine, checkpoint store and runner for input.
func newRunner(ctx context.Context, input string) (*extract.Runner, func(), error) {
	backend, closeBackend, err := newBackend(ctx)
	if err != nil {
		return nil, nil, err
	}
	engine, err := extract.New(cfg, backend, newFinder())
	if err != nil {
		closeBackend()
		return nil, nil, err
	}
	cp, err := openCheckpoints(cfg)
	if err != nil {
		closeBackend()
		return nil, nil, err
	}
	store := progress.NewStore(cfg.OutputDir, cfg.Mode, cp)
	return &extract.Runner{Processor: engine, Store: store, Input: input}, closeBackend, nil
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <image-or-directory>",
		Short: "Process every page of the input, resuming an interrupted run",
		Example: `  # scanned flyer pages, four recognition workers per page
  catalogscan run ./flyer --workers 4

  # fixed-layout screenshots
  catalogscan run ./shots --mode template`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			pages, err := extract.ListPages(args[0], cfg.Mode)
			if err != nil {
				return err
			}
			runner, cleanup, err := newRunner(ctx, args[0])
			if err != nil {
				return err
			}
			defer cleanup()

			st, err := runner.Run(ctx, pages)
			if errors.Is(err, context.Canceled) && st != nil {
				log := logger.WithComponent("extract")
				log.Warn().Int("last_page", st.LastCompletedPage).Msg("interrupted; run again to resume")
				return nil
			}
			if err != nil {
				return err
			}
			report.Write(cmd.OutOrStdout(), st, false)
			fmt.Fprintln(cmd.OutOrStdout(), progress.ProductsPath(cfg.OutputDir, st.Name))
			fmt.Fprintln(cmd.OutOrStdout(), progress.ProblematicPath(cfg.OutputDir, st.Name))
			return nil
		},
	}
	cmd.Flags().Int("workers", 1, "concurrent region recognitions per page")
	cmd.Flags().String("backend", "", "recognition backend: tesseract or vision")
	return cmd
}

func newWatchCmd() *cobra.Command {
	var rescan string
	cmd := &cobra.Command{
		Use:   "watch <directory>",
		Short: "Append page images dropped into a directory to an open run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()
			runner, cleanup, err := newRunner(ctx, args[0])
			if err != nil {
				return err
			}
			defer cleanup()
			w := &watch.Watcher{Dir: args[0], Mode: cfg.Mode, Runner: runner, Rescan: rescan}
			return w.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&rescan, "rescan", "@every 1m", "cron spec for full directory rescans (empty disables)")
	cmd.Flags().Int("workers", 1, "concurrent region recognitions per page")
	cmd.Flags().String("backend", "", "recognition backend: tesseract or vision")
	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve run results as read-only JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()
			cp, err := openCheckpoints(cfg)
			if err != nil {
				return err
			}
			checkpoints = cp

			log := logger.WithComponent("api")
			if len(jwtSecret) == 0 {
				log.Warn().Msg("JWT_SECRET not set; API is unauthenticated")
			}
			r := gin.New()
			r.Use(gin.Recovery())
			setupRoutes(r)
			srv := &http.Server{Addr: cfg.APIAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}

			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()
			log.Info().Str("addr", cfg.APIAddr).Msg("listening")
			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}

func newTokenCmd() *cobra.Command {
	var subject string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the API",
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := mintToken(subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "token subject (who the token is for)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the postgres checkpoint tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(cfg.DBDSN)
			if err != nil {
				return err
			}
			if err := progress.Migrate(db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migration completed")
			return nil
		},
	}
}

func newGuideCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "guide",
		Short: "Render the template zones so screenshots can be framed to match",
		RunE: func(cmd *cobra.Command, args []string) error {
			t := cfg.Template
			bg := imaging.New(t.Width, t.Height, color.White)
			img := ocr.Overlay(bg, t.Regions(t.Width, t.Height), 3)
			if err := imaging.Save(img, out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%dx%d, %d product zones, %d price zones)\n",
				out, t.Width, t.Height, len(t.Product), len(t.Price))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "template_guide.png", "output image")
	return cmd
}

func newReportCmd() *cobra.Command {
	var name string
	var list bool
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize the latest (or named) run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cp, err := openCheckpoints(cfg)
			if err != nil {
				return err
			}
			st, err := report.Load(cmd.Context(), cp, name)
			if err != nil {
				return err
			}
			report.Write(cmd.OutOrStdout(), st, list)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "run name, e.g. catalog_products_20250101_120000")
	cmd.Flags().BoolVar(&list, "list", false, "list every product and problematic item")
	return cmd
}
