package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ironsheep/vision-mcp/internal/cache"
	"github.com/ironsheep/vision-mcp/internal/config"
	"github.com/ironsheep/vision-mcp/internal/detection"
	"github.com/ironsheep/vision-mcp/internal/httpapi"
	"github.com/ironsheep/vision-mcp/internal/imaging"
	"github.com/ironsheep/vision-mcp/internal/logging"
	"github.com/ironsheep/vision-mcp/internal/ocr"
	"github.com/ironsheep/vision-mcp/internal/pdf"
	"github.com/ironsheep/vision-mcp/internal/server"
	"github.com/ironsheep/vision-mcp/internal/vision"
	"github.com/ironsheep/vision-mcp/internal/worker"
)

const serverName = "vision-mcp"

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var (
	configPath string
	logLevel   string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logging.Errorf("%v", err)
		logging.Sync()
		os.Exit(1)
	}
	logging.Sync()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   serverName,
		Short: "MCP server for object detection and OCR",
		Long: `vision-mcp exposes zero-shot object detection and OCR as MCP tools.

Without a subcommand it speaks MCP over stdin/stdout; configure it in your
MCP client. Use "vision-mcp http" to serve the same tools over HTTP.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStdio(cmd.Context())
		},
	}
	root.SetVersionTemplate(versionText())
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		&cobra.Command{
			Use:   "stdio",
			Short: "Serve MCP over stdin/stdout",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runStdio(cmd.Context())
			},
		},
		newHTTPCmd(),
		newToolsCmd(),
		newCacheCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprint(cmd.OutOrStdout(), versionText())
			},
		},
	)
	return root
}

func versionText() string {
	return fmt.Sprintf("%s %s\n  Build time: %s\n  Git commit: %s\n", serverName, Version, BuildTime, GitCommit)
}

func newHTTPCmd() *cobra.Command {
	var (
		host string
		port int
	)
	cmd := &cobra.Command{
		Use:   "http",
		Short: "Serve the tools over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			app, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			api := httpapi.New(app.dispatcher,
				httpapi.WithLogger(logging.Default),
				httpapi.WithVersion(Version),
				httpapi.WithMaxBodyBytes(cfg.MaxBodyBytes))
			return api.ListenAndServe(ctx, cfg.Addr())
		},
	}
	cmd.Flags().StringVar(&host, "host", config.DefaultHost, "listen host")
	cmd.Flags().IntVar(&port, "port", config.DefaultPort, "listen port")
	return cmd
}

func newToolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "Print the tool definitions as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			svc, err := newService(cfg, nil)
			if err != nil {
				return err
			}
			reg, err := server.NewRegistry(svc)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(reg.List())
		},
	}
}

func newCacheCmd() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or maintain the OCR result cache",
	}
	withCache := func(fn func(context.Context, *cache.Cache) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Cache.Path == "" {
				return errors.New("no cache configured (set cache.path or VISION_MCP_CACHE_PATH)")
			}
			c, err := cache.Open(cfg.Cache.Path)
			if err != nil {
				return err
			}
			defer c.Close()
			return fn(cmd.Context(), c)
		}
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show entry count and size",
		RunE: withCache(func(ctx context.Context, c *cache.Cache) error {
			st, err := c.Stats(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %d entries, %d bytes\n", c.Path(), st.Entries, st.Bytes)
			return nil
		}),
	}
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached result",
		RunE: withCache(func(ctx context.Context, c *cache.Cache) error {
			return c.Clear(ctx)
		}),
	}
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Remove results not read recently",
		RunE: withCache(func(ctx context.Context, c *cache.Cache) error {
			n, err := c.Prune(ctx, time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			fmt.Printf("pruned %d entries\n", n)
			return nil
		}),
	}
	prune.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "prune entries last read before this long ago")

	cmd.AddCommand(stats, clearCmd, prune)
	return cmd
}

func runStdio(parent context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	app, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := signalContext(parent)
	defer stop()

	logging.Debugf("%s v%s (built %s, commit %s) serving on stdio", serverName, Version, BuildTime, GitCommit)
	srv := server.New(app.dispatcher, serverName, Version, logging.Default)
	if err := srv.Run(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	logging.SetLevel(cfg.LogLevel)
	return cfg, nil
}

// app owns the long-lived resources shared by both transports.
type app struct {
	dispatcher *server.Dispatcher
	pool       *worker.Pool
	cache      *cache.Cache
}

func newApp(cfg *config.Config) (*app, error) {
	a := &app{}

	if cfg.Cache.Path != "" {
		c, err := cache.Open(cfg.Cache.Path)
		if err != nil {
			return nil, err
		}
		a.cache = c
		logging.Infof("OCR cache at %s", c.Path())
	}

	svc, err := newService(cfg, a.cache)
	if err != nil {
		a.Close()
		return nil, err
	}
	reg, err := server.NewRegistry(svc)
	if err != nil {
		a.Close()
		return nil, err
	}
	pool, err := worker.New(cfg.Workers, cfg.RequestTimeout)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.pool = pool
	logging.Infof("%d workers, %s per call, detection model %s", pool.Cap(), pool.Timeout(), cfg.Detector.DefaultModel)
	a.dispatcher = server.NewDispatcher(reg, pool, logging.Default)
	return a, nil
}

func newService(cfg *config.Config, c *cache.Cache) (*vision.Service, error) {
	return vision.New(vision.Options{
		Detector:         detection.NewInferenceClient(cfg.Detector.Endpoint, cfg.Detector.Token, nil),
		Recognizer:       ocr.NewTesseract(cfg.OCR.TessdataPrefix),
		Rasterizer:       pdf.NewFitz(pdf.DefaultDPI),
		Loader:           imaging.NewLoader(cfg.FetchTimeout),
		Cache:            c,
		DefaultModel:     cfg.Detector.DefaultModel,
		DefaultLanguages: cfg.OCR.Languages,
		Logger:           logging.Default,
	})
}

func (a *app) Close() {
	if a.pool != nil {
		a.pool.Release()
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			logging.Warnf("failed to close OCR cache: %v", err)
		}
	}
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
