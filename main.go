package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/slmtnm/s3ranger/internal/config"
	"github.com/slmtnm/s3ranger/internal/errs"
	"github.com/slmtnm/s3ranger/internal/logger"
	"github.com/slmtnm/s3ranger/internal/nav"
	"github.com/slmtnm/s3ranger/internal/pathkey"
	"github.com/slmtnm/s3ranger/internal/store"
	"github.com/slmtnm/s3ranger/internal/tui"
)

func main() {
	_ = godotenv.Load()

	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:      "s3ranger",
		Usage:     "browse S3 buckets from the terminal",
		ArgsUsage: "[bucket | s3://bucket/prefix/]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "endpoint-url", Usage: "S3-compatible endpoint, e.g. http://localhost:9000"},
			&cli.StringFlag{Name: "region-name", Usage: "region of the buckets"},
			&cli.StringFlag{Name: "profile-name", Usage: "shared AWS config profile"},
			&cli.StringFlag{Name: "aws-access-key-id", Usage: "access key"},
			&cli.StringFlag{Name: "aws-secret-access-key", Usage: "secret key"},
			&cli.StringFlag{Name: "aws-session-token", Usage: "session token for temporary credentials"},
			&cli.StringFlag{Name: "provider", Usage: "storage driver: aws, minio or memory"},
			&cli.StringFlag{Name: "listing-mode", Usage: "lazy lists one folder at a time, eager lists the bucket once"},
			&cli.StringFlag{Name: "config", Usage: "config file (default ~/" + config.FileName + ")"},
			&cli.StringFlag{Name: "log-file", Usage: "write logs to this file"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
			&cli.BoolFlag{Name: "demo", Usage: "browse built-in sample buckets without credentials"},
		},
		Commands: []*cli.Command{
			{
				Name:   "configure",
				Usage:  "interactively write the config file and .s3cfg credentials",
				Action: runConfigure,
			},
		},
		Action: runBrowser,
	}
}

func overrides(c *cli.Context) config.Overrides {
	o := config.Overrides{
		EndpointURL:  c.String("endpoint-url"),
		Region:       c.String("region-name"),
		Profile:      c.String("profile-name"),
		AccessKey:    c.String("aws-access-key-id"),
		SecretKey:    c.String("aws-secret-access-key"),
		SessionToken: c.String("aws-session-token"),
		Provider:     c.String("provider"),
		ListingMode:  c.String("listing-mode"),
		LogFile:      c.String("log-file"),
		LogLevel:     c.String("log-level"),
	}
	if c.Bool("demo") {
		o.Provider = string(store.ProviderMemory)
	}
	return o
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(config.Options{ConfigFile: c.String("config")})
	if err != nil {
		return nil, err
	}
	cfg.Apply(overrides(c))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openLogger(cfg config.LogConfig) (*logger.Logger, io.Closer, error) {
	if cfg.File == "" {
		return logger.Nop(), nopCloser{}, nil
	}
	return logger.OpenFile(cfg.File, &logger.Config{Level: cfg.Level, Format: cfg.Format})
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// parseStart accepts a bare bucket name, bucket/prefix or an s3:// URI.
func parseStart(arg string) (pathkey.Location, error) {
	if !strings.Contains(arg, "://") {
		arg = pathkey.Scheme + "://" + arg
	}
	return pathkey.Parse(arg)
}

func runBrowser(c *cli.Context) error {
	if c.Args().Len() > 1 {
		return cli.Exit("expected at most one bucket or s3:// location", 2)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	log, closer, err := openLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer closer.Close()
	logger.SetGlobal(log)

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	client, err := newClient(ctx, &cfg.Store)
	if err != nil {
		return err
	}

	var start pathkey.Location
	if c.Args().Present() {
		start, err = parseStart(c.Args().First())
		if err != nil {
			return err
		}
		if err := client.HeadBucket(ctx, start.Bucket); err != nil {
			return cli.Exit(bucketHelp(start.Bucket, err), 1)
		}
	}

	strategy, err := nav.ParseStrategy(cfg.ListingMode)
	if err != nil {
		return err
	}

	log.With().
		Str("provider", string(cfg.Store.Provider)).
		Str("listing_mode", strategy.String()).
		Str("start", start.String()).
		Any("sources", cfg.Sources).
		Logger().Info("starting")

	model, err := tui.New(tui.Options{
		Client:       client,
		Strategy:     strategy,
		FetchTimeout: cfg.FetchTimeout,
		Concurrency:  cfg.TransferConcurrency,
		DownloadDir:  cfg.DownloadDir,
		Start:        start,
		Logger:       log,
		Context:      ctx,
	})
	if err != nil {
		return err
	}

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("running TUI: %w", err)
	}
	return nil
}

func bucketHelp(bucket string, err error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Error accessing bucket '%s': %s\n", bucket, err)
	b.WriteString("\nPlease check:\n")
	switch {
	case errs.IsNotFound(err):
		b.WriteString("  - Bucket name is correct\n")
	case errs.IsPermissionDenied(err):
		b.WriteString("  - Your credentials have access to this bucket\n")
	default:
		b.WriteString("  - Bucket name is correct\n")
		b.WriteString("  - Your credentials have access to this bucket\n")
	}
	b.WriteString("  - Your S3 endpoint configuration is correct\n")
	b.WriteString("\nRun 's3ranger configure' to set up credentials.")
	return b.String()
}

func runConfigure(c *cli.Context) error {
	configPath := c.String("config")
	if configPath == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return err
		}
		configPath = p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return errs.Wrap(errs.KindLocalIO, "cannot resolve home directory", err)
	}

	_, err = config.Configure(os.Stdin, os.Stdout, configPath, filepath.Join(home, ".s3cfg"))
	return err
}
