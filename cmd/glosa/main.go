package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/cargoclaro/glosa-sub000/internal/common"
)

type rootFlags struct {
	configPath string
	manifest   string
	logLevel   string
}

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

// setup loads .env, the config file and the environment, and installs the logger.
func setup(f *rootFlags) (*common.Config, *slog.Logger, error) {
	_ = godotenv.Load()
	cfg, err := common.LoadConfig(f.configPath)
	if err != nil {
		return nil, nil, err
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.manifest != "" {
		cfg.Review.ClassifyBy = "manifest"
	}
	logger := newLogger(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func main() {
	f := &rootFlags{}
	root := &cobra.Command{
		Use:           "glosa",
		Short:         "Review customs expedientes against their pedimento",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&f.configPath, "config", "", "config file (YAML or JSON)")
	root.PersistentFlags().StringVar(&f.manifest, "manifest", "", "classification manifest (skips the classifier)")
	root.PersistentFlags().StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")

	root.AddCommand(reviewCmd(f), classifyCmd(f), batchCmd(f))

	if err := root.Execute(); err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
}
