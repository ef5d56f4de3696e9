// Command lifeline lists, inspects and renders LifeLine Agents templates.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/lifeline-agents/lifeline"
	"github.com/lifeline-agents/lifeline/catalog"
	"github.com/lifeline-agents/lifeline/fileregistry"
	"github.com/lifeline-agents/lifeline/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Version is set at build time
	Version = "dev"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the CLI and returns the process exit code. Deferred calls,
// including the logger flush, complete before main exits.
func run(args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return 1
	}

	logger, err := initLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	logger.Debug("configuration loaded", zap.String("version", Version), zap.String("config", cfg.String()))

	a, err := newApp(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to load templates", zap.Error(err))
		return 1
	}

	cmd := newRootCmd(a)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, lifeline.ErrInvalidVariables) {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

// app is the state shared by every subcommand.
type app struct {
	engine  *lifeline.Engine
	catalog *catalog.Catalog
	logger  *zap.Logger
}

// newApp builds the engine and performs start-up registration:
// the built-in catalog first, then manifests from cfg.TemplateDir.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	opts := []lifeline.Option{
		lifeline.WithLogger(logger),
		lifeline.WithMaxBodyBytes(cfg.MaxBodyBytes),
	}
	if cfg.Strict {
		opts = append(opts, lifeline.WithStrictRegistration())
	}
	engine := lifeline.NewEngine(opts...)

	cat, err := catalog.Default()
	if err != nil {
		return nil, err
	}
	if err := cat.Register(engine); err != nil {
		return nil, err
	}

	if cfg.TemplateDir != "" {
		reg := fileregistry.New(cfg.TemplateDir,
			fileregistry.WithConcurrency(cfg.LoadConcurrency),
			fileregistry.WithLogger(logger),
		)
		if err := reg.RegisterAll(ctx, engine); err != nil {
			return nil, fmt.Errorf("template dir %s: %w", cfg.TemplateDir, err)
		}
	}

	logger.Info("templates registered", zap.Int("count", engine.Len()))
	return &app{engine: engine, catalog: cat, logger: logger}, nil
}

func initLogger(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.WarnLevel
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return config.Build()
}
