package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	optimade "github.com/stacklok/optimade-server/internal/app"
	"github.com/stacklok/optimade-server/internal/config"
)

const (
	defaultGracefulTimeout = 30 * time.Second // Kubernetes-friendly shutdown time
	defaultRequestTimeout  = 10 * time.Second
)

func newServeCmd() *cobra.Command {
	v := newViper()

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the OPTIMADE index server",
		Long: `Start the OPTIMADE index server.

The optional configuration file (--config) sets the provider, the index links file,
the providers list and the paging limits. Without it the example provider "exmpl"
is served with no child links.

Every flag can also be set through an OPTIMADE_ prefixed environment variable,
for example OPTIMADE_ADDRESS=:5001.

See examples/ directory for sample configurations.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), v)
		},
	}

	serveCmd.Flags().String("address", ":8080", "Address to listen on")
	serveCmd.Flags().String("config", "", "Path to configuration file (YAML format)")
	serveCmd.Flags().Duration("request-timeout", defaultRequestTimeout, "Maximum time to serve a single request")
	bindFlags(v, serveCmd, "address", "config", "request-timeout")

	return serveCmd
}

func runServe(ctx context.Context, v *viper.Viper) error {
	cfg, err := loadConfig(v.GetString("config"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	optimadeApp, err := optimade.NewOptimadeApp(ctx,
		optimade.WithConfig(cfg),
		optimade.WithAddress(v.GetString("address")),
		optimade.WithRequestTimeout(v.GetDuration("request-timeout")),
	)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(optimadeApp.Start)
	g.Go(func() error {
		<-gctx.Done()
		return optimadeApp.Stop(defaultGracefulTimeout)
	})

	return g.Wait()
}

// loadConfig reads the configuration file, or returns the defaults when path is empty
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		slog.Info("No configuration file given, using defaults")
		return config.Default(), nil
	}

	cfg, err := config.LoadConfig(config.WithConfigPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	slog.Info("Loaded configuration",
		"path", path,
		"provider", cfg.Provider.Prefix,
		"links", cfg.IndexLinksPath,
	)
	return cfg, nil
}

// newViper returns a viper instance reading OPTIMADE_ prefixed environment variables
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(config.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return v
}

func bindFlags(v *viper.Viper, cmd *cobra.Command, names ...string) {
	for _, name := range names {
		if err := v.BindPFlag(name, cmd.Flags().Lookup(name)); err != nil {
			slog.Error("Failed to bind flag", "flag", name, "error", err)
		}
	}
}
