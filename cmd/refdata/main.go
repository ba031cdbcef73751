package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	fileconfig "github.com/agrodata/refdata/pkg/config"
	"github.com/agrodata/refdata/pkg/httpapi"
	"github.com/agrodata/refdata/pkg/log"
	"github.com/agrodata/refdata/pkg/provider"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "refdata",
	Short: "refdata serves EPPO plant codes and EU active substances from a local, hot-swappable SQLite index",
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", true, "Output logs in JSON format")
	cobra.OnInitialize(initLogging)

	serveCmd.Flags().String("port", "", "HTTP listen port (env PORT)")
	serveCmd.Flags().String("data-dir", "", "Data directory root (env DATA_DIR)")
	serveCmd.Flags().String("eppo-api-url", "", "EPPO dataset-list API URL (env EPPO_API_URL)")
	serveCmd.Flags().String("eppo-api-key", "", "EPPO API key (env EPPO_API_KEY)")
	serveCmd.Flags().String("eppo-allow-types", "", "Comma-separated EPPO code types to admit (env EPPO_ALLOW_TYPES)")
	serveCmd.Flags().String("eppo-options-file", "", "Optional YAML file overriding the EPPO allow-list (env EPPO_OPTIONS_FILE)")
	serveCmd.Flags().String("eu-url", "", "EU active-substances JSON URL (env EU_URL)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(logLevel), JSONOutput: logJSON})
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("refdata version %s (%s)\n", Version, Commit)
	},
}

// config is the validated record the running process consumes. Loading
// and validating it from the environment is the one boilerplate edge
// left outside the core.
type config struct {
	port           string
	dataDir        string
	eppoAPIURL     string
	eppoAPIKey     string
	eppoAllowTypes []string
	euURL          string
}

// ConfigError marks a missing required startup variable. Always fatal:
// the process exits rather than starting in a degraded configuration.
type ConfigError struct {
	Var string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("missing required configuration: %s", e.Var)
}

func loadConfig(cmd *cobra.Command) (*config, error) {
	get := func(flag, env string) string {
		if v, _ := cmd.Flags().GetString(flag); v != "" {
			return v
		}
		return os.Getenv(env)
	}

	cfg := &config{
		port:       get("port", "PORT"),
		dataDir:    get("data-dir", "DATA_DIR"),
		eppoAPIURL: get("eppo-api-url", "EPPO_API_URL"),
		eppoAPIKey: get("eppo-api-key", "EPPO_API_KEY"),
		euURL:      get("eu-url", "EU_URL"),
	}
	allowTypes := get("eppo-allow-types", "EPPO_ALLOW_TYPES")

	for _, req := range []struct{ name, value string }{
		{"PORT", cfg.port},
		{"DATA_DIR", cfg.dataDir},
		{"EPPO_API_URL", cfg.eppoAPIURL},
		{"EPPO_API_KEY", cfg.eppoAPIKey},
		{"EPPO_ALLOW_TYPES", allowTypes},
		{"EU_URL", cfg.euURL},
	} {
		if req.value == "" {
			return nil, &ConfigError{Var: req.name}
		}
	}

	for _, t := range strings.Split(allowTypes, ",") {
		cfg.eppoAllowTypes = append(cfg.eppoAllowTypes, strings.TrimSpace(t))
	}

	if path := get("eppo-options-file", "EPPO_OPTIONS_FILE"); path != "" {
		opts, err := fileconfig.LoadEPPOOptions(path)
		if err != nil {
			return nil, err
		}
		if opts != nil && len(opts.AllowTypes) > 0 {
			cfg.eppoAllowTypes = opts.AllowTypes
		}
	}
	return cfg, nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the refdata query service",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			log.Logger.Fatal().Err(err).Msg("invalid startup configuration")
			return err
		}
		return serve(cfg)
	},
}

func serve(cfg *config) error {
	eppo := provider.NewEPPOCoordinator(provider.EPPOConfig{
		Dir:        cfg.dataDir + "/eppo",
		APIURL:     cfg.eppoAPIURL,
		APIKey:     cfg.eppoAPIKey,
		AllowTypes: cfg.eppoAllowTypes,
	})
	eu := provider.NewEUCoordinator(provider.EUConfig{
		Dir: cfg.dataDir + "/eu",
		URL: cfg.euURL,
	})

	ctx := context.Background()
	if err := eppo.Initialise(ctx); err != nil {
		log.Logger.Error().Err(err).Msg("eppo provider did not initialise cleanly")
	}
	if err := eu.Initialise(ctx); err != nil {
		log.Logger.Error().Err(err).Msg("eu provider did not initialise cleanly")
	}

	router := httpapi.NewRouter(eppo, eu)
	srv := &http.Server{Addr: ":" + cfg.port, Handler: router}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	log.Logger.Info().Str("addr", srv.Addr).Msg("refdata listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Logger.Info().Msg("shutting down")
	case err := <-errCh:
		log.Logger.Error().Err(err).Msg("server error")
	}

	eppo.Stop()
	eu.Stop()
	return srv.Shutdown(context.Background())
}
