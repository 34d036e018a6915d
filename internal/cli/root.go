// Package cli implements mindlogctl, a local front end to the journal
// assistant.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"mindlog-agent/internal/config"
	"mindlog-agent/internal/credentials"
	"mindlog-agent/internal/integrations/keychain"
	"mindlog-agent/internal/providers"
	"mindlog-agent/internal/usecase"
)

type keyStore interface {
	Set(provider, key string) error
	Delete(provider string) error
}

type app struct {
	configPath string
	envFile    string
	provider   string
	verbose    bool

	newService func(cfg config.Config, logger *slog.Logger) (*usecase.Service, error)
	keys       keyStore
}

// Execute runs mindlogctl with os.Args. Ctrl+C cancels the call in flight.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func NewRootCommand() *cobra.Command {
	return newRootCommand(&app{newService: buildService, keys: keychain.New()})
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "mindlogctl",
		Short:         "Run the journal assistant from the command line",
		Long:          `mindlogctl analyzes journal entries, chats, writes review reports and suggests page layouts using Gemini or Kimi.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.loadEnv()
		},
	}
	root.CompletionOptions.HiddenDefaultCmd = true

	flags := root.PersistentFlags()
	flags.StringVar(&a.provider, "provider", "", "AI provider: gemini or kimi (default from config)")
	flags.StringVar(&a.configPath, "config", "", "YAML config file")
	flags.StringVar(&a.envFile, "env-file", "", "dotenv file to load before reading the environment (default .env if present)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Log provider calls to stderr")

	root.AddCommand(
		a.analyzeCommand(),
		a.chatCommand(),
		a.reportCommand(),
		a.layoutCommand(),
		a.keysCommand(),
	)
	return root
}

func (a *app) loadEnv() error {
	if a.envFile != "" {
		if err := godotenv.Load(a.envFile); err != nil {
			return fmt.Errorf("load env file %s: %w", a.envFile, err)
		}
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func (a *app) loadConfig() (config.Config, error) {
	cfg := config.FromEnv()
	if a.configPath != "" {
		var err error
		if cfg, err = config.LoadFile(a.configPath); err != nil {
			return cfg, err
		}
	}
	if a.provider != "" {
		cfg.Provider = strings.ToLower(strings.TrimSpace(a.provider))
	}
	return cfg, cfg.Validate()
}

func (a *app) service(cmd *cobra.Command) (*usecase.Service, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	level := slog.LevelWarn
	if a.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	return a.newService(cfg, logger)
}

// buildService resolves keys from the environment, then the OS keychain.
func buildService(cfg config.Config, logger *slog.Logger) (*usecase.Service, error) {
	keys := credentials.Chain{credentials.NewEnv()}
	if keychain.Available() {
		keys = append(keys, keychain.New())
	}
	registry, err := providers.New(cfg, keys, providers.Options{Logger: logger})
	if err != nil {
		return nil, err
	}
	return usecase.NewService(registry.Service(),
		usecase.WithMaxTextLength(cfg.MaxTextLength),
		usecase.WithMaxHistory(cfg.MaxHistory),
		usecase.WithLogger(logger),
	)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func readJSONFile(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
