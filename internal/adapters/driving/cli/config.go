package cli

import (
	"bufio"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/verity/internal/adapters/driven/config/file"
	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driven"
	"github.com/custodia-labs/verity/internal/core/services"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `View and change the settings stored in config.toml.

Keys use dot notation, for example retrieval.relevance_floor or
embedding.provider. Values are validated before they are saved.`,
	Annotations: map[string]string{skipServices: "true"},
	RunE:        runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:         "show",
	Short:       "Show effective configuration",
	Annotations: map[string]string{skipServices: "true"},
	RunE:        runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:         "set [key] [value]",
	Short:       "Set a configuration value",
	Args:        cobra.ExactArgs(2),
	Annotations: map[string]string{skipServices: "true"},
	RunE:        runConfigSet,
}

var configAPIKeyCmd = &cobra.Command{
	Use:         "api-key",
	Short:       "Store the embedding provider API key",
	Long:        `Prompts for the API key without echoing it and stores it in config.toml.`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{skipServices: "true"},
	RunE:        runConfigAPIKey,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configAPIKeyCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	store, err := file.NewConfigStore(configDir)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	cfg, err := services.LoadConfig(store)
	if err != nil {
		return err
	}

	cmd.Printf("Configuration (%s)\n", store.Path())
	cmd.Println()

	cmd.Println("[Embedding]")
	cmd.Printf("  Provider: %s\n", cfg.Embedding.Provider.Description())
	cmd.Printf("  Model: %s\n", cfg.Embedding.Model)
	if cfg.Embedding.BaseURL != "" {
		cmd.Printf("  Base URL: %s\n", cfg.Embedding.BaseURL)
	}
	if cfg.Embedding.Provider.RequiresAPIKey() {
		if cfg.Embedding.APIKey != "" {
			cmd.Printf("  API Key: %s\n", maskAPIKey(cfg.Embedding.APIKey))
		} else {
			cmd.Printf("  API Key: (not set, %s is used if present)\n", "OPENAI_API_KEY")
		}
	}
	cmd.Println()

	cmd.Println("[Chunking]")
	cmd.Printf("  Max chars: %d  Overlap: %d  Min chunk: %d\n",
		cfg.Chunking.MaxChars, cfg.Chunking.OverlapChars, cfg.Chunking.MinChunkChars)
	cmd.Println()

	cmd.Println("[Retrieval]")
	cmd.Printf("  Default collection: %s\n", cfg.Retrieval.DefaultCollection)
	cmd.Printf("  Top K: %d (max %d, batch %d)\n",
		cfg.Retrieval.DefaultTopK, cfg.Retrieval.MaxTopK, cfg.Retrieval.MultiQueryTopK)
	cmd.Printf("  Relevance floor: %.2f\n", cfg.Retrieval.RelevanceFloor)
	cmd.Println()

	cmd.Println("[Grounding]")
	cmd.Printf("  Supported >= %.2f  Partial >= %.2f  Corroboration weight: %.2f\n",
		cfg.Grounding.SupportedThreshold, cfg.Grounding.PartialThreshold, cfg.Grounding.CorroborationWeight)
	cmd.Println()

	cmd.Println("[Backend]")
	cmd.Printf("  Embed timeout: %s  Search timeout: %s\n", cfg.Backend.EmbedTimeout, cfg.Backend.SearchTimeout)
	cmd.Printf("  Attempts: %d  Backoff: %s..%s\n",
		cfg.Backend.MaxAttempts, cfg.Backend.InitialBackoff, cfg.Backend.MaxBackoff)
	cmd.Println()

	cmd.Println("[Cache]")
	cmd.Printf("  Backend: %s\n", cfg.Cache.Backend)
	if cfg.Cache.Backend == domain.CacheRedis {
		cmd.Printf("  Redis: %s\n", cfg.Cache.RedisAddr)
	}
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, raw := args[0], args[1]
	if !slices.Contains(services.SettingKeys(), key) {
		return fmt.Errorf("%w: unknown key %q", domain.ErrInvalidConfig, key)
	}

	store, err := file.NewConfigStore(configDir)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}

	value := parseValue(raw)
	if _, err := services.LoadConfig(overlay{ConfigStore: store, key: key, value: value}); err != nil {
		return err
	}
	if err := store.Set(key, value); err != nil {
		return fmt.Errorf("saving %s: %w", key, err)
	}

	shown := raw
	if key == "embedding.api_key" {
		shown = maskAPIKey(raw)
	}
	cmd.Printf("%s = %s\n", key, shown)
	return nil
}

func runConfigAPIKey(cmd *cobra.Command, _ []string) error {
	store, err := file.NewConfigStore(configDir)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}

	cmd.Print("API key: ")
	key := readPassword()
	cmd.Println()
	if key == "" {
		return fmt.Errorf("%w: API key must not be empty", domain.ErrInvalidArgument)
	}

	if err := store.Set("embedding.api_key", key); err != nil {
		return fmt.Errorf("saving API key: %w", err)
	}
	cmd.Printf("API key saved: %s\n", maskAPIKey(key))
	return nil
}

// parseValue types a command-line value the way TOML would.
// Durations such as "250ms" stay strings.
func parseValue(raw string) any {
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return raw
}

// overlay presents a store with one key replaced, so a value can be
// validated before it is written.
type overlay struct {
	driven.ConfigStore
	key   string
	value any
}

func (o overlay) Get(key string) (any, bool) {
	if key == o.key {
		return o.value, true
	}
	return o.ConfigStore.Get(key)
}

func (o overlay) GetString(key string) string {
	if key == o.key {
		s, _ := o.value.(string)
		return s
	}
	return o.ConfigStore.GetString(key)
}

func (o overlay) GetInt(key string) int {
	if key == o.key {
		i, _ := o.value.(int64)
		return int(i)
	}
	return o.ConfigStore.GetInt(key)
}

func (o overlay) GetFloat(key string) float64 {
	if key == o.key {
		switch v := o.value.(type) {
		case float64:
			return v
		case int64:
			return float64(v)
		}
		return 0
	}
	return o.ConfigStore.GetFloat(key)
}

func (o overlay) GetDuration(key string) time.Duration {
	if key == o.key {
		s, _ := o.value.(string)
		d, _ := time.ParseDuration(s)
		return d
	}
	return o.ConfigStore.GetDuration(key)
}

//nolint:errcheck // CLI helper, error ignored for UX
func readPassword() string {
	// Try to read password without echo
	if term.IsTerminal(int(os.Stdin.Fd())) {
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err == nil {
			return strings.TrimSpace(string(password))
		}
	}
	// Fallback to regular input
	reader := bufio.NewReader(os.Stdin)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
