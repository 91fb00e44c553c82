// Package cli implements the capgate command line interface.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sprite-ai/capgate/internal/audit"
	"github.com/sprite-ai/capgate/internal/capsule"
	"github.com/sprite-ai/capgate/internal/gate"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "capgate",
	Short: "Risk-gated change review for agent-produced diffs",
	Long: `capgate classifies unified diffs by risk, records each change as a
durable capsule, and gates application behind an approval policy.

Approval can come from the configured policy (auto), from a token
deposited by an external reviewer, or from an interactive prompt.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.capgate.yaml)")
	rootCmd.PersistentFlags().String("session", "default", "session that owns the capsules")

	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	viper.SetDefault("guardrails.mode", "normal")
	viper.SetDefault("guardrails.auto_approve_low", true)
	viper.SetDefault("guardrails.require_impact_for_high", true)
	viper.SetDefault("store.root", "")
	viper.SetDefault("audit.jsonl_path", "")
	viper.SetDefault("audit.rotate_max_bytes", int64(0))
	viper.SetDefault("audit.sqlite_dsn", "")

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".capgate")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("CAPGATE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// A missing default config file is fine; anything else is worth a
		// warning on stderr.
		if _, notFound := err.(viper.ConfigFileNotFoundError); cfgFile != "" || !notFound {
			fmt.Fprintf(os.Stderr, "Warning: reading config: %v\n", err)
		}
	}
}

func storeFromConfig() (*capsule.Store, error) {
	root := strings.TrimSpace(viper.GetString("store.root"))
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving store root: %w", err)
		}
		root = filepath.Join(home, ".capgate", "capsules")
	}
	return capsule.NewStore(root), nil
}

func loggerFromConfig() (audit.Logger, error) {
	if dsn := strings.TrimSpace(viper.GetString("audit.sqlite_dsn")); dsn != "" {
		return audit.NewSQLiteLogger(dsn)
	}

	path := strings.TrimSpace(viper.GetString("audit.jsonl_path"))
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving audit log path: %w", err)
		}
		path = filepath.Join(home, ".capgate", "audit.jsonl")
	}
	return audit.NewJSONLLogger(path, viper.GetInt64("audit.rotate_max_bytes"))
}

func guardrailsFromConfig() (gate.Guardrails, error) {
	mode, err := gate.ParseMode(viper.GetString("guardrails.mode"))
	if err != nil {
		return gate.Guardrails{}, err
	}
	return gate.Guardrails{
		Mode:                 mode,
		AutoApproveLow:       viper.GetBool("guardrails.auto_approve_low"),
		RequireImpactForHigh: viper.GetBool("guardrails.require_impact_for_high"),
	}, nil
}
