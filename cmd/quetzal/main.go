package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quetzal-org/quetzal-client/cmd/quetzal/commands"
	"github.com/quetzal-org/quetzal-client/internal/constants"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "quetzal",
		Short: "Quetzal CLI",
		Long: `A command-line client for the Quetzal data-management API.

Credentials come from flags or the QUETZAL_USER, QUETZAL_PASSWORD,
QUETZAL_TOKEN and QUETZAL_API_KEY environment variables. They are never
written to the config file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.quetzal/config.yml)")
	flags.String("url", "", "Quetzal API URL, e.g. https://quetzal.example.com/api/v1")
	flags.StringP("username", "u", "", "Quetzal username")
	flags.StringP("password", "p", "", "Quetzal password")
	flags.String("token", "", "Access token")
	flags.String("api-key", "", "API key")
	flags.BoolP("insecure", "k", false, "Skip TLS certificate verification")
	flags.Int("pool-size", constants.DefaultPoolSize, "Idle connections kept per host")
	flags.StringP("output", "o", commands.OutputFormatTable, "Output format (table, json, yaml; csv for queries)")
	flags.BoolP("verbose", "v", false, "Verbose output")
	flags.String("nats-url", "", "Publish workspace status changes to this NATS server")
	flags.Duration("timeout", time.Duration(0), "Timeout for the whole command, e.g. 10m")

	for _, name := range []string{
		"url", "username", "password", "token", "api-key", "insecure",
		"pool-size", "output", "verbose", "nats-url", "timeout",
	} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}

	// QUETZAL_USER is the historical name of the username variable.
	_ = viper.BindEnv("username", "QUETZAL_USERNAME", "QUETZAL_USER")

	rootCmd.AddCommand(commands.NewVersionCommand(version, commit, date))
	rootCmd.AddCommand(commands.NewLoginCommand())
	rootCmd.AddCommand(commands.NewLogoutCommand())
	rootCmd.AddCommand(commands.NewConfigCommand())
	rootCmd.AddCommand(commands.NewWorkspaceCommand())
	rootCmd.AddCommand(commands.NewFileCommand())
	rootCmd.AddCommand(commands.NewQueryCommand())
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		configDir := filepath.Join(home, ".quetzal")
		viper.AddConfigPath(configDir)
		viper.SetConfigType("yml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("QUETZAL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "Warning: failed to read config file: %v\n", err)
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
