package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/quetzal-org/quetzal-client/internal/constants"
)

// Settings are the persisted, non-secret CLI settings.
type Settings struct {
	URL      string `json:"url"                 yaml:"url"`
	Username string `json:"username,omitempty"  yaml:"username,omitempty"`
	Insecure bool   `json:"insecure"            yaml:"insecure"`
	Output   string `json:"output"              yaml:"output"`
	PoolSize int    `json:"pool-size,omitempty" yaml:"pool-size,omitempty"`
	NATSURL  string `json:"nats-url,omitempty"  yaml:"nats-url,omitempty"`
}

// effectiveConfig is what config show prints. Secrets are masked.
type effectiveConfig struct {
	Settings   `yaml:",inline"`
	ConfigFile string `json:"config_file,omitempty" yaml:"config_file,omitempty"`
	Password   string `json:"password,omitempty"    yaml:"password,omitempty"`
	Token      string `json:"token,omitempty"       yaml:"token,omitempty"`
	APIKey     string `json:"api_key,omitempty"     yaml:"api_key,omitempty"`
}

func currentSettings() Settings {
	return Settings{
		URL:      viper.GetString("url"),
		Username: viper.GetString("username"),
		Insecure: viper.GetBool("insecure"),
		Output:   outputFormat(),
		PoolSize: viper.GetInt("pool-size"),
		NATSURL:  viper.GetString("nats-url"),
	}
}

func mask(value string) string {
	if value == "" {
		return ""
	}

	return Masked
}

// DefaultConfigPath returns $HOME/.quetzal/config.yml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to find home directory: %w", err)
	}

	return filepath.Join(home, ".quetzal", "config.yml"), nil
}

// saveSettings writes settings to path as YAML.
func saveSettings(path string, settings Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), constants.ConfigDirPerm); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, data, constants.ConfigFilePerm); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// NewConfigCommand creates the config command group
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
		Long:  "Show or save the settings used by the Quetzal CLI. Credentials are never written to disk.",
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigSaveCommand())

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			config := effectiveConfig{
				Settings:   currentSettings(),
				ConfigFile: viper.ConfigFileUsed(),
				Password:   mask(viper.GetString("password")),
				Token:      mask(viper.GetString("token")),
				APIKey:     mask(viper.GetString("api-key")),
			}

			return writeOutput(cmd.OutOrStdout(), outputFormat(), config, func(table *tablewriter.Table) {
				table.Header("Property", "Value")
				_ = table.Append("URL", config.URL)
				_ = table.Append("Username", config.Username)
				_ = table.Append("Password", config.Password)
				_ = table.Append("Token", config.Token)
				_ = table.Append("API Key", config.APIKey)
				_ = table.Append("Insecure", strconv.FormatBool(config.Insecure))
				_ = table.Append("Output", config.Output)
				_ = table.Append("Pool Size", strconv.Itoa(config.PoolSize))
				_ = table.Append("NATS URL", config.NATSURL)
				_ = table.Append("Config File", config.ConfigFile)
			})
		},
	}
}

func newConfigSaveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "save",
		Short: "Save the current non-secret settings to the config file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := viper.ConfigFileUsed()
			if path == "" {
				var err error

				path, err = DefaultConfigPath()
				if err != nil {
					return err
				}
			}

			if err := saveSettings(path, currentSettings()); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Configuration saved to %s\n", path)

			return nil
		},
	}
}
