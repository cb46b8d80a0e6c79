package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

// NewLoginCommand creates the login command
func NewLoginCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Log in to Quetzal",
		Long: `Exchange a username and password for an access token and print it.

The password is read from --password, QUETZAL_PASSWORD or the terminal.
Export the token as QUETZAL_TOKEN to reuse it in later commands.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if viper.GetString("username") == "" {
				return ErrCredentialsMissing
			}

			if viper.GetString("password") == "" {
				fmt.Fprint(cmd.ErrOrStderr(), "Password: ")

				password, err := readPassword()
				fmt.Fprintln(cmd.ErrOrStderr())

				if err != nil {
					return fmt.Errorf("failed to read password: %w", err)
				}

				viper.Set("password", password)
			}

			// a stale token would be used instead of the password
			viper.Set("token", "")

			ctx, cancel := commandContext(cmd)
			defer cancel()

			client, cleanup, err := newClient(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := client.Auth().Login(ctx); err != nil {
				return fmt.Errorf("login failed: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), client.Auth().Token())

			return nil
		},
	}
}

// NewLogoutCommand creates the logout command
func NewLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Invalidate the current access token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			client, cleanup, err := newClient(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := client.Auth().Logout(ctx); err != nil {
				return fmt.Errorf("logout failed: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")

			return nil
		},
	}
}

func readPassword() (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) { //nolint:unconvert // syscall.Stdin is not an int on every platform
		password, err := term.ReadPassword(int(syscall.Stdin)) //nolint:unconvert // see above
		if err != nil {
			return "", err
		}

		return string(password), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}

	return strings.TrimRight(line, "\r\n"), nil
}
