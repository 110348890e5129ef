package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/isdelr/metrics-bridge/internal/config"
	"github.com/isdelr/metrics-bridge/internal/logger"
	"github.com/isdelr/metrics-bridge/internal/services"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var passwdCmd = &cobra.Command{
	Use:   "passwd <username>",
	Short: "Set a user's password offline",
	Long: `Reset the password of an existing user directly in the users file.

Run it while the bridge is stopped, for example right after the first start
to replace the default admin password. The password is read twice from the
terminal, or once per line from standard input when it is not a terminal.

Examples:
  metrics-bridge passwd admin
  printf 'newpass\nnewpass\n' | metrics-bridge passwd admin`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return passwdCommand(cmd, args[0])
	},
}

func passwdCommand(cmd *cobra.Command, username string) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}
	logger.Init(cfg.Log.Level, cfg.Log.Pretty)

	users, err := services.NewUserService(cfg.UsersPath, services.DefaultHashParams)
	if err != nil {
		return fmt.Errorf("failed to load users: %w", err)
	}
	if _, ok := users.GetUser(username); !ok {
		return fmt.Errorf("user %q: %w", username, services.ErrUserNotFound)
	}

	read := passwordReader(cmd.InOrStdin(), cmd.ErrOrStderr())
	password, err := read("New password: ")
	if err != nil {
		return err
	}
	confirm, err := read("Confirm password: ")
	if err != nil {
		return err
	}
	if err := services.ValidateNewPassword(password, confirm); err != nil {
		return err
	}

	if err := users.ResetPassword(username, password); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Password updated for %s\n", strings.ToLower(username))
	return nil
}

// passwordReader prompts without echo on a terminal and reads plain lines otherwise.
func passwordReader(in io.Reader, prompt io.Writer) func(label string) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return func(label string) (string, error) {
			fmt.Fprint(prompt, label)
			b, err := term.ReadPassword(int(f.Fd()))
			fmt.Fprintln(prompt)
			if err != nil {
				return "", fmt.Errorf("failed to read password: %w", err)
			}
			return string(b), nil
		}
	}

	scanner := bufio.NewScanner(in)
	return func(string) (string, error) {
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return "", fmt.Errorf("failed to read password: %w", err)
			}
			return "", errors.New("unexpected end of input")
		}
		return strings.TrimRight(scanner.Text(), "\r"), nil
	}
}
