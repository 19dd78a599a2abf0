package main

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/EduardoaMelegari/banco-projetos/internal/app"
	"github.com/EduardoaMelegari/banco-projetos/internal/config"
	"github.com/EduardoaMelegari/banco-projetos/internal/version"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	red    = color.New(color.FgHiRed, color.Bold).SprintFunc()
	green  = color.New(color.FgHiGreen).SprintFunc()
	cyan   = color.New(color.FgHiCyan).SprintFunc()
	yellow = color.New(color.FgHiYellow).SprintFunc()
)

func defaultConfigPath() string {
	return config.DefaultConfigPath
}

var rootCmd = &cobra.Command{
	Use:     "bancodwg",
	Short:   "BancoDWG keeps a local DWG cache in sync with the project bucket",
	Version: version.Detailed(),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cmd.SilenceUsage = true

		a, err := app.New(cfg)
		if err != nil {
			return err
		}

		token, err := loginFromCLI(cmd, a)
		if err != nil {
			return err
		}

		defer slog.Info("Bye!")
		return a.Start(cmd.Context(), token)
	},
}

func init() {
	rootCmd.PersistentFlags().SortFlags = false
	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultConfigPath, "BancoDWG config file")
	rootCmd.PersistentFlags().StringP("user", "u", "", "username (or BANCODWG_USER)")
	rootCmd.PersistentFlags().StringP("password", "p", "", "password (or BANCODWG_PASSWORD)")
}

// loadConfig resolves the config file from the flag, binds credentials
// from the environment and returns the validated config.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	viper.SetEnvPrefix("BANCODWG")
	viper.AutomaticEnv()
	viper.BindPFlag("user", cmd.Flags().Lookup("user"))
	viper.BindPFlag("password", cmd.Flags().Lookup("password"))

	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("no config at %s, run %s first", path, cyan("bancodwg setup"))
		}
		return nil, err
	}
	return cfg, nil
}

// loginFromCLI authenticates with the flag/env credentials, prompting on
// the terminal for whatever is missing.
func loginFromCLI(cmd *cobra.Command, a *app.App) (string, error) {
	username := viper.GetString("user")
	password := viper.GetString("password")

	var err error
	if username == "" {
		if username, err = promptLine(cmd, "Username: "); err != nil {
			return "", err
		}
	}
	if password == "" {
		if password, err = promptLine(cmd, "Password: "); err != nil {
			return "", err
		}
	}

	session, err := a.Login(username, password)
	if err != nil {
		return "", err
	}
	fmt.Printf("%s as %s (%s)\n", green("Logged in"), session.Username, session.Role)
	return session.Token, nil
}

func promptLine(cmd *cobra.Command, label string) (string, error) {
	fmt.Print(label)
	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
