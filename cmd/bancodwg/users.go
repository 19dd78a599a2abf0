package main

import (
	"fmt"

	"github.com/EduardoaMelegari/banco-projetos/internal/auth"
	"github.com/spf13/cobra"
)

func init() {
	usersCmd := &cobra.Command{
		Use:   "users",
		Short: "Manage BancoDWG accounts",
	}
	usersCmd.AddCommand(newUsersListCmd())
	usersCmd.AddCommand(newUsersAddCmd())
	usersCmd.AddCommand(newUsersPasswdCmd())
	usersCmd.AddCommand(newUsersRemoveCmd())
	rootCmd.AddCommand(usersCmd)
}

// openUserStore loads the configured users file.
func openUserStore(cmd *cobra.Command) (*auth.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	cmd.SilenceUsage = true
	return auth.OpenStore(cfg.UsersFile)
}

// requireAdmin authenticates the invoking user and checks the admin role.
func requireAdmin(cmd *cobra.Command, store *auth.Store) error {
	username, password, err := promptCredentials(cmd, "Admin username: ")
	if err != nil {
		return err
	}
	user, err := store.Authenticate(username, password)
	if err != nil {
		return err
	}
	if !user.IsAdmin() {
		return fmt.Errorf("user %s: %w", username, auth.ErrUnauthorized)
	}
	return nil
}

func promptCredentials(cmd *cobra.Command, userLabel string) (string, string, error) {
	username, err := promptLine(cmd, userLabel)
	if err != nil {
		return "", "", err
	}
	password, err := promptLine(cmd, "Password: ")
	if err != nil {
		return "", "", err
	}
	return username, password, nil
}

func newUsersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openUserStore(cmd)
			if err != nil {
				return err
			}
			for _, user := range store.List() {
				role := string(user.Role)
				if user.IsAdmin() {
					role = cyan(role)
				}
				fmt.Printf("  %-20s %-28s %s\n", user.Username, user.DisplayName, role)
			}
			return nil
		},
	}
}

func newUsersAddCmd() *cobra.Command {
	var admin bool

	cmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openUserStore(cmd)
			if err != nil {
				return err
			}
			if err := requireAdmin(cmd, store); err != nil {
				return err
			}

			displayName, err := promptLine(cmd, "Display name: ")
			if err != nil {
				return err
			}
			password, err := promptLine(cmd, "New password: ")
			if err != nil {
				return err
			}

			role := auth.RoleUser
			if admin {
				role = auth.RoleAdmin
			}
			if err := store.AddUser(args[0], password, displayName, role); err != nil {
				return err
			}
			fmt.Printf("%s user %s (%s)\n", green("Created"), args[0], role)
			return nil
		},
	}

	cmd.Flags().BoolVar(&admin, "admin", false, "grant the admin role")
	return cmd
}

func newUsersPasswdCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "passwd <username>",
		Short: "Change an account password (requires the current one)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openUserStore(cmd)
			if err != nil {
				return err
			}

			current, err := promptLine(cmd, "Current password: ")
			if err != nil {
				return err
			}
			next, err := promptLine(cmd, "New password: ")
			if err != nil {
				return err
			}
			if err := store.ChangePassword(args[0], current, next); err != nil {
				return err
			}
			fmt.Printf("%s password for %s\n", green("Updated"), args[0])
			return nil
		},
	}
}

func newUsersRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <username>",
		Short: "Delete an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openUserStore(cmd)
			if err != nil {
				return err
			}
			if err := requireAdmin(cmd, store); err != nil {
				return err
			}

			if err := store.RemoveUser(args[0]); err != nil {
				return err
			}
			fmt.Printf("%s user %s\n", red("Removed"), args[0])
			return nil
		},
	}
}
