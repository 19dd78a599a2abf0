package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newLoginCmd())
}

// login verifies credentials without starting a sync, so users can test
// their account before pointing the daemon at a bucket.
func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Verify credentials against the user store",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openUserStore(cmd)
			if err != nil {
				return err
			}

			username, password, err := promptCredentials(cmd, "Username: ")
			if err != nil {
				return err
			}

			user, err := store.Authenticate(username, password)
			if err != nil {
				return err
			}
			fmt.Printf("%s %s (%s, %s)\n", green("Credentials OK:"), user.Username, user.DisplayName, user.Role)
			return nil
		},
	}
}
