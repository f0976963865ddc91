package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"veritas/internal/admin"
	"veritas/internal/admin/store/accounts"
	"veritas/internal/admin/store/roles"
	id "veritas/pkg/domain"
)

func newRoleCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "role",
		Short: "Manage user roles",
	}
	cmd.AddCommand(
		roleCommand(c, "grant-admin USER_ID", "Give a user the admin role", "granted admin to",
			func(svc *admin.Service, cmd *cobra.Command, userID id.UserID) error {
				return svc.GrantAdmin(cmd.Context(), userID)
			}),
		roleCommand(c, "revoke-admin USER_ID", "Take the admin role from a user", "revoked admin from",
			func(svc *admin.Service, cmd *cobra.Command, userID id.UserID) error {
				return svc.RevokeAdmin(cmd.Context(), userID)
			}),
	)
	return cmd
}

func roleCommand(c *cli, use, short, done string, apply func(*admin.Service, *cobra.Command, id.UserID) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := id.ParseUserID(args[0])
			if err != nil {
				return fmt.Errorf("invalid user id: %w", err)
			}
			pool, err := openPool(cmd, c)
			if err != nil {
				return err
			}
			defer pool.Close() //nolint:errcheck // process exits next

			svc := admin.NewService(nil, accounts.NewPostgres(pool.DB()), roles.NewPostgres(pool.DB()),
				admin.WithLogger(c.log))
			if err := apply(svc, cmd, userID); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), done, userID.String())
			return nil
		},
	}
}
