package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	jwttoken "veritas/internal/jwt_token"
	id "veritas/pkg/domain"
)

type tokenOutput struct {
	Token     string `json:"token"`
	Type      string `json:"type"`
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
	ExpiresIn string `json:"expires_in"`
}

// newTokenCommand mints development tokens signed with the configured key.
// Production tokens come from the external auth provider.
func newTokenCommand(c *cli) *cobra.Command {
	var (
		userID string
		role   string
		ttl    time.Duration
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development access token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if c.cfg.IsProduction() {
				return errors.New("refusing to mint tokens in production")
			}
			uid := id.UserID(uuid.New())
			if userID != "" {
				parsed, err := id.ParseUserID(userID)
				if err != nil {
					return fmt.Errorf("invalid --user-id: %w", err)
				}
				uid = parsed
			}
			if role != jwttoken.RoleUser && role != jwttoken.RoleAdmin {
				return fmt.Errorf("--role must be %q or %q", jwttoken.RoleUser, jwttoken.RoleAdmin)
			}
			if ttl <= 0 {
				ttl = c.cfg.Auth.TokenTTL
			}

			svc := jwttoken.NewJWTService(c.cfg.Auth.SigningKey, c.cfg.Auth.Issuer, c.cfg.Auth.Audience, ttl)
			svc.SetEnv(c.cfg.Server.Environment)
			token, err := svc.GenerateAccessToken(cmd.Context(), uid, id.SessionID(uuid.New()), role)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !asJSON {
				fmt.Fprintln(out, token)
				return nil
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(tokenOutput{
				Token:     token,
				Type:      "Bearer",
				UserID:    uid.String(),
				Role:      role,
				ExpiresIn: ttl.String(),
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user-id", "", "user id (UUID), generated if empty")
	cmd.Flags().StringVar(&role, "role", jwttoken.RoleUser, "role claim: user or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime, defaults to auth.token_ttl")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of the bare token")
	return cmd
}
