package main

import (
	"fmt"
	"time"

	"tollway/config"
	httpHandler "tollway/internal/adapter/http/handler"
	"tollway/internal/service"

	"github.com/spf13/cobra"
)

func tokenCmd() *cobra.Command {
	var (
		subject string
		scopes  []string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an operator JWT for the history API",
		Long: `Issue an operator JWT signed with jwt.secret.

Examples:
  tollway token --subject ops-desk
  tollway token --subject auditor --scope history:read`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if cfg.JWT.Secret == "" {
				return fmt.Errorf("jwt.secret is not configured")
			}

			tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
			token, expiresAt, err := tokenSvc.Generate(subject, scopes)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", expiresAt.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVarP(&subject, "subject", "s", "", "operator name")
	cmd.Flags().StringSliceVar(&scopes, "scope", []string{httpHandler.ScopeHistoryRead}, "granted scopes")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
