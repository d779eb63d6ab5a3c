package cmd

import (
	"fmt"

	"github.com/naka-gawa/github-contributions/internal/domain"
	"github.com/spf13/cobra"
)

func newWhoamiCmd() *cobra.Command {
	var username, token string
	whoamiCmd := &cobra.Command{
		Use:   "whoami",
		Short: "Shows the user a report would track and the remaining API quota",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			logger := newLogger(cmd)

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if token != "" {
				cfg.GitHub.Token = token
			}

			gw, _, err := newGateway(cfg, domain.RateLimitDefault, logger)
			if err != nil {
				return err
			}
			identity, err := gw.ResolveIdentity(ctx, username)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "User: %s\n", identity.Login)
			fmt.Fprintf(out, "Token owner: %t\n", identity.Authenticated)

			quotas, err := gw.RateLimits(ctx)
			if err != nil {
				logger.WithError(err).Warn("Could not read rate limits")
				return nil
			}
			for _, q := range quotas {
				fmt.Fprintf(out, "Rate limit %-8s %5d/%-5d resets %s\n", q.Name+":", q.Remaining, q.Limit, q.Reset.Local().Format("15:04:05"))
			}
			return nil
		},
	}
	whoamiCmd.Flags().StringVarP(&username, "username", "u", "", "GitHub user to resolve (default: the token owner)")
	whoamiCmd.Flags().StringVarP(&token, "token", "t", "", "GitHub token (default: GITHUB_TOKEN)")
	return whoamiCmd
}
