package admin

import (
	"fmt"
	"os"
	"time"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"

	"github.com/xenking/kitchen-rush/internal/domain/auth"
)

// NewIssueTokenCommand creates the issue-token command, used to sign player
// tokens for local play and tests.
func NewIssueTokenCommand(*Options) *cobra.Command {
	var (
		secret string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "issue-token <player-id>",
		Short: "Sign a player token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("KITCHEN_AUTH_JWT_SECRET")
			}
			if secret == "" {
				return errors.New("secret is required: set --secret or KITCHEN_AUTH_JWT_SECRET")
			}
			tok, err := auth.NewTokens([]byte(secret)).Issue(args[0], ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "HMAC secret (or KITCHEN_AUTH_JWT_SECRET env)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
