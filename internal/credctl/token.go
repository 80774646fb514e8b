package credctl

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/credengine/internal/server/auth"
	"github.com/spf13/cobra"
)

type token struct {
	subject   string
	admin     bool
	secretKey string
	validity  time.Duration
	*root
}

func tokenCmd(r *root) *cobra.Command {
	t := &token{root: r}
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token",
		Long:  `Sign an access token offline with the server's secret key`,
		Args:  cobra.NoArgs,
		RunE:  t.RunE,
	}
	f := cmd.Flags()
	f.StringVar(&t.subject, "subject", "", "token subject (account name)")
	f.BoolVar(&t.admin, "admin", false, "grant administrative privileges")
	f.StringVar(&t.secretKey, "secret-key", "", "server secret key")
	f.DurationVar(&t.validity, "validity", 15*time.Minute, "token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	_ = cmd.MarkFlagRequired("secret-key")
	return cmd
}

func (t *token) RunE(_ *cobra.Command, _ []string) error {
	s, err := auth.GenerateToken(t.subject, t.admin, []byte(t.secretKey), t.validity)
	if err != nil {
		return err
	}
	fmt.Fprintln(t.out, s)
	return nil
}
