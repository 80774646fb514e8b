package credctl

import (
	"fmt"
	"strings"

	gs "github.com/dmitrijs2005/credengine/internal/server/grpc"
	"github.com/spf13/cobra"
)

func policyCmd(r *root) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy [command]",
		Short: "Read or replace an account's password policy",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get ACCOUNT",
		Short: "Show the account policy and the effective policy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reply, err := r.call(cmd.Context(), gs.MethodGetPolicy, map[string]any{"account": args[0]})
			if err != nil {
				return err
			}
			r.print(reply)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set ACCOUNT KEY=VALUE...",
		Short: "Replace the account policy",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := r.call(cmd.Context(), gs.MethodSetPolicy, map[string]any{
				"account": args[0],
				"policy":  strings.Join(args[1:], " "),
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(r.out, "OK")
			return nil
		},
	})
	return cmd
}

func globalPolicyCmd(r *root) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "global-policy [command]",
		Short: "Read or replace the global password policy",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Show the global policy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reply, err := r.call(cmd.Context(), gs.MethodGetGlobalPolicy, map[string]any{})
			if err != nil {
				return err
			}
			r.print(reply)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set KEY=VALUE...",
		Short: "Replace the global policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := r.call(cmd.Context(), gs.MethodSetGlobalPolicy, map[string]any{
				"policy": strings.Join(args, " "),
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(r.out, "OK")
			return nil
		},
	})
	return cmd
}
