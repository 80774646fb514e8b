package credctl

import (
	"fmt"

	gs "github.com/dmitrijs2005/credengine/internal/server/grpc"
	"github.com/spf13/cobra"
)

func enableCmd(r *root) *cobra.Command {
	return &cobra.Command{
		Use:   "enable ACCOUNT",
		Short: "Re-enable a disabled account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := r.call(cmd.Context(), gs.MethodEnableAccount, map[string]any{"account": args[0]}); err != nil {
				return err
			}
			fmt.Fprintln(r.out, "OK")
			return nil
		},
	}
}

func authorityCmd(r *root) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authority [command]",
		Short: "Manage an account's authority list",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set ACCOUNT ENTRY...",
		Short: "Replace the authority list",
		Long:  `Replace the authority list, e.g. "ShadowHash;1;HASHLIST:<SALTED-SHA1,SMB-NT>"`,
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			values := make([]any, 0, len(args)-1)
			for _, v := range args[1:] {
				values = append(values, v)
			}
			_, err := r.call(cmd.Context(), gs.MethodSetAuthority, map[string]any{
				"account":   args[0],
				"authority": values,
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

func secretCmd(r *root) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret [command]",
		Short: "Access the raw secret blob (admin)",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "read ACCOUNT",
		Short: "Print the encoded secret blob",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reply, err := r.call(cmd.Context(), gs.MethodReadSecret, map[string]any{"account": args[0]})
			if err != nil {
				return err
			}
			fmt.Fprintln(r.out, reply.GetFields()["secret"].GetStringValue())
			return nil
		},
	})
	return cmd
}
