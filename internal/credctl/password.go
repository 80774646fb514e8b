package credctl

import (
	"fmt"

	gs "github.com/dmitrijs2005/credengine/internal/server/grpc"
	"github.com/spf13/cobra"
)

func passwdCmd(r *root) *cobra.Command {
	return &cobra.Command{
		Use:   "passwd ACCOUNT",
		Short: "Change an account password",
		Long:  `Change the password of an account, proving knowledge of the old one`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			oldPw, err := GetPassword(cmd.ErrOrStderr(), "Old password")
			if err != nil {
				return err
			}
			defer oldPw.Wipe()

			newPw, err := GetNewPassword(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer newPw.Wipe()

			_, err = r.call(cmd.Context(), gs.MethodChangePassword, map[string]any{
				"account":      args[0],
				"old_password": string(oldPw.Bytes()),
				"new_password": string(newPw.Bytes()),
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(r.out, "OK")
			return nil
		},
	}
}

func setPasswordCmd(r *root) *cobra.Command {
	return &cobra.Command{
		Use:   "set-password ACCOUNT",
		Short: "Set an account password (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := GetNewPassword(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer pw.Wipe()

			_, err = r.call(cmd.Context(), gs.MethodSetPassword, map[string]any{
				"account":  args[0],
				"password": string(pw.Bytes()),
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(r.out, "OK")
			return nil
		},
	}
}
