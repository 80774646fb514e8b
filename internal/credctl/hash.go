package credctl

import (
	"fmt"

	"github.com/dmitrijs2005/credengine/internal/common"
	"github.com/dmitrijs2005/credengine/internal/cryptox"
	"github.com/spf13/cobra"
)

type hash struct {
	algorithms     string
	recoverableKey string
	*root
}

func hashCmd(r *root) *cobra.Command {
	h := &hash{root: r}
	cmd := &cobra.Command{
		Use:   "hash",
		Short: "Print the secret blob for a password",
		Long:  `Hash a prompted password offline and print the encoded secret blob`,
		Args:  cobra.NoArgs,
		RunE:  h.RunE,
	}
	f := cmd.Flags()
	f.StringVar(&h.algorithms, "algorithms", "SALTED-SHA1,SMB-NT", "comma separated hash list")
	f.StringVar(&h.recoverableKey, "recoverable-key", "", "key material for the RECOVERABLE slot")
	return cmd
}

func (h *hash) RunE(cmd *cobra.Command, _ []string) error {
	algs, err := cryptox.ParseHashList(h.algorithms)
	if err != nil {
		return err
	}

	pw, err := GetPassword(cmd.ErrOrStderr(), "Password")
	if err != nil {
		return err
	}
	defer pw.Wipe()

	suite := cryptox.NewSuite([]byte(h.recoverableKey))
	defer suite.Close()

	blob, err := suite.Hash(pw.Bytes(), algs)
	if err != nil {
		return err
	}
	defer blob.Wipe()

	text := blob.Encode()
	defer common.WipeByteArray(text)

	fmt.Fprintln(h.out, string(text))
	return nil
}
