package credctl

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/dmitrijs2005/credengine/internal/common"
	"github.com/dmitrijs2005/credengine/internal/cryptox"
	gs "github.com/dmitrijs2005/credengine/internal/server/grpc"
	"github.com/spf13/cobra"
)

type verify struct {
	method    string
	realm     string
	digestURI string
	*root
}

func verifyCmd(r *root) *cobra.Command {
	v := &verify{root: r}
	cmd := &cobra.Command{
		Use:   "verify ACCOUNT",
		Short: "Check an account password",
		Long: `Check an account password. With a challenge-response method the
challenge is generated locally and only the computed response is sent`,
		Args: cobra.ExactArgs(1),
		RunE: v.RunE,
	}
	f := cmd.Flags()
	f.StringVar(&v.method, "method", "cleartext", "cleartext, cram-md5, mschapv2 or digest-md5")
	f.StringVar(&v.realm, "realm", "", "DIGEST-MD5 realm")
	f.StringVar(&v.digestURI, "digest-uri", "imap/localhost", "DIGEST-MD5 digest-uri")
	return cmd
}

func (v *verify) RunE(cmd *cobra.Command, args []string) error {
	pw, err := GetPassword(cmd.ErrOrStderr(), "Password")
	if err != nil {
		return err
	}
	defer pw.Wipe()

	req := map[string]any{"account": args[0], "method": v.method}
	switch v.method {
	case cryptox.MethodCleartext.String():
		req["password"] = string(pw.Bytes())
	case cryptox.MethodCRAMMD5.String():
		challenge := fmt.Sprintf("<%s@credctl>", nonce())
		req["challenge"] = encode([]byte(challenge))
		req["response"] = encode([]byte(cryptox.CRAMResponse(pw.Bytes(), []byte(challenge))))
	case cryptox.MethodMSCHAPv2.String():
		peer := common.GenerateRandByteArray(cryptox.MSCHAPChallengeSize)
		auth := common.GenerateRandByteArray(cryptox.MSCHAPChallengeSize)
		nt := cryptox.NTHash(pw.Bytes())
		defer common.WipeByteArray(nt)
		resp, err := cryptox.MSCHAPv2Response(nt, peer, auth, args[0])
		if err != nil {
			return err
		}
		req["user"] = args[0]
		req["challenge"] = encode(auth)
		req["peer_challenge"] = encode(peer)
		req["response"] = encode(resp)
	case cryptox.MethodDigestMD5.String():
		p := cryptox.DigestParams{
			Username:  args[0],
			Realm:     v.realm,
			Nonce:     nonce(),
			CNonce:    nonce(),
			NC:        "00000001",
			QOP:       "auth",
			DigestURI: v.digestURI,
		}
		req["digest"] = map[string]any{
			"username":   p.Username,
			"realm":      p.Realm,
			"nonce":      p.Nonce,
			"cnonce":     p.CNonce,
			"nc":         p.NC,
			"qop":        p.QOP,
			"digest_uri": p.DigestURI,
			"response":   cryptox.DigestMD5Response(p, pw.Bytes()),
		}
	default:
		return fmt.Errorf("unsupported method %q", v.method)
	}

	reply, err := v.call(cmd.Context(), gs.MethodVerify, req)
	if err != nil {
		return err
	}
	fmt.Fprintln(v.out, "OK")
	if p := reply.GetFields()["payload"].GetStringValue(); p != "" {
		if b, err := base64.StdEncoding.DecodeString(p); err == nil {
			fmt.Fprintln(v.out, string(b))
		}
	}
	return nil
}

func nonce() string {
	return hex.EncodeToString(common.GenerateRandByteArray(16))
}

func encode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}
