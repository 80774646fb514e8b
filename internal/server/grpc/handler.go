package grpc

import (
	"context"

	"github.com/dmitrijs2005/credengine/internal/common"
	"github.com/dmitrijs2005/credengine/internal/cryptox"
	"github.com/dmitrijs2005/credengine/internal/secretx"
	"google.golang.org/protobuf/types/known/structpb"
)

func (s *GRPCServer) Ping(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return ok()
}

func (s *GRPCServer) Verify(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	name, err := required(req, "account")
	if err != nil {
		return nil, err
	}
	cred, err := credentialFrom(req)
	if err != nil {
		return nil, err
	}
	defer cred.Wipe()

	payload, err := s.creds.Verify(ctx, name, cred)
	if err != nil {
		return nil, publicStatus(err)
	}
	defer common.WipeByteArray(payload)

	out := map[string]any{"status": "OK"}
	if len(payload) > 0 {
		out["payload"] = base64Of(payload)
	}
	return reply(out)
}

func credentialFrom(req *structpb.Struct) (cryptox.Credential, error) {
	method := cryptox.MethodCleartext
	if m := str(req, "method"); m != "" {
		var err error
		if method, err = cryptox.ParseMethod(m); err != nil {
			return cryptox.Credential{}, toStatus(err)
		}
	}

	c := cryptox.Credential{
		Method:    method,
		User:      str(req, "user"),
		Domain:    str(req, "domain"),
		Timestamp: str(req, "timestamp"),
	}
	var err error
	if c.Challenge, err = binary(req, "challenge"); err != nil {
		return c, err
	}
	if c.PeerChallenge, err = binary(req, "peer_challenge"); err != nil {
		return c, err
	}
	if c.Response, err = binary(req, "response"); err != nil {
		return c, err
	}
	if method == cryptox.MethodCleartext {
		c.Password = secretx.FromString(str(req, "password"))
	}
	if d := object(req, "digest"); d != nil {
		c.Digest = cryptox.DigestParams{
			Username:  str(d, "username"),
			Realm:     str(d, "realm"),
			Nonce:     str(d, "nonce"),
			CNonce:    str(d, "cnonce"),
			NC:        str(d, "nc"),
			QOP:       str(d, "qop"),
			DigestURI: str(d, "digest_uri"),
			Authzid:   str(d, "authzid"),
			Response:  str(d, "response"),
			Method:    str(d, "method"),
		}
	}
	return c, nil
}

func (s *GRPCServer) ChangePassword(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	name, err := required(req, "account")
	if err != nil {
		return nil, err
	}
	oldPw := secretx.FromString(str(req, "old_password"))
	defer oldPw.Wipe()
	newPw := secretx.FromString(str(req, "new_password"))
	defer newPw.Wipe()

	if err := s.creds.ChangePassword(ctx, name, oldPw, newPw); err != nil {
		return nil, publicStatus(err)
	}
	return ok()
}

func (s *GRPCServer) SetPassword(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	name, err := required(req, "account")
	if err != nil {
		return nil, err
	}
	pw := secretx.FromString(str(req, "password"))
	defer pw.Wipe()

	if err := s.creds.SetPassword(ctx, CallerFromContext(ctx), name, pw); err != nil {
		return nil, toStatus(err)
	}
	return ok()
}

func (s *GRPCServer) GetPolicy(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	name, err := required(req, "account")
	if err != nil {
		return nil, err
	}
	account, effective, err := s.creds.GetPolicy(ctx, CallerFromContext(ctx), name)
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(map[string]any{"policy": account.Tokens(), "effective": effective.Tokens()})
}

func (s *GRPCServer) SetPolicy(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	name, err := required(req, "account")
	if err != nil {
		return nil, err
	}
	d, err := policyFrom(req)
	if err != nil {
		return nil, err
	}
	if err := s.creds.SetPolicy(ctx, CallerFromContext(ctx), name, d); err != nil {
		return nil, toStatus(err)
	}
	return ok()
}

func (s *GRPCServer) GetGlobalPolicy(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return reply(map[string]any{"policy": s.creds.GetGlobalPolicy(ctx).Tokens()})
}

func (s *GRPCServer) SetGlobalPolicy(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	d, err := policyFrom(req)
	if err != nil {
		return nil, err
	}
	if err := s.creds.SetGlobalPolicy(ctx, CallerFromContext(ctx), d); err != nil {
		return nil, toStatus(err)
	}
	return ok()
}

func (s *GRPCServer) EnableAccount(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	name, err := required(req, "account")
	if err != nil {
		return nil, err
	}
	if err := s.creds.EnableAccount(ctx, CallerFromContext(ctx), name); err != nil {
		return nil, toStatus(err)
	}
	return ok()
}

func (s *GRPCServer) SetAuthority(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	name, err := required(req, "account")
	if err != nil {
		return nil, err
	}
	values := stringList(req, "authority")
	if len(values) == 0 {
		return nil, toStatus(errMissing("authority"))
	}
	if err := s.creds.SetAuthority(ctx, CallerFromContext(ctx), name, values); err != nil {
		return nil, toStatus(err)
	}
	return ok()
}

func (s *GRPCServer) ReadSecret(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	name, err := required(req, "account")
	if err != nil {
		return nil, err
	}
	secret, err := s.creds.ReadSecret(ctx, CallerFromContext(ctx), name)
	if err != nil {
		return nil, toStatus(err)
	}
	defer common.WipeByteArray(secret)
	return reply(map[string]any{"secret": string(secret)})
}

func (s *GRPCServer) WriteSecret(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	name, err := required(req, "account")
	if err != nil {
		return nil, err
	}
	secret := secretx.FromString(str(req, "secret"))
	defer secret.Wipe()

	if err := s.creds.WriteSecret(ctx, CallerFromContext(ctx), name, secret); err != nil {
		return nil, toStatus(err)
	}
	return ok()
}
