package grpc

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/credengine/internal/common"
	"github.com/dmitrijs2005/credengine/internal/server/policy"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// authFailed is the only thing an unauthenticated caller learns about a
// failed or disabled login.
const authFailed = "authentication failed"

func str(in *structpb.Struct, key string) string {
	return in.GetFields()[key].GetStringValue()
}

func required(in *structpb.Struct, key string) (string, error) {
	v := str(in, key)
	if v == "" {
		return "", status.Errorf(codes.InvalidArgument, "%s is required", key)
	}
	return v, nil
}

func binary(in *structpb.Struct, key string) ([]byte, error) {
	v := str(in, key)
	if v == "" {
		return nil, nil
	}
	b, err := base64.StdEncoding.DecodeString(v)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "%s: not base64", key)
	}
	return b, nil
}

func stringList(in *structpb.Struct, key string) []string {
	values := in.GetFields()[key].GetListValue().GetValues()
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, v.GetStringValue())
	}
	return out
}

func object(in *structpb.Struct, key string) *structpb.Struct {
	return in.GetFields()[key].GetStructValue()
}

func reply(fields map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	return out, nil
}

func ok() (*structpb.Struct, error) {
	return reply(map[string]any{"status": "OK"})
}

func policyFrom(in *structpb.Struct) (policy.Descriptor, error) {
	d, err := policy.ParseTokens(str(in, "policy"))
	if err != nil {
		return nil, toStatus(err)
	}
	return d, nil
}

// publicStatus is toStatus for the methods anyone may call. An account the
// engine cannot verify answers like a wrong password.
func publicStatus(err error) error {
	if errors.Is(err, common.ErrNotSupported) {
		return status.Error(codes.Unauthenticated, authFailed)
	}
	return toStatus(err)
}

// toStatus maps engine errors to gRPC status codes.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, isStatus := status.FromError(err); isStatus {
		return err
	}

	var verr *policy.ValidationError
	switch {
	case errors.Is(err, common.ErrVerificationFailed), errors.Is(err, common.ErrAccountDisabled):
		return status.Error(codes.Unauthenticated, authFailed)
	case errors.Is(err, common.ErrPasswordExpired):
		return status.Error(codes.FailedPrecondition, "password expired")
	case errors.Is(err, common.ErrNewPasswordRequired):
		return status.Error(codes.FailedPrecondition, "new password required")
	case errors.Is(err, common.ErrPermission):
		return status.Error(codes.PermissionDenied, "permission denied")
	case errors.Is(err, common.ErrNotSupported):
		return status.Error(codes.Unimplemented, "not supported")
	case errors.Is(err, common.ErrNotFound):
		return status.Error(codes.NotFound, "account not found")
	case errors.As(err, &verr):
		return status.Error(codes.InvalidArgument, verr.Message)
	case errors.Is(err, common.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return status.Error(codes.Internal, "internal error")
}

func base64Of(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

func errMissing(key string) error {
	return fmt.Errorf("%w: %s is required", common.ErrInvalidInput, key)
}
