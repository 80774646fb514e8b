// Package grpc exposes the credential service over gRPC. Messages are
// google.protobuf.Struct values; binary fields travel as base64 strings.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/credengine/internal/cryptox"
	"github.com/dmitrijs2005/credengine/internal/logging"
	"github.com/dmitrijs2005/credengine/internal/secretx"
	"github.com/dmitrijs2005/credengine/internal/server/models"
	"github.com/dmitrijs2005/credengine/internal/server/policy"
	"google.golang.org/grpc"
)

// Credentials is the service behind the gRPC surface.
type Credentials interface {
	Verify(ctx context.Context, name string, cred cryptox.Credential) ([]byte, error)
	ChangePassword(ctx context.Context, name string, oldPassword, newPassword *secretx.Buffer) error
	SetPassword(ctx context.Context, caller models.Caller, name string, password *secretx.Buffer) error
	GetPolicy(ctx context.Context, caller models.Caller, name string) (account, effective policy.Descriptor, err error)
	SetPolicy(ctx context.Context, caller models.Caller, name string, d policy.Descriptor) error
	GetGlobalPolicy(ctx context.Context) policy.Descriptor
	SetGlobalPolicy(ctx context.Context, caller models.Caller, d policy.Descriptor) error
	EnableAccount(ctx context.Context, caller models.Caller, name string) error
	SetAuthority(ctx context.Context, caller models.Caller, name string, values []string) error
	ReadSecret(ctx context.Context, caller models.Caller, name string) ([]byte, error)
	WriteSecret(ctx context.Context, caller models.Caller, name string, secret *secretx.Buffer) error
}

type GRPCServer struct {
	address   string
	creds     Credentials
	logger    logging.Logger
	jwtSecret []byte
}

func NewGRPCServer(a string, l logging.Logger, creds Credentials, secretKey string) *GRPCServer {
	return &GRPCServer{
		address:   a,
		logger:    l.With("module", "grpc_server"),
		creds:     creds,
		jwtSecret: []byte(secretKey),
	}
}

// Register attaches the service to srv.
func (s *GRPCServer) Register(srv *grpc.Server) {
	srv.RegisterService(&ServiceDesc, s)
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	// creates gRPC-server
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.accessTokenInterceptor))

	// registers service
	s.Register(srv)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", s.address)

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
