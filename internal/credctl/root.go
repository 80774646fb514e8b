package credctl

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/dmitrijs2005/credengine/internal/common"
	gs "github.com/dmitrijs2005/credengine/internal/server/grpc"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
)

// TokenEnv names the environment variable holding the default access token.
const TokenEnv = "CREDENGINE_TOKEN"

type root struct {
	addr  string
	token string
	out   io.Writer
	dial  func(addr string) (*grpc.ClientConn, error)
}

func dialInsecure(addr string) (*grpc.ClientConn, error) {
	return grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
}

func rootCmd(r *root) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "credctl",
		Short:         "Administer the credential engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := cmd.PersistentFlags()
	pf.StringVarP(&r.addr, "addr", "a", "localhost:50061", "credential server address")
	pf.StringVar(&r.token, "token", os.Getenv(TokenEnv), "access token (default $"+TokenEnv+")")

	cmd.AddCommand(
		tokenCmd(r),
		verifyCmd(r),
		passwdCmd(r),
		setPasswordCmd(r),
		policyCmd(r),
		globalPolicyCmd(r),
		enableCmd(r),
		authorityCmd(r),
		secretCmd(r),
		hashCmd(r),
	)
	return cmd
}

// Execute runs the command tree with os.Args.
func Execute(ctx context.Context) error {
	r := &root{out: os.Stdout, dial: dialInsecure}
	return rootCmd(r).ExecuteContext(ctx)
}

// call sends one request to the server, attaching the access token when
// one is configured.
func (r *root) call(ctx context.Context, method string, req map[string]any) (*structpb.Struct, error) {
	conn, err := r.dial(r.addr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if r.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, common.AccessTokenHeaderName, r.token)
	}
	return gs.NewClient(conn).Call(ctx, method, req)
}

// print writes the reply fields as "key: value" lines in key order.
func (r *root) print(reply *structpb.Struct) {
	fields := reply.GetFields()
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(r.out, "%s: %s\n", k, fields[k].GetStringValue())
	}
}
