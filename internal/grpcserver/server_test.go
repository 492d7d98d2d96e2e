package grpcserver_test

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"inakat/lifecycle-service/internal/dispatch"
	"inakat/lifecycle-service/internal/grpcserver"
	"inakat/lifecycle-service/internal/lifecycle"
	"inakat/lifecycle-service/internal/store/memory"
	"inakat/lifecycle-service/internal/tracker"
)

func newClient(t *testing.T) *grpcserver.Client {
	t.Helper()
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.New()
	store.SetAssignment(lifecycle.JobAssignment{JobID: "job-1", RecruiterID: "rec-1", CompanyID: "comp-1"})
	exec := lifecycle.NewExecutor(store, store, lifecycle.DefaultTable(lifecycle.AssignmentWarn), lifecycle.WithLogger(quiet))
	d := dispatch.New(dispatch.LogNotifier{Logger: quiet}, dispatch.NewMemoryDeduper(), dispatch.NewMemoryQueue(), dispatch.Config{Logger: quiet})
	svc := tracker.NewService(exec, store, d)

	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer()
	grpcserver.Register(gs, grpcserver.NewServer(svc))
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return grpcserver.NewClient(conn)
}

func as(role lifecycle.Role, userID string) context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), "x-user-id", userID, "x-user-role", string(role))
}

func msg(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func TestGRPC_SubmitTransitionAndView(t *testing.T) {
	c := newClient(t)

	created, err := c.Submit(as(lifecycle.RoleCandidate, "cand-1"), msg(t, map[string]any{
		"jobId": "job-1", "name": "Ana Ruiz", "email": "ana@example.com",
	}))
	require.NoError(t, err)
	id := created.GetFields()["id"].GetStringValue()
	require.NotEmpty(t, id)
	assert.Equal(t, "En revisión", created.GetFields()["status"].GetStringValue())

	res, err := c.RequestTransition(as(lifecycle.RoleRecruiter, "rec-1"), msg(t, map[string]any{
		"applicationId": id, "status": "reviewing", "notes": "call back",
	}))
	require.NoError(t, err)
	app := res.GetFields()["application"].GetStructValue().GetFields()
	assert.Equal(t, "reviewing", app["status"].GetStringValue())
	assert.Equal(t, "call back", app["notes"].GetStringValue())

	view, err := c.GetApplicationView(as(lifecycle.RoleCandidate, "cand-1"), msg(t, map[string]any{"applicationId": id}))
	require.NoError(t, err)
	assert.Equal(t, "En revisión", view.GetFields()["status"].GetStringValue())
	_, isNull := view.GetFields()["notes"].GetKind().(*structpb.Value_NullValue)
	assert.True(t, isNull, "notes must be null for candidates")
}

func TestGRPC_ErrorCodes(t *testing.T) {
	c := newClient(t)
	created, err := c.Submit(as(lifecycle.RoleCandidate, "cand-1"), msg(t, map[string]any{
		"jobId": "job-1", "name": "Ana Ruiz", "email": "ana@example.com",
	}))
	require.NoError(t, err)
	id := created.GetFields()["id"].GetStringValue()

	cases := []struct {
		name string
		call func() error
		want codes.Code
	}{
		{"missing metadata", func() error {
			_, err := c.GetApplicationView(context.Background(), msg(t, map[string]any{"applicationId": id}))
			return err
		}, codes.Unauthenticated},
		{"company cannot see pending", func() error {
			_, err := c.GetApplicationView(as(lifecycle.RoleCompany, "comp-1"), msg(t, map[string]any{"applicationId": id}))
			return err
		}, codes.NotFound},
		{"not an allowed edge", func() error {
			_, err := c.RequestTransition(as(lifecycle.RoleRecruiter, "rec-1"), msg(t, map[string]any{"applicationId": id, "status": "sent_to_company"}))
			return err
		}, codes.FailedPrecondition},
		{"unknown status", func() error {
			_, err := c.RequestTransition(as(lifecycle.RoleRecruiter, "rec-1"), msg(t, map[string]any{"applicationId": id, "status": "hired"}))
			return err
		}, codes.InvalidArgument},
		{"missing status", func() error {
			_, err := c.RequestTransition(as(lifecycle.RoleRecruiter, "rec-1"), msg(t, map[string]any{"applicationId": id}))
			return err
		}, codes.InvalidArgument},
		{"duplicate", func() error {
			_, err := c.Submit(as(lifecycle.RoleCandidate, "cand-1"), msg(t, map[string]any{
				"jobId": "job-1", "name": "Ana Ruiz", "email": "ANA@example.com",
			}))
			return err
		}, codes.AlreadyExists},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, status.Code(tc.call()))
		})
	}
}
