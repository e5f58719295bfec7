package grpc

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/Additional-Code/seido/pkg/errorbank"
)

type flakyDB struct{ down atomic.Bool }

func (f *flakyDB) Ping(context.Context) error {
	if f.down.Load() {
		return errors.New("connection refused")
	}
	return nil
}

func check(t *testing.T, hs *health.Server) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := hs.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestWatchHealthFollowsDatabase(t *testing.T) {
	hs := health.NewServer()
	db := &flakyDB{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go WatchHealth(ctx, hs, db, 20*time.Millisecond, zap.NewNop())

	require.Eventually(t, func() bool {
		resp, err := hs.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
		return err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
	}, time.Second, 10*time.Millisecond)

	db.down.Store(true)
	require.Eventually(t, func() bool {
		return check(t, hs) == healthpb.HealthCheckResponse_NOT_SERVING
	}, time.Second, 10*time.Millisecond)
}

func TestToStatus(t *testing.T) {
	assert.NoError(t, toStatus(nil))

	st, ok := status.FromError(toStatus(errorbank.NotFound("customer not found")))
	require.True(t, ok)
	assert.Equal(t, codes.NotFound, st.Code())

	st, _ = status.FromError(toStatus(errors.New("boom")))
	assert.Equal(t, codes.Internal, st.Code())

	original := status.Error(codes.Unavailable, "later")
	assert.Equal(t, original, toStatus(original))
}
