package service_test

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/plumeapp/plume/internal/session/service"
	"github.com/stretchr/testify/require"
)

func TestHousekeeping_StartRunsCleanupAndStops(t *testing.T) {
	st := &stubStore{}
	st.sessions.deleted = 3

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.NewHousekeepingService(st, logger, time.Hour, 24*time.Hour)

	// Start triggers an immediate cleanup pass; Stop must not hang
	svc.Start()

	done := make(chan struct{})
	go func() {
		svc.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("housekeeping did not stop in time")
	}
}

func TestHousekeeping_Defaults(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.NewHousekeepingService(&stubStore{}, logger, 0, 0)

	require.Equal(t, time.Hour, svc.Interval)
	require.Equal(t, 30*24*time.Hour, svc.Retention)
}
