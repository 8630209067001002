package session_test

import (
	"fmt"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"testing"

	httpapi "github.com/plumeapp/plume/internal/session/http"
	"github.com/plumeapp/plume/internal/session/metrics"
	"github.com/plumeapp/plume/internal/session/service"
	"github.com/plumeapp/plume/internal/session/store/drivers/sqlite"
	"github.com/stretchr/testify/require"
)

// setupSessionServer spins up the full HTTP surface against a throwaway
// sqlite database and returns its base URL. Each test gets its own server
// so rate limit windows never bleed between tests.
func setupSessionServer(t *testing.T) string {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "e2e.db")
	st, err := sqlite.NewStore(fmt.Sprintf("file:%s?_busy_timeout=5000", dbPath))
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	logger := slog.New(slog.DiscardHandler)
	router := httpapi.NewRouter("e2e", st, metrics.New(), logger)
	router.SyncService = &service.SyncService{Store: st}
	router.ActivityService = &service.ActivityService{Store: st}
	router.VerifyService = &service.VerifyService{Store: st}
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return srv.URL
}
