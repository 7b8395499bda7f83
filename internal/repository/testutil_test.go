package repository

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/haloboard/marketfeed/internal/database"
)

// newTestDB opens a throwaway SQLite database under the test's temp
// directory and applies the market schema, the same on-disk setup
// production uses (modernc.org/sqlite has no reliable ":memory:" sharing
// across connections, so a real temp file is simpler than faking one).
func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "test.db"),
		Profile: database.ProfileStandard,
		Name:    "test",
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })
	return db
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
