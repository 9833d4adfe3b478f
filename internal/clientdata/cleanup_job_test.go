package clientdata

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tickers(t *testing.T, db *sql.DB) []string {
	t.Helper()
	rows, err := db.Query("SELECT ticker FROM dividend_data ORDER BY ticker")
	require.NoError(t, err)
	defer rows.Close()

	var out []string
	for rows.Next() {
		var ticker string
		require.NoError(t, rows.Scan(&ticker))
		out = append(out, ticker)
	}
	require.NoError(t, rows.Err())
	return out
}

func seedExpiries(t *testing.T, db *sql.DB, expiries map[string]time.Time) {
	t.Helper()
	for ticker, at := range expiries {
		_, err := db.Exec("INSERT INTO dividend_data (ticker, data, expires_at) VALUES (?, ?, ?)",
			ticker, []byte{0x80}, at.Unix())
		require.NoError(t, err)
	}
}

func TestCleanupJobName(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	job := NewCleanupJob(NewRepository(db), zerolog.Nop())
	assert.Equal(t, "client_data_cleanup", job.Name())
}

func TestCleanupJobRun_KeepsStaleWithinGrace(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := NewRepository(db)
	repo.now = func() time.Time { return now }

	seedExpiries(t, db, map[string]time.Time{
		"ANCIENT": now.Add(-StaleGrace - time.Hour),
		"STALE":   now.Add(-time.Hour),
		"FRESH":   now.Add(time.Hour),
	})

	require.NoError(t, NewCleanupJob(repo, zerolog.Nop()).Run())
	assert.Equal(t, []string{"FRESH", "STALE"}, tickers(t, db))
}

func TestCleanupJobRun_ZeroGrace(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := NewRepository(db)
	repo.now = func() time.Time { return now }

	seedExpiries(t, db, map[string]time.Time{
		"A": now.Add(-time.Hour),
		"B": now.Add(-time.Minute),
		"C": now.Add(time.Hour),
	})

	job := NewCleanupJob(repo, zerolog.Nop()).WithGrace(-time.Hour)
	require.NoError(t, job.Run())
	assert.Equal(t, []string{"C"}, tickers(t, db))
}

func TestCleanupJobRun_Empty(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	job := NewCleanupJob(NewRepository(db), zerolog.Nop())
	assert.NoError(t, job.Run())
}

func TestCleanupJobRun_ClosedDB(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.Close())

	job := NewCleanupJob(NewRepository(db), zerolog.Nop())
	assert.Error(t, job.Run())
}
