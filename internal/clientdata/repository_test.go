package clientdata

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

// testSchema creates all tables needed for testing
const testSchema = `
CREATE TABLE dividend_data (ticker TEXT PRIMARY KEY, data BLOB NOT NULL, expires_at INTEGER NOT NULL);
CREATE INDEX idx_dividend_data_expires ON dividend_data(expires_at);
`

type cachedPayload struct {
	Ticker  string
	Rate    string
	Amounts []float64
}

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)

	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	return db
}

func TestNewRepository(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)
	assert.NotNil(t, repo)
}

func TestStore(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)

	data := cachedPayload{Ticker: "KO", Rate: "1.94", Amounts: []float64{0.485, 0.485}}
	err := repo.Store(TableDividendData, "KO", data, TTLDividends)
	require.NoError(t, err)

	var blob []byte
	var expiresAt int64
	err = db.QueryRow("SELECT data, expires_at FROM dividend_data WHERE ticker = ?", "KO").Scan(&blob, &expiresAt)
	require.NoError(t, err)

	// Stored as msgpack
	var parsed cachedPayload
	require.NoError(t, msgpack.Unmarshal(blob, &parsed))
	assert.Equal(t, data, parsed)

	expected := time.Now().Add(TTLDividends).Unix()
	assert.InDelta(t, expected, expiresAt, 5)
}

func TestStore_Upserts(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)

	require.NoError(t, repo.Store(TableDividendData, "KO", cachedPayload{Rate: "1.84"}, time.Hour))
	require.NoError(t, repo.Store(TableDividendData, "KO", cachedPayload{Rate: "1.94"}, time.Hour))

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM dividend_data").Scan(&count))
	assert.Equal(t, 1, count)

	var got cachedPayload
	found, err := repo.GetIfFresh(TableDividendData, "KO", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "1.94", got.Rate)
}

func TestInvalidTable(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)

	err := repo.Store("users; DROP TABLE dividend_data", "x", cachedPayload{}, time.Hour)
	assert.ErrorContains(t, err, "invalid table name")

	_, err = repo.GetIfFresh("nope", "x", &cachedPayload{})
	assert.Error(t, err)

	_, err = repo.Get("nope", "x", &cachedPayload{})
	assert.Error(t, err)

	_, err = repo.DeleteExpired("nope")
	assert.Error(t, err)

	_, _, err = repo.Count("nope")
	assert.Error(t, err)

	assert.Error(t, repo.Delete("nope", "x"))
}

func TestGetIfFresh(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	require.NoError(t, repo.Store(TableDividendData, "KO", cachedPayload{Rate: "1.94"}, time.Hour))

	t.Run("fresh entry", func(t *testing.T) {
		var got cachedPayload
		found, err := repo.GetIfFresh(TableDividendData, "KO", &got)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "1.94", got.Rate)
	})

	t.Run("missing key", func(t *testing.T) {
		var got cachedPayload
		found, err := repo.GetIfFresh(TableDividendData, "PEP", &got)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("expired entry is hidden but still readable via Get", func(t *testing.T) {
		now = now.Add(2 * time.Hour)

		var got cachedPayload
		found, err := repo.GetIfFresh(TableDividendData, "KO", &got)
		require.NoError(t, err)
		assert.False(t, found)

		found, err = repo.Get(TableDividendData, "KO", &got)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "1.94", got.Rate)
	})
}

func TestDelete(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)
	require.NoError(t, repo.Store(TableDividendData, "KO", cachedPayload{}, time.Hour))
	require.NoError(t, repo.Delete(TableDividendData, "KO"))

	found, err := repo.Get(TableDividendData, "KO", &cachedPayload{})
	require.NoError(t, err)
	assert.False(t, found)
}

func TestPurge(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := NewRepository(db)
	repo.now = func() time.Time { return now }

	seedExpiries(t, db, map[string]time.Time{
		"OLD":   now.Add(-48 * time.Hour),
		"STALE": now.Add(-time.Hour),
		"NEW":   now.Add(time.Hour),
	})

	total, expired, err := repo.Count(TableDividendData)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Equal(t, int64(2), expired)

	counts, err := repo.Purge(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{TableDividendData: 1}, counts)

	deleted, err := repo.DeleteExpired(TableDividendData)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	counts, err = repo.DeleteAllExpired()
	require.NoError(t, err)
	assert.Equal(t, int64(0), counts[TableDividendData])

	assert.Equal(t, []string{"NEW"}, tickers(t, db))
}
