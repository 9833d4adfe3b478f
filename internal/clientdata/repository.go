// Package clientdata is the persistent response cache behind the upstream
// market data client. Entries are msgpack blobs keyed by ticker with an
// expiry timestamp; expired entries stay readable as a fallback until the
// cleanup job purges them.
package clientdata

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// TableDividendData caches per-ticker dividend data.
const TableDividendData = "dividend_data"

// cacheTable describes one cache table in client_data.db.
type cacheTable struct {
	name   string
	keyCol string
}

var cacheTables = map[string]cacheTable{
	TableDividendData: {name: TableDividendData, keyCol: "ticker"},
}

// AllTables lists the cache tables in purge order.
var AllTables = []string{TableDividendData}

// Repository reads and writes cache entries.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// NewRepository creates a repository on an open client_data connection.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// lookup resolves a table name against the known set. Table names are
// interpolated into SQL, so anything unknown is rejected here.
func lookup(table string) (cacheTable, error) {
	t, ok := cacheTables[table]
	if !ok {
		return cacheTable{}, fmt.Errorf("invalid table name: %s", table)
	}
	return t, nil
}

// Store upserts an entry that expires ttl from now.
func (r *Repository) Store(table, key string, data interface{}, ttl time.Duration) error {
	t, err := lookup(table)
	if err != nil {
		return err
	}

	blob, err := msgpack.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode %s entry %s: %w", table, key, err)
	}

	stmt := fmt.Sprintf(`INSERT INTO %s (%s, data, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(%s) DO UPDATE SET data = excluded.data, expires_at = excluded.expires_at`,
		t.name, t.keyCol, t.keyCol)
	if _, err := r.db.Exec(stmt, key, blob, r.now().Add(ttl).Unix()); err != nil {
		return fmt.Errorf("failed to store %s entry %s: %w", table, key, err)
	}
	return nil
}

// GetIfFresh decodes an unexpired entry into out. It reports false when the
// key is absent or expired.
func (r *Repository) GetIfFresh(table, key string, out interface{}) (bool, error) {
	t, err := lookup(table)
	if err != nil {
		return false, err
	}
	q := fmt.Sprintf("SELECT data FROM %s WHERE %s = ? AND expires_at > ?", t.name, t.keyCol)
	return r.decodeRow(t, out, q, key, r.now().Unix())
}

// Get decodes an entry into out whether or not it has expired. The market
// data client uses it when the upstream is unavailable.
func (r *Repository) Get(table, key string, out interface{}) (bool, error) {
	t, err := lookup(table)
	if err != nil {
		return false, err
	}
	q := fmt.Sprintf("SELECT data FROM %s WHERE %s = ?", t.name, t.keyCol)
	return r.decodeRow(t, out, q, key)
}

func (r *Repository) decodeRow(t cacheTable, out interface{}, q string, args ...interface{}) (bool, error) {
	var blob []byte
	switch err := r.db.QueryRow(q, args...).Scan(&blob); {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("failed to read %s: %w", t.name, err)
	}
	if err := msgpack.Unmarshal(blob, out); err != nil {
		return false, fmt.Errorf("failed to decode %s entry: %w", t.name, err)
	}
	return true, nil
}

// Delete drops one entry. Deleting a missing key is not an error.
func (r *Repository) Delete(table, key string) error {
	t, err := lookup(table)
	if err != nil {
		return err
	}
	q := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", t.name, t.keyCol)
	if _, err := r.db.Exec(q, key); err != nil {
		return fmt.Errorf("failed to delete %s entry %s: %w", table, key, err)
	}
	return nil
}

// DeleteExpired removes entries of one table that expired before now.
func (r *Repository) DeleteExpired(table string) (int64, error) {
	return r.DeleteExpiredBefore(table, r.now())
}

// DeleteExpiredBefore removes entries of one table whose expiry is earlier
// than cutoff and returns how many were removed.
func (r *Repository) DeleteExpiredBefore(table string, cutoff time.Time) (int64, error) {
	t, err := lookup(table)
	if err != nil {
		return 0, err
	}
	res, err := r.db.Exec(fmt.Sprintf("DELETE FROM %s WHERE expires_at < ?", t.name), cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to purge %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged rows in %s: %w", table, err)
	}
	return n, nil
}

// DeleteAllExpired runs DeleteExpired over every table.
func (r *Repository) DeleteAllExpired() (map[string]int64, error) {
	return r.Purge(0)
}

// Purge removes entries from every table that expired more than grace ago.
// Counts for tables already purged are returned alongside an error.
func (r *Repository) Purge(grace time.Duration) (map[string]int64, error) {
	cutoff := r.now().Add(-grace)
	counts := make(map[string]int64, len(AllTables))
	for _, table := range AllTables {
		n, err := r.DeleteExpiredBefore(table, cutoff)
		if err != nil {
			return counts, err
		}
		counts[table] = n
	}
	return counts, nil
}

// Count returns the number of entries in a table and how many of them are
// past their expiry.
func (r *Repository) Count(table string) (total, expired int64, err error) {
	t, err := lookup(table)
	if err != nil {
		return 0, 0, err
	}
	q := fmt.Sprintf("SELECT COUNT(*), COALESCE(SUM(CASE WHEN expires_at <= ? THEN 1 ELSE 0 END), 0) FROM %s", t.name)
	if err := r.db.QueryRow(q, r.now().Unix()).Scan(&total, &expired); err != nil {
		return 0, 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return total, expired, nil
}
