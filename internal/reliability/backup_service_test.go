package reliability

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aristath/divtrack/internal/database"
	testingpkg "github.com/aristath/divtrack/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryStore is an in-memory ObjectStore
type memoryStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	deleteErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: make(map[string][]byte)}
}

func (m *memoryStore) Upload(_ context.Context, key string, body io.Reader, _ int64) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memoryStore) List(_ context.Context, prefix string) ([]ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ObjectInfo
	for key, data := range m.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, ObjectInfo{Key: key, SizeBytes: int64(len(data))})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memoryStore) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func readArchive(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	gz, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer gz.Close()

	files := make(map[string][]byte)
	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		content, err := io.ReadAll(tr)
		require.NoError(t, err)
		files[header.Name] = content
	}
	return files
}

func TestBackupService_CreateAndUpload(t *testing.T) {
	portfolio, cleanupPortfolio := testingpkg.NewTestDB(t, "portfolio")
	defer cleanupPortfolio()
	ledger, cleanupLedger := testingpkg.NewTestDB(t, "ledger")
	defer cleanupLedger()

	_, err := portfolio.Conn().Exec(
		`INSERT INTO holdings (id, ticker, cost_currency, shares, cost_basis_per_share, acquired_at)
		 VALUES ('h-1', 'AAPL', 'USD', '10', '150', 1700000000)`)
	require.NoError(t, err)

	store := newMemoryStore()
	clock := testingpkg.NewFakeClock(time.Date(2024, 6, 15, 3, 0, 0, 0, time.UTC))
	svc := NewBackupService(store, []*database.DB{portfolio, ledger}, t.TempDir(), clock, zerolog.Nop())

	key, err := svc.CreateAndUpload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "divtrack-backup-2024-06-15-030000.tar.gz", key)
	require.Equal(t, []string{key}, store.keys())

	files := readArchive(t, store.objects[key])
	require.Contains(t, files, "portfolio.db")
	require.Contains(t, files, "ledger.db")
	require.Contains(t, files, "backup-metadata.json")

	var metadata BackupMetadata
	require.NoError(t, json.Unmarshal(files["backup-metadata.json"], &metadata))
	assert.True(t, metadata.Timestamp.Equal(clock.Now()))
	require.Len(t, metadata.Databases, 2)
	assert.Equal(t, "portfolio", metadata.Databases[0].Name)
	assert.Equal(t, int64(len(files["portfolio.db"])), metadata.Databases[0].SizeBytes)
	assert.True(t, strings.HasPrefix(metadata.Databases[0].Checksum, "sha256:"))
}

func TestBackupService_CreateAndUpload_ClosedDatabaseFails(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "ledger")
	cleanup()

	store := newMemoryStore()
	svc := NewBackupService(store, []*database.DB{db}, t.TempDir(), nil, zerolog.Nop())

	_, err := svc.CreateAndUpload(context.Background())
	assert.Error(t, err)
	assert.Empty(t, store.keys())
}

func seedArchives(store *memoryStore, now time.Time, ages ...int) {
	for _, days := range ages {
		store.objects[ArchiveName(now.AddDate(0, 0, -days))] = []byte("x")
	}
}

func TestBackupService_ListBackups(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	store := newMemoryStore()
	seedArchives(store, now, 3, 1, 2)
	store.objects["divtrack-backup-garbage.tar.gz"] = []byte("x")

	svc := NewBackupService(store, nil, t.TempDir(), testingpkg.NewFakeClock(now), zerolog.Nop())
	backups, err := svc.ListBackups(context.Background())
	require.NoError(t, err)

	require.Len(t, backups, 3)
	assert.Equal(t, int64(24), backups[0].AgeHours)
	assert.Equal(t, int64(48), backups[1].AgeHours)
	assert.Equal(t, int64(72), backups[2].AgeHours)
}

func TestBackupService_RotateOldBackups(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	t.Run("deletes archives past retention", func(t *testing.T) {
		store := newMemoryStore()
		seedArchives(store, now, 1, 2, 3, 40, 50)
		svc := NewBackupService(store, nil, t.TempDir(), testingpkg.NewFakeClock(now), zerolog.Nop())

		deleted, err := svc.RotateOldBackups(context.Background(), 30)
		require.NoError(t, err)
		assert.Equal(t, 2, deleted)
		assert.Len(t, store.keys(), 3)
	})

	t.Run("keeps the newest three regardless of age", func(t *testing.T) {
		store := newMemoryStore()
		seedArchives(store, now, 100, 200, 300)
		svc := NewBackupService(store, nil, t.TempDir(), testingpkg.NewFakeClock(now), zerolog.Nop())

		deleted, err := svc.RotateOldBackups(context.Background(), 30)
		require.NoError(t, err)
		assert.Zero(t, deleted)
		assert.Len(t, store.keys(), 3)
	})

	t.Run("zero retention keeps everything", func(t *testing.T) {
		store := newMemoryStore()
		seedArchives(store, now, 1, 2, 3, 400)
		svc := NewBackupService(store, nil, t.TempDir(), testingpkg.NewFakeClock(now), zerolog.Nop())

		deleted, err := svc.RotateOldBackups(context.Background(), 0)
		require.NoError(t, err)
		assert.Zero(t, deleted)
		assert.Len(t, store.keys(), 4)
	})

	t.Run("delete failures are skipped", func(t *testing.T) {
		store := newMemoryStore()
		seedArchives(store, now, 1, 2, 3, 40)
		store.deleteErr = errors.New("denied")
		svc := NewBackupService(store, nil, t.TempDir(), testingpkg.NewFakeClock(now), zerolog.Nop())

		deleted, err := svc.RotateOldBackups(context.Background(), 30)
		require.NoError(t, err)
		assert.Zero(t, deleted)
	})
}
