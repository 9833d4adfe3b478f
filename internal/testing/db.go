// Package testing holds fixtures and fakes shared by divtrack tests.
package testing

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/aristath/divtrack/internal/database"
)

// profileFor mirrors the profile each database gets in production.
var profileFor = map[string]database.DatabaseProfile{
	database.NamePortfolio:  database.ProfileStandard,
	database.NameLedger:     database.ProfileLedger,
	database.NameClientData: database.ProfileCache,
}

// NewTestDB opens a migrated database named name in a per-test directory.
// Names without an embedded schema give an empty database. The returned
// close func may be called more than once; it also runs at test cleanup.
func NewTestDB(t *testing.T, name string) (*database.DB, func()) {
	t.Helper()

	profile, ok := profileFor[name]
	if !ok {
		profile = database.ProfileStandard
	}

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), name+".db"),
		Profile: profile,
		Name:    name,
	})
	if err != nil {
		t.Fatalf("open test database %s: %v", name, err)
	}

	var once sync.Once
	closeDB := func() {
		once.Do(func() {
			if err := db.Close(); err != nil {
				t.Logf("close test database %s: %v", name, err)
			}
		})
	}
	t.Cleanup(closeDB)

	if err := db.Migrate(); err != nil {
		closeDB()
		t.Fatalf("migrate test database %s: %v", name, err)
	}
	return db, closeDB
}
