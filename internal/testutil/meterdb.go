package testutil

import (
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	"github.com/NotCoffee418/p1_meter_bridge/pkg/meterdb"
)

// NewMeterDB opens a fresh database in a temp dir and creates the schema from
// the up sections of the embedded migrations.
func NewMeterDB(t *testing.T) *meterdb.MeterDB {
	t.Helper()
	m, err := meterdb.Open(filepath.Join(t.TempDir(), "meter.db"))
	if err != nil {
		t.Fatalf("open meter db: %v", err)
	}
	t.Cleanup(func() { m.Close() })

	files, err := fs.Glob(meterdb.MigrationFS, "migrations/*.sql")
	if err != nil {
		t.Fatalf("list migrations: %v", err)
	}
	for _, file := range files {
		data, err := fs.ReadFile(meterdb.MigrationFS, file)
		if err != nil {
			t.Fatalf("read %s: %v", file, err)
		}
		up, _, _ := strings.Cut(string(data), "-- +down")
		up = strings.TrimPrefix(strings.TrimSpace(up), "-- +up")
		for _, stmt := range strings.Split(up, ";") {
			if strings.TrimSpace(stmt) == "" {
				continue
			}
			if _, err := m.DB().Exec(stmt); err != nil {
				t.Fatalf("%s: %v", file, err)
			}
		}
	}
	return m
}
