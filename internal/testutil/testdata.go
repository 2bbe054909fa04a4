package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// LoadTelegram returns a captured telegram from pkg/telegram/testdata.
func LoadTelegram(t *testing.T, name string) []byte {
	t.Helper()
	candidates := []string{
		filepath.Join("testdata", name),
		filepath.Join("..", "telegram", "testdata", name),
		filepath.Join("..", "..", "pkg", "telegram", "testdata", name),
	}
	for _, path := range candidates {
		if data, err := os.ReadFile(path); err == nil {
			return data
		}
	}
	t.Fatalf("unable to locate telegram %s", name)
	return nil
}
