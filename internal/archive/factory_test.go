package archive_test

import (
	"context"
	"testing"

	"github.com/JesseWaas/fs-audit/internal/archive"
	"github.com/JesseWaas/fs-audit/internal/audit"
	"github.com/JesseWaas/fs-audit/internal/config"
)

func TestNewStoreFromConfig(t *testing.T) {
	t.Run("filesystem", func(t *testing.T) {
		store, err := archive.NewStoreFromConfig(context.Background(),
			config.ArchiveConfig{Type: "filesystem", Dir: t.TempDir()}, nil, nil)
		if err != nil {
			t.Fatalf("NewStoreFromConfig() error = %v", err)
		}
		defer store.Close()
		if _, ok := store.(*archive.FileStore); !ok {
			t.Errorf("store type = %T, want *archive.FileStore", store)
		}
	})

	t.Run("empty type defaults to filesystem", func(t *testing.T) {
		store, err := archive.NewStoreFromConfig(context.Background(),
			config.ArchiveConfig{Dir: t.TempDir()}, nil, nil)
		if err != nil {
			t.Fatalf("NewStoreFromConfig() error = %v", err)
		}
		defer store.Close()
		if _, ok := store.(*archive.FileStore); !ok {
			t.Errorf("store type = %T, want *archive.FileStore", store)
		}
	})

	t.Run("sqlite", func(t *testing.T) {
		store, err := archive.NewStoreFromConfig(context.Background(),
			config.ArchiveConfig{Type: "sqlite", DataDir: t.TempDir()}, nil, nil)
		if err != nil {
			t.Fatalf("NewStoreFromConfig() error = %v", err)
		}
		defer store.Close()
		if _, ok := store.(*archive.SQLiteStore); !ok {
			t.Errorf("store type = %T, want *archive.SQLiteStore", store)
		}
	})

	t.Run("sqlite without data dir", func(t *testing.T) {
		_, err := archive.NewStoreFromConfig(context.Background(),
			config.ArchiveConfig{Type: "sqlite"}, nil, nil)
		if !audit.IsConfigError(err) {
			t.Errorf("NewStoreFromConfig() error = %v, want configuration error", err)
		}
	})

	t.Run("s3 without bucket", func(t *testing.T) {
		_, err := archive.NewStoreFromConfig(context.Background(),
			config.ArchiveConfig{Type: "s3"}, nil, nil)
		if !audit.IsConfigError(err) {
			t.Errorf("NewStoreFromConfig() error = %v, want configuration error", err)
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := archive.NewStoreFromConfig(context.Background(),
			config.ArchiveConfig{Type: "tape"}, nil, nil)
		if !audit.IsConfigError(err) {
			t.Errorf("NewStoreFromConfig() error = %v, want configuration error", err)
		}
	})
}
