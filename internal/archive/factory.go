package archive

import (
	"context"
	"path/filepath"

	"github.com/JesseWaas/fs-audit/internal/audit"
	"github.com/JesseWaas/fs-audit/internal/config"
)

// NewStoreFromConfig creates the archive store selected by cfg.Type.
// The encryptor and unlock callback are only used by the filesystem
// store, and only when encryption is enabled for it.
func NewStoreFromConfig(ctx context.Context, cfg config.ArchiveConfig, encryptor audit.Encryptor, unlock UnlockFunc) (Store, error) {
	switch cfg.Type {
	case "filesystem", "":
		var enc audit.Encryptor
		if cfg.Encrypt {
			enc = encryptor
		}
		return NewFileStore(cfg.Dir, enc, unlock)
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, audit.NewConfigError("sqlite archive store requires data_dir to be set")
		}
		return NewSQLiteStore(filepath.Join(cfg.DataDir, "archives.db"))
	case "s3":
		return NewS3Store(ctx, cfg)
	default:
		return nil, audit.NewConfigError("unknown archive type: %s", cfg.Type)
	}
}
