package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/deadcoast/vince/internal/domain"
)

const (
	lockFileName     = ".vince.lock"
	lockPollInterval = 50 * time.Millisecond
)

// Lock takes the exclusive advisory lock on the data directory, polling until
// it is acquired or the configured timeout (or ctx) expires. The returned
// function releases it.
func (s *Store) Lock(ctx context.Context) (func() error, error) {
	if err := os.MkdirAll(s.config.DataDir, 0o755); err != nil {
		return nil, domain.NewAppErrorWithCause(domain.ErrInternal, "Failed to create data directory", err,
			map[string]any{"dir": s.config.DataDir})
	}

	path := filepath.Join(s.config.DataDir, lockFileName)
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, domain.NewAppErrorWithCause(domain.ErrInternal, "Failed to open lock file", err,
			map[string]any{"path": path})
	}

	if s.config.LockTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.LockTimeout)
		defer cancel()
	}

	for {
		acquired, err := tryLockFile(file)
		if err != nil {
			_ = file.Close()
			return nil, domain.NewAppErrorWithCause(domain.ErrInternal, "Failed to lock data directory", err,
				map[string]any{"path": path})
		}
		if acquired {
			log.Debug().Str("path", path).Msg("Acquired data directory lock")
			return func() error {
				unlockErr := unlockFile(file)
				closeErr := file.Close()
				if unlockErr != nil {
					return fmt.Errorf("failed to unlock %s: %w", path, unlockErr)
				}
				return closeErr
			}, nil
		}

		select {
		case <-ctx.Done():
			_ = file.Close()
			return nil, domain.NewAppErrorWithCause(
				domain.ErrLockTimeout,
				"Another vince process holds the data directory lock",
				ctx.Err(),
				map[string]any{"path": path, "timeout": s.config.LockTimeout.String()},
			)
		case <-time.After(lockPollInterval):
		}
	}
}
