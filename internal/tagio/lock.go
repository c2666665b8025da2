package tagio

import (
	"fmt"

	"github.com/gofrs/flock"
)

// WithLock takes an exclusive file-system lock on <dir>/<id>.tag.lock for
// the duration of fn, satisfying §5's requirement that update_tag's
// read-modify-write sequence not race across processes. The lock file is
// separate from the tag file itself so a crash mid-write never leaves a
// stale lock holding the tag data hostage.
func WithLock(dir string, tagID uint32, fn func() error) error {
	lockPath := Path(dir, tagID) + ".lock"
	fl := flock.New(lockPath)

	locked, err := fl.TryLock()
	if err != nil {
		return fmt.Errorf("tagio: acquire lock: %w", err)
	}
	if !locked {
		if err := fl.Lock(); err != nil {
			return fmt.Errorf("tagio: acquire lock: %w", err)
		}
	}
	defer fl.Unlock()

	return fn()
}
