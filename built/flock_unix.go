//go:build unix

package built

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"golang.org/x/sys/unix"
)

const lockFileName = "lock"

// lockDir takes an exclusive flock(2) on dir/lock so that concurrent pkgiter
// processes do not interleave marker writes for the same package. Only the
// OS filesystem is locked; other afero backends live in one process.
func lockDir(fsys afero.Fs, dir string) (func(), error) {
	if _, ok := fsys.(*afero.OsFs); !ok {
		return func() {}, nil
	}

	f, err := os.OpenFile(filepath.Join(dir, lockFileName), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("flock: %w", err)
	}

	return func() {
		_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
		_ = f.Close()
	}, nil
}
