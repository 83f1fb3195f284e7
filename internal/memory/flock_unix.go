//go:build unix

package memory

import (
	"os"

	"golang.org/x/sys/unix"
)

// Advisory locks are a best-effort guard against concurrent writers; the
// atomic rename in writeStatus is the primary safety net, so lock errors are
// deliberately ignored.

func lockShared(f *os.File)    { _ = unix.Flock(int(f.Fd()), unix.LOCK_SH) }
func lockExclusive(f *os.File) { _ = unix.Flock(int(f.Fd()), unix.LOCK_EX) }
func unlock(f *os.File)        { _ = unix.Flock(int(f.Fd()), unix.LOCK_UN) }
