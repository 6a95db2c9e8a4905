//go:build !unix && !windows

package storage

import "os"

// No advisory locking on this platform; saves remain atomic.
func tryLockFile(f *os.File) (bool, error) {
	return true, nil
}

func unlockFile(f *os.File) error {
	return nil
}
