//go:build !windows

package platform

import "errors"

var errNoRegistry = errors.New("windows registry is not available on this system")

// unavailableRegistry backs the Windows handler when it is selected on a
// non-Windows build; every call fails cleanly
type unavailableRegistry struct{}

func newSystemRegistry() KeyStore { return unavailableRegistry{} }

func (unavailableRegistry) GetString(path, name string) (string, bool, error) {
	return "", false, errNoRegistry
}

func (unavailableRegistry) SetString(path, name, value string) error { return errNoRegistry }

func (unavailableRegistry) DeleteValue(path, name string) error { return errNoRegistry }

func (unavailableRegistry) DeleteTree(path string) error { return errNoRegistry }

type noopNotifier struct{}

func newShellNotifier() Notifier { return noopNotifier{} }

func (noopNotifier) NotifyAssociationChanged() error { return nil }
