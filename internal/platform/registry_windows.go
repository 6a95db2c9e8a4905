//go:build windows

package platform

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"
)

const shcneAssocChanged = 0x08000000

// systemRegistry writes under HKEY_CURRENT_USER. Reads of Software\Classes
// fall back to HKEY_LOCAL_MACHINE, mirroring the merged HKEY_CLASSES_ROOT view.
type systemRegistry struct{}

func newSystemRegistry() KeyStore { return systemRegistry{} }

func (systemRegistry) GetString(path, name string) (string, bool, error) {
	value, found, err := readString(registry.CURRENT_USER, path, name)
	if err != nil || found {
		return value, found, err
	}
	if strings.HasPrefix(path, classesRoot+`\`) {
		return readString(registry.LOCAL_MACHINE, path, name)
	}
	return "", false, nil
}

func readString(root registry.Key, path, name string) (string, bool, error) {
	k, err := registry.OpenKey(root, path, registry.QUERY_VALUE)
	if errors.Is(err, registry.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	defer k.Close()

	value, _, err := k.GetStringValue(name)
	if errors.Is(err, registry.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (systemRegistry) SetString(path, name, value string) error {
	k, _, err := registry.CreateKey(registry.CURRENT_USER, path, registry.SET_VALUE)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer k.Close()
	return k.SetStringValue(name, value)
}

func (systemRegistry) DeleteValue(path, name string) error {
	k, err := registry.OpenKey(registry.CURRENT_USER, path, registry.SET_VALUE)
	if errors.Is(err, registry.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer k.Close()

	if err := k.DeleteValue(name); err != nil && !errors.Is(err, registry.ErrNotExist) {
		return err
	}
	return nil
}

func (r systemRegistry) DeleteTree(path string) error {
	k, err := registry.OpenKey(registry.CURRENT_USER, path, registry.ENUMERATE_SUB_KEYS)
	if errors.Is(err, registry.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	names, err := k.ReadSubKeyNames(-1)
	k.Close()
	if err != nil {
		return err
	}

	for _, name := range names {
		if err := r.DeleteTree(path + `\` + name); err != nil {
			return err
		}
	}

	if err := registry.DeleteKey(registry.CURRENT_USER, path); err != nil && !errors.Is(err, registry.ErrNotExist) {
		return err
	}
	return nil
}

// shellNotifier broadcasts SHCNE_ASSOCCHANGED through shell32
type shellNotifier struct {
	proc *windows.LazyProc
}

func newShellNotifier() Notifier {
	return shellNotifier{proc: windows.NewLazySystemDLL("shell32.dll").NewProc("SHChangeNotify")}
}

func (n shellNotifier) NotifyAssociationChanged() error {
	if err := n.proc.Find(); err != nil {
		return err
	}
	// SHChangeNotify returns nothing; Call's error is the last-error value and not meaningful here.
	_, _, _ = n.proc.Call(uintptr(shcneAssocChanged), 0, 0, 0)
	return nil
}
