package platform

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Registry locations, all relative to HKEY_CURRENT_USER
const (
	classesRoot  = `Software\Classes`
	fileExtsRoot = `Software\Microsoft\Windows\CurrentVersion\Explorer\FileExts`

	progIDPrefix = "vince"
	// previousValue holds the class default that was replaced when our ProgID took over
	previousValue = "VincePreviousProgId"
)

// KeyStore is the slice of the registry the Windows handler needs. Missing
// keys and values are not errors: GetString reports found=false and the
// delete calls succeed.
type KeyStore interface {
	GetString(path, name string) (value string, found bool, err error)
	SetString(path, name, value string) error
	DeleteValue(path, name string) error
	// DeleteTree removes path and every subkey
	DeleteTree(path string) error
}

// Notifier tells the shell that file associations changed
type Notifier interface {
	NotifyAssociationChanged() error
}

// WindowsHandler registers a per-user ProgID and points the extension's class
// key at it
type WindowsHandler struct {
	keys     KeyStore
	notifier Notifier
}

// NewWindowsHandler creates a handler over the given registry access
func NewWindowsHandler(keys KeyStore, notifier Notifier) *WindowsHandler {
	return &WindowsHandler{keys: keys, notifier: notifier}
}

func (h *WindowsHandler) Name() string { return "windows" }

// ProgID returns the programmatic identifier registered for extension
func ProgID(extension string) string {
	return progIDPrefix + extension
}

func progIDKey(progID string) string { return classesRoot + `\` + progID }

func commandKey(progID string) string { return progIDKey(progID) + `\shell\open\command` }

func classKey(extension string) string { return classesRoot + `\` + extension }

func userChoiceKey(extension string) string { return fileExtsRoot + `\` + extension + `\UserChoice` }

func openWithProgIDsKey(extension string) string {
	return fileExtsRoot + `\` + extension + `\OpenWithProgids`
}

func openCommand(applicationPath string) string {
	return fmt.Sprintf(`"%s" "%%1"`, strings.Trim(applicationPath, `"`))
}

// GetCurrentDefault resolves the ProgID the shell would use (UserChoice first,
// then the class default) and extracts the executable from its open command
func (h *WindowsHandler) GetCurrentDefault(ctx context.Context, extension string) QueryResult {
	if res, ok := checkExtension(extension); !ok {
		return QueryResult{Success: false, Message: res.Message}
	}

	progID, found, err := h.keys.GetString(userChoiceKey(extension), "ProgId")
	if err != nil {
		return queryFailed("failed to read user choice for %s: %v", extension, err)
	}
	if !found || progID == "" {
		progID, found, err = h.keys.GetString(classKey(extension), "")
		if err != nil {
			return queryFailed("failed to read class key for %s: %v", extension, err)
		}
	}
	if !found || progID == "" {
		return noDefault(extension)
	}

	command, found, err := h.keys.GetString(commandKey(progID), "")
	if err != nil {
		return queryFailed("failed to read open command for %s: %v", progID, err)
	}
	if !found || command == "" {
		return QueryResult{Success: true, Found: false, Message: fmt.Sprintf("%s has no open command", progID)}
	}

	path := executableFromCommand(command)
	if path == "" {
		return queryFailed("cannot parse open command %q", command)
	}
	return QueryResult{Success: true, Found: true, Path: path}
}

// SetDefault writes the ProgID and class association. Any failed write rolls
// back the ones before it, so a failure leaves the prior state intact.
func (h *WindowsHandler) SetDefault(ctx context.Context, extension, applicationPath string) OperationResult {
	if res, ok := checkExtension(extension); !ok {
		return res
	}
	if strings.TrimSpace(applicationPath) == "" {
		return Failed("application path is empty")
	}

	progID := ProgID(extension)

	prior, hadPrior, err := h.keys.GetString(classKey(extension), "")
	if err != nil {
		return Failed("failed to read class key for %s: %v", extension, err)
	}
	// Re-registering keeps the originally displaced class, not our own ProgID.
	previous := prior
	if hadPrior && prior == progID {
		previous, _, err = h.keys.GetString(progIDKey(progID), previousValue)
		if err != nil {
			return Failed("failed to read previous class for %s: %v", extension, err)
		}
	}

	var undo []func() error
	rollback := func(cause error) OperationResult {
		var failures []error
		for i := len(undo) - 1; i >= 0; i-- {
			if err := undo[i](); err != nil {
				failures = append(failures, err)
			}
		}
		if len(failures) > 0 {
			return Failed("failed to set default for %s: %v (rollback incomplete: %v)", extension, cause, errors.Join(failures...))
		}
		return Failed("failed to set default for %s: %v", extension, cause)
	}

	priorCommand, progIDExisted, err := h.keys.GetString(commandKey(progID), "")
	if err != nil {
		return Failed("failed to read open command for %s: %v", progID, err)
	}

	if err := h.keys.SetString(commandKey(progID), "", openCommand(applicationPath)); err != nil {
		return rollback(err)
	}
	undo = append(undo, func() error {
		if progIDExisted {
			return h.keys.SetString(commandKey(progID), "", priorCommand)
		}
		return h.keys.DeleteTree(progIDKey(progID))
	})

	if previous != "" {
		if err := h.keys.SetString(progIDKey(progID), previousValue, previous); err != nil {
			return rollback(err)
		}
	}

	if err := h.keys.SetString(classKey(extension), "", progID); err != nil {
		return rollback(err)
	}
	undo = append(undo, func() error {
		if hadPrior {
			return h.keys.SetString(classKey(extension), "", prior)
		}
		return h.keys.DeleteValue(classKey(extension), "")
	})

	if err := h.keys.SetString(openWithProgIDsKey(extension), progID, ""); err != nil {
		return rollback(err)
	}
	undo = append(undo, func() error {
		return h.keys.DeleteValue(openWithProgIDsKey(extension), progID)
	})

	// A UserChoice pointing elsewhere hides the class association.
	current := h.GetCurrentDefault(ctx, extension)
	if !current.Success || !current.Found || h.NormalizePath(current.Path) != h.NormalizePath(applicationPath) {
		reason := current.Message
		if current.Found {
			reason = fmt.Sprintf("user choice resolves to %s", current.Path)
		}
		return rollback(fmt.Errorf("association not visible after write: %s", reason))
	}

	h.notify()
	return Succeeded("%s now opens with %s", extension, applicationPath)
}

// RemoveDefault deletes every record SetDefault created and restores the class
// default it displaced
func (h *WindowsHandler) RemoveDefault(ctx context.Context, extension string) OperationResult {
	if res, ok := checkExtension(extension); !ok {
		return res
	}

	progID := ProgID(extension)

	current, found, err := h.keys.GetString(classKey(extension), "")
	if err != nil {
		return Failed("failed to read class key for %s: %v", extension, err)
	}
	previous, _, err := h.keys.GetString(progIDKey(progID), previousValue)
	if err != nil {
		return Failed("failed to read previous class for %s: %v", extension, err)
	}

	if found && current == progID {
		if previous != "" {
			err = h.keys.SetString(classKey(extension), "", previous)
		} else {
			err = h.keys.DeleteValue(classKey(extension), "")
		}
		if err != nil {
			return Failed("failed to reset class key for %s: %v", extension, err)
		}
	}

	if err := h.keys.DeleteValue(openWithProgIDsKey(extension), progID); err != nil {
		return Failed("failed to remove %s from OpenWithProgids: %v", progID, err)
	}
	if err := h.keys.DeleteTree(progIDKey(progID)); err != nil {
		return Failed("failed to delete %s: %v", progID, err)
	}

	h.notify()
	return Succeeded("association for %s removed", extension)
}

// NormalizePath strips quotes, uses backslashes, drops trailing separators and
// lowercases, since NTFS paths compare case-insensitively
func (h *WindowsHandler) NormalizePath(path string) string {
	p := strings.Trim(strings.TrimSpace(path), `"`)
	p = strings.ReplaceAll(p, "/", `\`)
	if len(p) > 3 {
		p = strings.TrimRight(p, `\`)
	}
	return strings.ToLower(p)
}

func (h *WindowsHandler) notify() {
	if h.notifier != nil {
		// The association is already written; a missed broadcast only delays Explorer.
		_ = h.notifier.NotifyAssociationChanged()
	}
}

// executableFromCommand extracts the program from a shell open command such as
// `"C:\Program Files\App\app.exe" "%1"` or `C:\Windows\notepad.exe %1`
func executableFromCommand(command string) string {
	command = strings.TrimSpace(command)
	if command == "" {
		return ""
	}
	if command[0] == '"' {
		if end := strings.IndexByte(command[1:], '"'); end >= 0 {
			return command[1 : end+1]
		}
		return strings.Trim(command, `"`)
	}
	lower := strings.ToLower(command)
	if idx := strings.Index(lower, ".exe"); idx >= 0 {
		return command[:idx+len(".exe")]
	}
	if fields := strings.Fields(command); len(fields) > 0 {
		return fields[0]
	}
	return ""
}
