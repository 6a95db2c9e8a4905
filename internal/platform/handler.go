// Package platform performs the OS side of an association: query, set and
// remove the default application for a file extension. One variant exists per
// supported operating system plus an explicit unsupported variant, selected
// once at startup by Detect.
package platform

import (
	"context"
	"fmt"
	"runtime"

	"github.com/deadcoast/vince/internal/domain"
)

// OperationResult is the outcome of a mutating platform call. Expected
// failures are reported here rather than as Go errors.
type OperationResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// QueryResult is the outcome of GetCurrentDefault. Found=false with
// Success=true means the OS reports no default; Success=false means the
// query itself failed and the answer is unknown.
type QueryResult struct {
	Success bool   `json:"success"`
	Found   bool   `json:"found"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message,omitempty"`
}

// Handler is the per-OS capability set
type Handler interface {
	// Name identifies the variant ("windows", "darwin", "unsupported")
	Name() string
	GetCurrentDefault(ctx context.Context, extension string) QueryResult
	SetDefault(ctx context.Context, extension, applicationPath string) OperationResult
	RemoveDefault(ctx context.Context, extension string) OperationResult
	// NormalizePath returns the platform's canonical form of an application path
	NormalizePath(path string) string
}

// Restorer is implemented by variants whose RemoveDefault cannot hand an
// extension back to the application that owned it before. RestoreDefault
// rebinds extension to previousPath.
type Restorer interface {
	RestoreDefault(ctx context.Context, extension, previousPath string) OperationResult
}

// Detect returns the handler for goos. Unknown systems get the unsupported
// variant, never nil.
func Detect(goos string) Handler {
	switch goos {
	case "windows":
		return NewWindowsHandler(newSystemRegistry(), newShellNotifier())
	case "darwin":
		return NewMacOSHandler(ExecRunner{})
	default:
		return NewUnsupportedHandler(goos)
	}
}

// DetectCurrent returns the handler for the running OS
func DetectCurrent() Handler {
	return Detect(runtime.GOOS)
}

// Succeeded builds a successful result
func Succeeded(format string, args ...any) OperationResult {
	return OperationResult{Success: true, Message: fmt.Sprintf(format, args...)}
}

// Failed builds a failed result
func Failed(format string, args ...any) OperationResult {
	return OperationResult{Success: false, Message: fmt.Sprintf(format, args...)}
}

func queryFailed(format string, args ...any) QueryResult {
	return QueryResult{Success: false, Message: fmt.Sprintf(format, args...)}
}

func noDefault(extension string) QueryResult {
	return QueryResult{Success: true, Found: false, Message: fmt.Sprintf("no default application for %s", extension)}
}

// checkExtension guards every boundary call against malformed input
func checkExtension(extension string) (OperationResult, bool) {
	if !domain.ValidExtension(extension) {
		return Failed("invalid extension %q", extension), false
	}
	return OperationResult{}, true
}
