package platform

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/deadcoast/vince/internal/domain"
)

// UnsupportedHandler is selected on systems without a native implementation.
// It never touches any OS resource.
type UnsupportedHandler struct {
	goos string
}

// NewUnsupportedHandler creates the handler for an unsupported goos
func NewUnsupportedHandler(goos string) *UnsupportedHandler {
	return &UnsupportedHandler{goos: goos}
}

func (h *UnsupportedHandler) Name() string { return "unsupported" }

func (h *UnsupportedHandler) message() string {
	return fmt.Sprintf("%s: platform %q is not supported", domain.ErrUnsupportedPlatform, h.goos)
}

// GetCurrentDefault reports "unknown": no default is known on this platform
func (h *UnsupportedHandler) GetCurrentDefault(ctx context.Context, extension string) QueryResult {
	return QueryResult{Success: false, Found: false, Message: h.message()}
}

func (h *UnsupportedHandler) SetDefault(ctx context.Context, extension, applicationPath string) OperationResult {
	return OperationResult{Success: false, Message: h.message()}
}

func (h *UnsupportedHandler) RemoveDefault(ctx context.Context, extension string) OperationResult {
	return OperationResult{Success: false, Message: h.message()}
}

func (h *UnsupportedHandler) NormalizePath(path string) string {
	if path == "" {
		return ""
	}
	return filepath.Clean(path)
}
