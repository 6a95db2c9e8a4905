package platform

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/deadcoast/vince/internal/cache"
)

const bundleCacheSize = 64

// MacOSHandler drives LaunchServices through the duti command line tool.
// Bundle identifiers come from Spotlight metadata, falling back to the
// bundle's Info.plist.
type MacOSHandler struct {
	runner  Runner
	stat    func(string) (fs.FileInfo, error)
	bundles *cache.LRU[string]
}

// NewMacOSHandler creates a handler that runs commands through runner
func NewMacOSHandler(runner Runner) *MacOSHandler {
	return &MacOSHandler{
		runner:  runner,
		stat:    os.Stat,
		bundles: cache.NewLRU[string](bundleCacheSize),
	}
}

func (h *MacOSHandler) Name() string { return "darwin" }

// dutiHandler is the parsed output of `duti -x`: name, path, bundle id
type dutiHandler struct {
	Name     string
	Path     string
	BundleID string
}

func (h *MacOSHandler) lookup(ctx context.Context, extension string) (dutiHandler, bool, error) {
	out, err := h.runner.Run(ctx, "duti", "-x", strings.TrimPrefix(extension, "."))
	if err != nil {
		var cmdErr *CommandError
		if errors.As(err, &cmdErr) {
			// duti exits non-zero when LaunchServices has no handler
			return dutiHandler{}, false, nil
		}
		return dutiHandler{}, false, err
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) < 2 || strings.TrimSpace(lines[1]) == "" {
		return dutiHandler{}, false, nil
	}
	handler := dutiHandler{Name: strings.TrimSpace(lines[0]), Path: strings.TrimSpace(lines[1])}
	if len(lines) > 2 {
		handler.BundleID = strings.TrimSpace(lines[2])
	}
	return handler, true, nil
}

func (h *MacOSHandler) GetCurrentDefault(ctx context.Context, extension string) QueryResult {
	if res, ok := checkExtension(extension); !ok {
		return QueryResult{Success: false, Message: res.Message}
	}

	handler, found, err := h.lookup(ctx, extension)
	if err != nil {
		return queryFailed("failed to query LaunchServices for %s: %v", extension, describeExecError(err))
	}
	if !found {
		return noDefault(extension)
	}
	return QueryResult{Success: true, Found: true, Path: handler.Path}
}

// SetDefault binds extension to the bundle at applicationPath for all roles.
// If the binding is not visible afterwards the previous handler is restored.
func (h *MacOSHandler) SetDefault(ctx context.Context, extension, applicationPath string) OperationResult {
	if res, ok := checkExtension(extension); !ok {
		return res
	}

	app := filepath.Clean(applicationPath)
	if !strings.EqualFold(filepath.Ext(app), ".app") {
		return Failed("%s is not an application bundle", applicationPath)
	}
	info, err := h.stat(app)
	if err != nil {
		return Failed("application %s is not accessible: %v", applicationPath, err)
	}
	if !info.IsDir() {
		return Failed("%s is not an application bundle", applicationPath)
	}

	bundleID, err := h.bundleID(ctx, app)
	if err != nil {
		return Failed("cannot determine bundle identifier of %s: %v", applicationPath, describeExecError(err))
	}

	prior, hadPrior, err := h.lookup(ctx, extension)
	if err != nil {
		return Failed("failed to query LaunchServices for %s: %v", extension, describeExecError(err))
	}

	if _, err := h.runner.Run(ctx, "duti", "-s", bundleID, extension, "all"); err != nil {
		return Failed("duti could not bind %s to %s: %v", extension, bundleID, describeExecError(err))
	}

	current := h.GetCurrentDefault(ctx, extension)
	if current.Found && h.NormalizePath(current.Path) == h.NormalizePath(app) {
		return Succeeded("%s now opens with %s (%s)", extension, applicationPath, bundleID)
	}

	if hadPrior && prior.BundleID != "" {
		if _, err := h.runner.Run(ctx, "duti", "-s", prior.BundleID, extension, "all"); err != nil {
			return Failed("binding %s to %s did not take effect and restoring %s failed: %v", extension, bundleID, prior.BundleID, describeExecError(err))
		}
	}
	return Failed("binding %s to %s did not take effect", extension, bundleID)
}

// RemoveDefault succeeds without touching LaunchServices, which has no
// per-extension unbind; the existing binding stays until another app claims it.
// Callers holding the previous owner use RestoreDefault instead.
func (h *MacOSHandler) RemoveDefault(ctx context.Context, extension string) OperationResult {
	if res, ok := checkExtension(extension); !ok {
		return res
	}
	return Succeeded("LaunchServices keeps its binding for %s; nothing to unregister", extension)
}

// RestoreDefault binds extension back to the application recorded before the
// first sync
func (h *MacOSHandler) RestoreDefault(ctx context.Context, extension, previousPath string) OperationResult {
	if res, ok := checkExtension(extension); !ok {
		return res
	}

	bundleID, err := h.bundleID(ctx, previousPath)
	if err != nil {
		return Failed("cannot determine bundle identifier of %s: %v", previousPath, describeExecError(err))
	}
	if _, err := h.runner.Run(ctx, "duti", "-s", bundleID, extension, "all"); err != nil {
		return Failed("duti could not restore %s to %s: %v", extension, bundleID, describeExecError(err))
	}
	return Succeeded("%s restored to %s (%s)", extension, previousPath, bundleID)
}

func (h *MacOSHandler) NormalizePath(path string) string {
	if strings.TrimSpace(path) == "" {
		return ""
	}
	p := filepath.Clean(strings.TrimSpace(path))
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	return strings.ToLower(p)
}

// bundleID resolves the bundle identifier of app. Resolved ids are cached
// per path for the life of the handler.
func (h *MacOSHandler) bundleID(ctx context.Context, app string) (string, error) {
	if id, ok := h.bundles.Get(app); ok {
		return id, nil
	}

	id, err := h.resolveBundleID(ctx, app)
	if err != nil {
		return "", err
	}
	h.bundles.Set(app, id)
	return id, nil
}

func (h *MacOSHandler) resolveBundleID(ctx context.Context, app string) (string, error) {
	out, err := h.runner.Run(ctx, "mdls", "-name", "kMDItemCFBundleIdentifier", "-raw", app)
	if err == nil {
		if id := strings.TrimSpace(out); id != "" && id != "(null)" {
			return id, nil
		}
	}

	out, err = h.runner.Run(ctx, "defaults", "read", filepath.Join(app, "Contents", "Info"), "CFBundleIdentifier")
	if err != nil {
		return "", err
	}
	id := strings.TrimSpace(out)
	if id == "" {
		return "", errors.New("bundle has no CFBundleIdentifier")
	}
	return id, nil
}

func describeExecError(err error) error {
	if errors.Is(err, exec.ErrNotFound) {
		return errors.New("required tool is not installed (brew install duti)")
	}
	return err
}
