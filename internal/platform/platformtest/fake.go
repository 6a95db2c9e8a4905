// Package platformtest provides an in-memory platform.Handler for tests
package platformtest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/deadcoast/vince/internal/platform"
)

// Call records one invocation against the fake
type Call struct {
	Op        string
	Extension string
	Path      string
}

// Handler is a deterministic platform.Handler backed by a map. Failures are
// scripted per extension.
type Handler struct {
	mu sync.Mutex

	defaults    map[string]string
	failSet     map[string]string
	failRemove  map[string]string
	failQuery   map[string]string
	calls       []Call
	mutatingOps int
}

// New returns an empty fake, optionally seeded with existing OS defaults
func New(seed map[string]string) *Handler {
	h := &Handler{
		defaults:   make(map[string]string),
		failSet:    make(map[string]string),
		failRemove: make(map[string]string),
		failQuery:  make(map[string]string),
	}
	for ext, path := range seed {
		h.defaults[ext] = path
	}
	return h
}

func (h *Handler) Name() string { return "fake" }

// FailSet makes SetDefault fail for extension with message
func (h *Handler) FailSet(extension, message string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failSet[extension] = message
}

// FailRemove makes RemoveDefault fail for extension with message
func (h *Handler) FailRemove(extension, message string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failRemove[extension] = message
}

// FailQuery makes GetCurrentDefault fail for extension with message
func (h *Handler) FailQuery(extension, message string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failQuery[extension] = message
}

// SetOSDefault changes the OS state behind the tool's back
func (h *Handler) SetOSDefault(extension, path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if path == "" {
		delete(h.defaults, extension)
		return
	}
	h.defaults[extension] = path
}

func (h *Handler) GetCurrentDefault(ctx context.Context, extension string) platform.QueryResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, Call{Op: "get", Extension: extension})

	if msg, ok := h.failQuery[extension]; ok {
		return platform.QueryResult{Success: false, Message: msg}
	}
	path, ok := h.defaults[extension]
	if !ok {
		return platform.QueryResult{Success: true, Found: false}
	}
	return platform.QueryResult{Success: true, Found: true, Path: path}
}

func (h *Handler) SetDefault(ctx context.Context, extension, applicationPath string) platform.OperationResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, Call{Op: "set", Extension: extension, Path: applicationPath})
	h.mutatingOps++

	if msg, ok := h.failSet[extension]; ok {
		return platform.Failed("%s", msg)
	}
	h.defaults[extension] = applicationPath
	return platform.Succeeded("%s set to %s", extension, applicationPath)
}

func (h *Handler) RemoveDefault(ctx context.Context, extension string) platform.OperationResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, Call{Op: "remove", Extension: extension})
	h.mutatingOps++

	if msg, ok := h.failRemove[extension]; ok {
		return platform.Failed("%s", msg)
	}
	delete(h.defaults, extension)
	return platform.Succeeded("%s removed", extension)
}

func (h *Handler) NormalizePath(path string) string {
	return strings.ToLower(strings.TrimRight(path, "/"))
}

// Calls returns a copy of every recorded call
func (h *Handler) Calls() []Call {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Call(nil), h.calls...)
}

// MutatingCalls counts SetDefault and RemoveDefault invocations
func (h *Handler) MutatingCalls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.mutatingOps
}

// CallsFor counts calls of op for extension
func (h *Handler) CallsFor(op, extension string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, c := range h.calls {
		if c.Op == op && c.Extension == extension {
			n++
		}
	}
	return n
}

// Reset forgets recorded calls but keeps OS state and scripted failures
func (h *Handler) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = nil
	h.mutatingOps = 0
}

// OSDefault returns what the fake OS currently maps extension to
func (h *Handler) OSDefault(extension string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	path, ok := h.defaults[extension]
	return path, ok
}

func (h *Handler) String() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return fmt.Sprintf("fake platform with %d defaults", len(h.defaults))
}

var _ platform.Handler = (*Handler)(nil)
