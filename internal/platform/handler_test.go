package platform

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		goos string
		want string
	}{
		{"windows", "windows"},
		{"darwin", "darwin"},
		{"linux", "unsupported"},
		{"freebsd", "unsupported"},
		{"", "unsupported"},
	}

	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			h := Detect(tt.goos)
			assert.NotNil(t, h)
			assert.Equal(t, tt.want, h.Name())
		})
	}
}

func TestUnsupportedHandler(t *testing.T) {
	h := NewUnsupportedHandler("plan9")
	ctx := context.Background()

	set := h.SetDefault(ctx, ".txt", "/bin/cat")
	assert.False(t, set.Success)
	assert.Contains(t, set.Message, "UNSUPPORTED_PLATFORM")
	assert.Contains(t, set.Message, "plan9")

	assert.False(t, h.RemoveDefault(ctx, ".txt").Success)

	q := h.GetCurrentDefault(ctx, ".txt")
	assert.False(t, q.Success)
	assert.False(t, q.Found)

	assert.Equal(t, "/usr/bin/cat", h.NormalizePath("/usr/bin/../bin/cat"))
}

func TestResultHelpers(t *testing.T) {
	assert.Equal(t, OperationResult{Success: true, Message: "ok 1"}, Succeeded("ok %d", 1))
	assert.Equal(t, OperationResult{Success: false, Message: "bad"}, Failed("bad"))

	res, ok := checkExtension(".md")
	assert.True(t, ok)
	assert.Equal(t, OperationResult{}, res)

	res, ok = checkExtension("md")
	assert.False(t, ok)
	assert.Contains(t, res.Message, "invalid extension")
}
