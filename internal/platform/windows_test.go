package platform

import (
	"context"
	"errors"
	"maps"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryRegistry keeps only values; a key disappears with its last value
type memoryRegistry struct {
	values  map[string]map[string]string
	failSet map[string]error
}

func newMemoryRegistry() *memoryRegistry {
	return &memoryRegistry{values: make(map[string]map[string]string), failSet: make(map[string]error)}
}

func (r *memoryRegistry) GetString(path, name string) (string, bool, error) {
	v, ok := r.values[path][name]
	return v, ok, nil
}

func (r *memoryRegistry) SetString(path, name, value string) error {
	if err := r.failSet[path]; err != nil {
		return err
	}
	if r.values[path] == nil {
		r.values[path] = make(map[string]string)
	}
	r.values[path][name] = value
	return nil
}

func (r *memoryRegistry) DeleteValue(path, name string) error {
	delete(r.values[path], name)
	if len(r.values[path]) == 0 {
		delete(r.values, path)
	}
	return nil
}

func (r *memoryRegistry) DeleteTree(path string) error {
	for key := range r.values {
		if key == path || strings.HasPrefix(key, path+`\`) {
			delete(r.values, key)
		}
	}
	return nil
}

func (r *memoryRegistry) snapshot() map[string]map[string]string {
	out := make(map[string]map[string]string, len(r.values))
	for k, v := range r.values {
		out[k] = maps.Clone(v)
	}
	return out
}

type countingNotifier struct{ count int }

func (n *countingNotifier) NotifyAssociationChanged() error {
	n.count++
	return nil
}

func TestProperty_WindowsSetRemoveRoundTrip(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("set then remove restores the registry it started from", prop.ForAll(
		func(ext, app string, withPrior bool) bool {
			reg := newMemoryRegistry()
			priorApp := `C:\Windows\notepad.exe`
			if withPrior {
				reg.values[classKey(ext)] = map[string]string{"": "legacyfile"}
				reg.values[commandKey("legacyfile")] = map[string]string{"": priorApp + " %1"}
			}
			reg.values[openWithProgIDsKey(ext)] = map[string]string{"otherapp" + ext: ""}
			initial := reg.snapshot()

			h := NewWindowsHandler(reg, &countingNotifier{})
			ctx := context.Background()

			if !h.SetDefault(ctx, ext, app).Success {
				return false
			}
			got := h.GetCurrentDefault(ctx, ext)
			if !got.Found || h.NormalizePath(got.Path) != h.NormalizePath(app) {
				return false
			}

			if !h.RemoveDefault(ctx, ext).Success {
				return false
			}
			after := h.GetCurrentDefault(ctx, ext)
			if withPrior {
				if !after.Found || after.Path != priorApp {
					return false
				}
			} else if after.Found {
				return false
			}

			return assert.ObjectsAreEqual(initial, reg.snapshot())
		},
		gen.RegexMatch(`^\.[a-z0-9]{1,5}$`),
		gen.Identifier().Map(func(name string) string { return `C:\Program Files\` + name + `\` + name + ".exe" }),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func TestWindows_SetIsIdempotentAndKeepsDisplacedClass(t *testing.T) {
	reg := newMemoryRegistry()
	reg.values[classKey(".txt")] = map[string]string{"": "txtfile"}
	h := NewWindowsHandler(reg, nil)
	ctx := context.Background()

	require.True(t, h.SetDefault(ctx, ".txt", `C:\Apps\one.exe`).Success)
	require.True(t, h.SetDefault(ctx, ".txt", `C:\Apps\two.exe`).Success)

	previous, _, _ := reg.GetString(progIDKey(ProgID(".txt")), previousValue)
	assert.Equal(t, "txtfile", previous)
	assert.Equal(t, `"C:\Apps\two.exe" "%1"`, reg.values[commandKey("vince.txt")][""])

	require.True(t, h.RemoveDefault(ctx, ".txt").Success)
	assert.Equal(t, "txtfile", reg.values[classKey(".txt")][""])
}

func TestWindows_FailedWriteRollsBack(t *testing.T) {
	reg := newMemoryRegistry()
	reg.values[classKey(".log")] = map[string]string{"": "logfile"}
	reg.failSet[openWithProgIDsKey(".log")] = errors.New("access denied")
	initial := reg.snapshot()
	notifier := &countingNotifier{}

	res := NewWindowsHandler(reg, notifier).SetDefault(context.Background(), ".log", `C:\Apps\viewer.exe`)

	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "access denied")
	assert.Equal(t, initial, reg.snapshot())
	assert.Zero(t, notifier.count)
}

func TestWindows_UserChoiceOverrideIsAFailure(t *testing.T) {
	reg := newMemoryRegistry()
	reg.values[userChoiceKey(".pdf")] = map[string]string{"ProgId": "AcroExch.Document"}
	reg.values[commandKey("AcroExch.Document")] = map[string]string{"": `"C:\Acrobat\acrobat.exe" "%1"`}
	initial := reg.snapshot()
	h := NewWindowsHandler(reg, nil)

	res := h.SetDefault(context.Background(), ".pdf", `C:\Apps\reader.exe`)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, `C:\Acrobat\acrobat.exe`)
	assert.Equal(t, initial, reg.snapshot())

	current := h.GetCurrentDefault(context.Background(), ".pdf")
	assert.True(t, current.Found)
	assert.Equal(t, `C:\Acrobat\acrobat.exe`, current.Path)
}

func TestWindows_GetCurrentDefault(t *testing.T) {
	reg := newMemoryRegistry()
	h := NewWindowsHandler(reg, nil)
	ctx := context.Background()

	res := h.GetCurrentDefault(ctx, ".xyz")
	assert.True(t, res.Success)
	assert.False(t, res.Found)

	reg.values[classKey(".xyz")] = map[string]string{"": "orphan"}
	res = h.GetCurrentDefault(ctx, ".xyz")
	assert.True(t, res.Success)
	assert.False(t, res.Found)

	res = h.GetCurrentDefault(ctx, "xyz")
	assert.False(t, res.Success)
}

func TestWindows_SetRejectsBadInput(t *testing.T) {
	h := NewWindowsHandler(newMemoryRegistry(), nil)

	assert.False(t, h.SetDefault(context.Background(), ".TXT", `C:\x.exe`).Success)
	assert.False(t, h.SetDefault(context.Background(), ".txt", "  ").Success)
}

func TestWindows_UnavailableRegistryFailsCleanly(t *testing.T) {
	h := NewWindowsHandler(failingRegistry{}, nil)

	assert.False(t, h.GetCurrentDefault(context.Background(), ".txt").Success)
	assert.False(t, h.SetDefault(context.Background(), ".txt", `C:\x.exe`).Success)
	assert.False(t, h.RemoveDefault(context.Background(), ".txt").Success)
}

type failingRegistry struct{}

var errRegistry = errors.New("registry offline")

func (failingRegistry) GetString(string, string) (string, bool, error) { return "", false, errRegistry }
func (failingRegistry) SetString(string, string, string) error { return errRegistry }
func (failingRegistry) DeleteValue(string, string) error { return errRegistry }
func (failingRegistry) DeleteTree(string) error { return errRegistry }

func TestExecutableFromCommand(t *testing.T) {
	tests := []struct{ command, want string }{
		{`"C:\Program Files\App\app.exe" "%1"`, `C:\Program Files\App\app.exe`},
		{`C:\Windows\notepad.exe %1`, `C:\Windows\notepad.exe`},
		{`C:\Program Files\Tool\tool.EXE --open "%1"`, `C:\Program Files\Tool\tool.EXE`},
		{`rundll32 shell32.dll,OpenAs_RunDLL %1`, `rundll32`},
		{``, ``},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, executableFromCommand(tt.command), tt.command)
	}
}

func TestWindows_NormalizePath(t *testing.T) {
	h := NewWindowsHandler(newMemoryRegistry(), nil)

	assert.Equal(t, `c:\program files\app\app.exe`, h.NormalizePath(`"C:/Program Files/App/App.exe"`))
	assert.Equal(t, `c:\tools`, h.NormalizePath(`C:\Tools\`))
	assert.Equal(t, `c:\`, h.NormalizePath(`C:\`))
}
