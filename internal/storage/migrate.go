package storage

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/deadcoast/vince/internal/domain"
)

var versionPattern = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

// Migration upgrades a raw document from one schema version to the next.
// Apply must be pure: it receives a private copy and returns the upgraded tree.
type Migration struct {
	From  string
	To    string
	Apply func(doc map[string]any) map[string]any
}

// Migrations is the ordered chain of schema upgrades. Each step's To must be
// the next step's From, and the last To must equal domain.CurrentSchemaVersion.
var Migrations = []Migration{
	{From: "1.0.0", To: "1.1.0", Apply: addOSSyncedFlag},
}

// addOSSyncedFlag gives every default entry lacking os_synced an explicit false
func addOSSyncedFlag(doc map[string]any) map[string]any {
	if defaults, ok := doc["defaults"].([]any); ok {
		for _, item := range defaults {
			entry, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if _, present := entry["os_synced"]; !present {
				entry["os_synced"] = false
			}
		}
	}
	doc["version"] = "1.1.0"
	return doc
}

// Migrate brings a raw document up to domain.CurrentSchemaVersion by applying
// Migrations in order. It returns the upgraded copy and the steps applied; the
// input is never modified. A current document is returned unchanged.
func Migrate(doc map[string]any) (map[string]any, []string, error) {
	return migrateWith(Migrations, domain.CurrentSchemaVersion, doc)
}

func migrateWith(chain []Migration, target string, doc map[string]any) (map[string]any, []string, error) {
	version, err := documentVersion(doc)
	if err != nil {
		return nil, nil, err
	}

	cmp, err := CompareVersions(version, target)
	if err != nil {
		return nil, nil, err
	}
	if cmp > 0 {
		return nil, nil, domain.NewAppError(
			domain.ErrUnsupportedSchema,
			fmt.Sprintf("document version %s is newer than supported version %s", version, target),
			map[string]any{"version": version, "supported": target},
		)
	}
	if cmp == 0 {
		return doc, nil, nil
	}

	current := deepCopy(doc).(map[string]any)
	var applied []string
	for version != target {
		step, ok := findMigration(chain, version)
		if !ok {
			return nil, nil, domain.NewAppError(
				domain.ErrUnsupportedSchema,
				fmt.Sprintf("no migration path from version %s to %s", version, target),
				map[string]any{"version": version, "supported": target},
			)
		}

		current = step.Apply(current)
		next, err := documentVersion(current)
		if err != nil || next != step.To {
			return nil, nil, domain.NewAppError(
				domain.ErrInternal,
				fmt.Sprintf("migration %s -> %s did not produce version %s", step.From, step.To, step.To),
				nil,
			)
		}

		applied = append(applied, step.From+"->"+step.To)
		version = next
	}

	return current, applied, nil
}

func findMigration(chain []Migration, from string) (Migration, bool) {
	for _, m := range chain {
		if m.From == from {
			return m, true
		}
	}
	return Migration{}, false
}

func documentVersion(doc map[string]any) (string, error) {
	raw, present := doc["version"]
	if !present {
		return "", domain.NewAppError(domain.ErrDataCorrupted, "document has no version field", map[string]any{"field": "version"})
	}
	version, ok := raw.(string)
	if !ok || !versionPattern.MatchString(version) {
		return "", domain.NewAppError(
			domain.ErrDataCorrupted,
			fmt.Sprintf("version must match %s", versionPattern.String()),
			map[string]any{"field": "version", "value": raw},
		)
	}
	return version, nil
}

// CompareVersions compares two x.y.z version strings.
// Returns -1 if v1 < v2, 0 if v1 == v2, 1 if v1 > v2
func CompareVersions(v1, v2 string) (int, error) {
	parts1, err := parseVersion(v1)
	if err != nil {
		return 0, err
	}
	parts2, err := parseVersion(v2)
	if err != nil {
		return 0, err
	}

	for i := range 3 {
		if parts1[i] < parts2[i] {
			return -1, nil
		}
		if parts1[i] > parts2[i] {
			return 1, nil
		}
	}
	return 0, nil
}

func parseVersion(v string) ([3]int, error) {
	var out [3]int
	if !versionPattern.MatchString(v) {
		return out, domain.NewAppError(domain.ErrDataCorrupted, fmt.Sprintf("invalid version %q", v), nil)
	}
	for i, part := range strings.Split(v, ".") {
		n, err := strconv.Atoi(part)
		if err != nil {
			return out, domain.NewAppErrorWithCause(domain.ErrDataCorrupted, fmt.Sprintf("invalid version %q", v), err, nil)
		}
		out[i] = n
	}
	return out, nil
}

// deepCopy clones a tree produced by encoding/json into any
func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = deepCopy(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = deepCopy(val)
		}
		return out
	default:
		return v
	}
}
