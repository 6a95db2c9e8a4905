package storage

import (
	"encoding/json"
	"fmt"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deadcoast/vince/internal/domain"
)

// genLegacyEntry builds a 1.0.0 default entry; some carry os_synced already
func genLegacyEntry() gopter.Gen {
	return gopter.CombineGens(
		gen.Identifier(),
		gen.RegexMatch(`^\.[a-z0-9]{1,6}$`),
		gen.OneConstOf("pending", "active", "removed"),
		gen.IntRange(0, 2),
	).Map(func(values []interface{}) map[string]any {
		entry := map[string]any{
			"id":               values[0].(string),
			"extension":        values[1].(string),
			"application_path": "/apps/" + values[0].(string),
			"state":            values[2].(string),
			"created_at":       "2024-01-01T00:00:00Z",
		}
		switch values[3].(int) {
		case 1:
			entry["os_synced"] = false
		case 2:
			entry["os_synced"] = true
			entry["os_synced_at"] = "2024-02-01T00:00:00Z"
		}
		return entry
	})
}

func legacyDocument(entries []map[string]any) map[string]any {
	items := make([]any, len(entries))
	for i, e := range entries {
		items[i] = e
	}
	return map[string]any{"version": "1.0.0", "defaults": items}
}

func TestProperty_MigrationCorrectness(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("1.0.0 documents gain os_synced=false where absent and nothing else changes", prop.ForAll(
		func(entries []map[string]any) bool {
			input := legacyDocument(entries)
			before := deepCopy(input)

			migrated, steps, err := Migrate(input)
			if err != nil || len(steps) != 1 {
				return false
			}
			if !reflect.DeepEqual(before, input) {
				return false // input was mutated
			}
			if migrated["version"] != "1.1.0" {
				return false
			}

			out := migrated["defaults"].([]any)
			if len(out) != len(entries) {
				return false
			}
			for i, item := range out {
				got := item.(map[string]any)
				orig := entries[i]
				if _, had := orig["os_synced"]; !had {
					if got["os_synced"] != false {
						return false
					}
				}
				for k, v := range orig {
					if !reflect.DeepEqual(got[k], v) {
						return false
					}
				}
				if len(got) != len(orig) && len(got) != len(orig)+1 {
					return false
				}
			}
			return true
		},
		gen.SliceOf(genLegacyEntry()),
	))

	properties.Property("migrating a current document is a no-op", prop.ForAll(
		func(entries []map[string]any) bool {
			first, _, err := Migrate(legacyDocument(entries))
			if err != nil {
				return false
			}
			second, steps, err := Migrate(first)
			return err == nil && len(steps) == 0 && reflect.DeepEqual(first, second)
		},
		gen.SliceOf(genLegacyEntry()),
	))

	properties.TestingRun(t)
}

func TestMigrate_ExampleScenario(t *testing.T) {
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{"version":"1.0.0","defaults":[{"id":"a1","extension":".txt","application_path":"/bin/x","state":"active","created_at":"2024-01-01T00:00:00Z"}]}`), &doc))

	migrated, steps, err := Migrate(doc)
	require.NoError(t, err)
	assert.Equal(t, []string{"1.0.0->1.1.0"}, steps)
	assert.Equal(t, "1.1.0", migrated["version"])

	entry := migrated["defaults"].([]any)[0].(map[string]any)
	assert.Equal(t, false, entry["os_synced"])
	assert.Equal(t, "/bin/x", entry["application_path"])
}

func TestMigrate_OffersDocumentOnlyBumpsVersion(t *testing.T) {
	doc := map[string]any{
		"version": "1.0.0",
		"offers":  []any{map[string]any{"offer_id": "edit", "default_id": "a1", "state": "created", "created_at": "2024-01-01T00:00:00Z"}},
	}

	migrated, _, err := Migrate(doc)
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", migrated["version"])
	assert.Equal(t, doc["offers"], migrated["offers"])
}

func TestMigrate_ChainComposes(t *testing.T) {
	chain := []Migration{
		{From: "1.0.0", To: "1.1.0", Apply: addOSSyncedFlag},
		{From: "1.1.0", To: "2.0.0", Apply: func(doc map[string]any) map[string]any {
			doc["renamed"] = true
			doc["version"] = "2.0.0"
			return doc
		}},
	}

	out, steps, err := migrateWith(chain, "2.0.0", map[string]any{"version": "1.0.0", "defaults": []any{}})
	require.NoError(t, err)
	assert.Equal(t, []string{"1.0.0->1.1.0", "1.1.0->2.0.0"}, steps)
	assert.Equal(t, "2.0.0", out["version"])
	assert.Equal(t, true, out["renamed"])
}

func TestMigrate_StepMustProduceItsTarget(t *testing.T) {
	chain := []Migration{{From: "1.0.0", To: "1.1.0", Apply: func(doc map[string]any) map[string]any { return doc }}}

	_, _, err := migrateWith(chain, "1.1.0", map[string]any{"version": "1.0.0"})
	require.Error(t, err)
	assert.Equal(t, domain.ErrInternal, domain.CodeOf(err))
}

func TestMigrate_VersionErrors(t *testing.T) {
	tests := []struct {
		version any
		code    string
	}{
		{"2.0.0", domain.ErrUnsupportedSchema},
		{"1.1.1", domain.ErrUnsupportedSchema},
		{"0.1.0", domain.ErrUnsupportedSchema},
		{"1.0", domain.ErrDataCorrupted},
		{12, domain.ErrDataCorrupted},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.version), func(t *testing.T) {
			_, _, err := Migrate(map[string]any{"version": tt.version, "defaults": []any{}})
			require.Error(t, err)
			assert.Equal(t, tt.code, domain.CodeOf(err))
		})
	}

	_, _, err := Migrate(map[string]any{"defaults": []any{}})
	assert.True(t, domain.IsDataCorrupted(err))
}

func TestCompareVersions(t *testing.T) {
	cmp, err := CompareVersions("1.10.0", "1.9.9")
	require.NoError(t, err)
	assert.Equal(t, 1, cmp)

	cmp, err = CompareVersions("1.1.0", "1.1.0")
	require.NoError(t, err)
	assert.Equal(t, 0, cmp)

	_, err = CompareVersions("v1", "1.0.0")
	assert.Error(t, err)
}
