package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deadcoast/vince/internal/domain"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestStore_LoadMissingFiles(t *testing.T) {
	store := NewStore(t.TempDir())
	ctx := context.Background()

	defaults, err := store.LoadDefaults(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.CurrentSchemaVersion, defaults.Version)
	assert.Empty(t, defaults.Defaults)

	offers, err := store.LoadOffers(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.CurrentSchemaVersion, offers.Version)
	assert.Empty(t, offers.Offers)
}

func TestStore_LoadInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "defaults.json", `{"version": "1.1.0", "defaults": [`)

	_, err := NewStore(dir).LoadDefaults(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsDataCorrupted(err))
}

func TestStore_LoadNonObject(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "offers.json", `[]`)

	_, err := NewStore(dir).LoadOffers(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsDataCorrupted(err))
}

func TestStore_MigratesVersion100(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "defaults.json", `{"version":"1.0.0","defaults":[{"id":"a1","extension":".txt","application_path":"/bin/x","state":"active","created_at":"2024-01-01T00:00:00Z"}]}`)

	doc, err := NewStore(dir).LoadDefaults(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "1.1.0", doc.Version)
	require.Len(t, doc.Defaults, 1)
	entry := doc.Defaults[0]
	assert.Equal(t, "a1", entry.ID)
	assert.Equal(t, ".txt", entry.Extension)
	assert.Equal(t, "/bin/x", entry.ApplicationPath)
	assert.Equal(t, domain.StateActive, entry.State)
	assert.False(t, entry.OSSynced)
	assert.Nil(t, entry.OSSyncedAt)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), entry.CreatedAt.UTC())
}

func TestStore_RejectsNewerVersion(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "defaults.json", `{"version":"9.0.0","defaults":[]}`)

	_, err := NewStore(dir).LoadDefaults(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsUnsupportedSchema(err))
}

func TestStore_RejectsUnknownOldVersion(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "defaults.json", `{"version":"0.9.0","defaults":[]}`)

	_, err := NewStore(dir).LoadDefaults(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsUnsupportedSchema(err))
}

func TestStore_StructuralRejection(t *testing.T) {
	tests := []struct {
		name  string
		entry string
		field string
	}{
		{
			name:  "invalid state",
			entry: `{"id":"a1","extension":".txt","application_path":"/bin/x","state":"enabled","os_synced":false,"created_at":"2024-01-01T00:00:00Z"}`,
			field: "state",
		},
		{
			name:  "malformed extension",
			entry: `{"id":"a1","extension":"txt","application_path":"/bin/x","state":"active","os_synced":false,"created_at":"2024-01-01T00:00:00Z"}`,
			field: "extension",
		},
		{
			name:  "unknown field",
			entry: `{"id":"a1","extension":".txt","application_path":"/bin/x","state":"active","os_synced":false,"created_at":"2024-01-01T00:00:00Z","colour":"blue"}`,
			field: "colour",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, "defaults.json", `{"version":"1.1.0","defaults":[`+tt.entry+`]}`)
			store := NewStore(dir)
			require.True(t, store.StructuralValidation())

			_, first := store.LoadDefaults(context.Background())
			require.Error(t, first)
			assert.True(t, domain.IsDataCorrupted(first))
			assert.Contains(t, first.Error(), "defaults.json")
			assert.Contains(t, first.Error(), tt.field)

			_, second := store.LoadDefaults(context.Background())
			require.Error(t, second)
			assert.Equal(t, first.Error(), second.Error())
		})
	}
}

func TestStore_EntryValidationWithoutSchema(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "defaults.json", `{"version":"1.1.0","defaults":[{"id":"a1","extension":"TXT","application_path":"/bin/x","state":"active","os_synced":false,"created_at":"2024-01-01T00:00:00Z"}]}`)

	cfg := DefaultStoreConfig(dir)
	cfg.SchemaValidation = false
	store := NewStoreWithConfig(cfg)
	require.False(t, store.StructuralValidation())

	_, err := store.LoadDefaults(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsDataCorrupted(err))
	assert.Contains(t, err.Error(), "defaults[0].extension")
}

func TestStore_UnknownFieldToleratedWithoutSchema(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "defaults.json", `{"version":"1.1.0","defaults":[{"id":"a1","extension":".txt","application_path":"/bin/x","state":"active","os_synced":false,"created_at":"2024-01-01T00:00:00Z","colour":"blue"}]}`)

	cfg := DefaultStoreConfig(dir)
	cfg.SchemaValidation = false

	doc, err := NewStoreWithConfig(cfg).LoadDefaults(context.Background())
	require.NoError(t, err)
	assert.Len(t, doc.Defaults, 1)
}

func TestStore_WrongFieldType(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "offers.json", `{"version":"1.1.0","offers":[{"offer_id":"edit","default_id":"a1","state":"created","auto_created":"yes","created_at":"2024-01-01T00:00:00Z"}]}`)

	cfg := DefaultStoreConfig(dir)
	cfg.SchemaValidation = false

	_, err := NewStoreWithConfig(cfg).LoadOffers(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsDataCorrupted(err))
}

func TestStore_SaveAndReload(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	ctx := context.Background()

	synced := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	doc := domain.NewDefaultsDocument()
	doc.Defaults = append(doc.Defaults, domain.DefaultEntry{
		ID:              "a1",
		Extension:       ".md",
		ApplicationPath: "/Applications/Typora.app",
		ApplicationName: "Typora",
		State:           domain.StateActive,
		OSSynced:        true,
		OSSyncedAt:      &synced,
		CreatedAt:       synced,
	})
	require.NoError(t, store.SaveDefaults(ctx, doc))

	offers := domain.NewOffersDocument()
	offers.Offers = append(offers.Offers, domain.OfferEntry{
		OfferID:   "typora",
		DefaultID: "a1",
		State:     domain.OfferCreated,
		CreatedAt: synced,
	})
	require.NoError(t, store.SaveOffers(ctx, offers))

	reloaded, err := NewStore(dir).LoadDefaults(ctx)
	require.NoError(t, err)
	assert.Equal(t, doc, reloaded)

	reloadedOffers, err := NewStore(dir).LoadOffers(ctx)
	require.NoError(t, err)
	assert.Equal(t, offers, reloadedOffers)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), "temp file left behind: %s", e.Name())
	}
}

func TestStore_SaveRejectsInvalidDocument(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	doc := domain.NewDefaultsDocument()
	doc.Defaults = append(doc.Defaults, domain.DefaultEntry{ID: "a1", Extension: "nope", ApplicationPath: "/x", State: domain.StateActive})

	err := store.SaveDefaults(context.Background(), doc)
	require.Error(t, err)
	assert.True(t, domain.IsValidationError(err))
	assert.NoFileExists(t, store.DefaultsPath())
}

func TestStore_SaveIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	ctx := context.Background()

	writeFile(t, dir, "defaults.json", `{"version":"1.0.0","defaults":[{"id":"a1","extension":".txt","application_path":"/bin/x","state":"active","created_at":"2024-01-01T00:00:00Z"}]}`)
	doc, err := store.LoadDefaults(ctx)
	require.NoError(t, err)

	require.NoError(t, store.SaveDefaults(ctx, doc))
	first, err := os.ReadFile(store.DefaultsPath())
	require.NoError(t, err)

	again, err := store.LoadDefaults(ctx)
	require.NoError(t, err)
	require.NoError(t, store.SaveDefaults(ctx, again))
	second, err := os.ReadFile(store.DefaultsPath())
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))

	var raw map[string]any
	require.NoError(t, json.Unmarshal(second, &raw))
	assert.Equal(t, "1.1.0", raw["version"])
}

func TestStore_BackupOnSave(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultStoreConfig(dir)
	cfg.BackupOnSave = true
	store := NewStoreWithConfig(cfg)
	ctx := context.Background()

	require.NoError(t, store.SaveDefaults(ctx, domain.NewDefaultsDocument()))
	assert.NoFileExists(t, store.DefaultsPath()+".bak")

	doc := domain.NewDefaultsDocument()
	doc.Defaults = append(doc.Defaults, domain.DefaultEntry{ID: "a1", Extension: ".txt", ApplicationPath: "/x", State: domain.StatePending})
	require.NoError(t, store.SaveDefaults(ctx, doc))

	backup, err := os.ReadFile(store.DefaultsPath() + ".bak")
	require.NoError(t, err)
	assert.Contains(t, string(backup), `"defaults": []`)
}

func TestStore_LockIsExclusive(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultStoreConfig(dir)
	cfg.LockTimeout = 200 * time.Millisecond
	store := NewStoreWithConfig(cfg)
	ctx := context.Background()

	unlock, err := store.Lock(ctx)
	require.NoError(t, err)

	_, err = NewStoreWithConfig(cfg).Lock(ctx)
	require.Error(t, err)
	assert.Equal(t, domain.ErrLockTimeout, domain.CodeOf(err))

	require.NoError(t, unlock())

	unlockAgain, err := NewStoreWithConfig(cfg).Lock(ctx)
	require.NoError(t, err)
	require.NoError(t, unlockAgain())
}

func TestStore_HealthCheck(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	ctx := context.Background()

	assert.Equal(t, domain.HealthStatusHealthy, store.HealthCheck(ctx).Status)

	writeFile(t, dir, "defaults.json", `not json`)
	status := store.HealthCheck(ctx)
	assert.Equal(t, domain.HealthStatusUnhealthy, status.Status)
	assert.Contains(t, status.Details["error"], "DATA_CORRUPTED")
}
