package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/factwise/schema-mapper/internal/config"
	"github.com/factwise/schema-mapper/internal/domain"
)

func newTestStorage(t *testing.T) *Storage {
	cfg := config.StorageConfig{
		Type:            "local",
		LocalPath:       t.TempDir(),
		SessionTTLHours: 24,
	}

	s, err := New(cfg)
	require.NoError(t, err)
	return s
}

func TestNewUnknownType(t *testing.T) {
	_, err := New(config.StorageConfig{Type: "tape"})
	require.Error(t, err)
}

func TestSaveUploadAndGetObject(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	content := []byte("Qty,Desc\n1,Bolt\n")
	key, err := s.SaveUpload(ctx, "bom.csv", RoleClient, content)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(key, "uploads/"), "key %q", key)
	assert.True(t, strings.HasSuffix(key, "_client.csv"), "key %q", key)

	got, err := s.GetObject(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	// Same filename again gets a distinct key.
	key2, err := s.SaveUpload(ctx, "bom.csv", RoleClient, content)
	require.NoError(t, err)
	assert.NotEqual(t, key, key2)
}

func TestGetObjectNotFound(t *testing.T) {
	s := newTestStorage(t)
	_, err := s.GetObject(context.Background(), "uploads/nope.csv")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveProcessedAndPresign(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	key, err := s.SaveProcessed(ctx, "sess-1", "bom_mapped.csv", []byte("a,b\n"))
	require.NoError(t, err)
	assert.Equal(t, "processed/sess-1/bom_mapped.csv", key)

	url, err := s.PresignDownload(ctx, key)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "file://"), "url %q", url)

	_, err = s.PresignDownload(ctx, "processed/sess-1/missing.csv")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	session := &domain.Session{
		ClientKey:      "uploads/x_client.csv",
		ClientFilename: "bom.csv",
		HeaderRow:      1,
		Status:         domain.SessionStatusUploaded,
	}
	require.NoError(t, s.CreateSession(ctx, session))
	require.NotEmpty(t, session.ID)
	require.False(t, session.CreatedAt.IsZero())

	got, err := s.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "bom.csv", got.ClientFilename)

	got.Status = domain.SessionStatusMapped
	require.NoError(t, s.UpdateSession(ctx, got))
	got, err = s.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStatusMapped, got.Status)

	require.NoError(t, s.DeleteSession(ctx, session.ID))
	_, err = s.GetSession(ctx, session.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateMissingSession(t *testing.T) {
	s := newTestStorage(t)
	err := s.UpdateSession(context.Background(), &domain.Session{ID: "ghost"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionsSurviveRestart(t *testing.T) {
	dir := t.TempDir()
	cfg := config.StorageConfig{Type: "local", LocalPath: dir, SessionTTLHours: 24}
	ctx := context.Background()

	s1, err := New(cfg)
	require.NoError(t, err)
	session := &domain.Session{ClientFilename: "bom.csv", HeaderRow: 1}
	require.NoError(t, s1.CreateSession(ctx, session))

	s2, err := New(cfg)
	require.NoError(t, err)
	got, err := s2.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "bom.csv", got.ClientFilename)
}

func TestTemplateLifecycle(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	tpl := &domain.MappingTemplate{
		Name:     "Standard BOM",
		Mappings: map[string]string{"quantity": "Qty"},
	}
	require.NoError(t, s.SaveTemplate(ctx, tpl))
	require.NotEmpty(t, tpl.ID)

	got, err := s.GetTemplate(ctx, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, "Standard BOM", got.Name)
	assert.Equal(t, "Qty", got.Mappings["quantity"])

	require.NoError(t, s.IncrementTemplateUsage(ctx, tpl.ID))
	got, err = s.GetTemplate(ctx, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.UsageCount)

	list, err := s.ListTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, s.DeleteTemplate(ctx, tpl.ID))
	_, err = s.GetTemplate(ctx, tpl.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteTemplate(ctx, tpl.ID), ErrNotFound)
}
