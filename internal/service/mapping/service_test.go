package mapping_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/factwise/schema-mapper/internal/config"
	"github.com/factwise/schema-mapper/internal/domain"
	"github.com/factwise/schema-mapper/internal/service/mapping"
	"github.com/factwise/schema-mapper/internal/storage"
)

const clientCSV = "Qty,Desc,Mfg\n10, M3 screw ,Acme\n5,Washer,Bolt Co\n200,Nut,Acme\n"
const templateCSV = "quantity,item_name,manufacturer\n"

func newTestService(t *testing.T) *mapping.Service {
	t.Helper()
	store, err := storage.New(config.StorageConfig{
		Type:            "local",
		LocalPath:       t.TempDir(),
		SessionTTLHours: 24,
	})
	require.NoError(t, err)

	return mapping.NewService(mapping.Deps{
		Objects:   store,
		Sessions:  store,
		Templates: store,
	})
}

func uploadSession(t *testing.T, svc *mapping.Service) string {
	t.Helper()
	result, err := svc.Upload(context.Background(), mapping.UploadInput{
		ClientFilename:   "bom.csv",
		ClientContent:    []byte(clientCSV),
		TemplateFilename: "target.csv",
		TemplateContent:  []byte(templateCSV),
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.SessionID)
	return result.SessionID
}

func saveMappings(t *testing.T, svc *mapping.Service, sessionID string) {
	t.Helper()
	raw := json.RawMessage(`{"quantity": "Qty", "item_name": "Desc", "manufacturer": "Mfg"}`)
	require.NoError(t, svc.SaveMappings(context.Background(), sessionID, raw, nil))
}

func TestUpload(t *testing.T) {
	svc := newTestService(t)

	result, err := svc.Upload(context.Background(), mapping.UploadInput{
		ClientFilename:   "bom.csv",
		ClientContent:    []byte(clientCSV),
		TemplateFilename: "target.csv",
		TemplateContent:  []byte(templateCSV),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Qty", "Desc", "Mfg"}, result.ClientHeaders)
	assert.Equal(t, []string{"quantity", "item_name", "manufacturer"}, result.TemplateHeaders)
}

func TestUploadRequiresClientFile(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Upload(context.Background(), mapping.UploadInput{ClientFilename: "x.csv"})
	assert.ErrorIs(t, err, mapping.ErrMissingFile)
}

func TestHeaders(t *testing.T) {
	svc := newTestService(t)
	id := uploadSession(t, svc)

	result, err := svc.Headers(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, []string{"Qty", "Desc", "Mfg"}, result.ClientHeaders)
	assert.Equal(t, []string{"quantity", "item_name", "manufacturer"}, result.TemplateHeaders)
	assert.Equal(t, []string{"10", "5", "200"}, result.Samples["Qty"])

	_, err = svc.Headers(context.Background(), "no-such-session")
	assert.ErrorIs(t, err, mapping.ErrSessionNotFound)
}

func TestSuggest(t *testing.T) {
	svc := newTestService(t)
	id := uploadSession(t, svc)

	entries, err := svc.Suggest(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	byTemplate := map[string]domain.MappingEntry{}
	for _, e := range entries {
		byTemplate[e.TemplateHeader] = e
	}
	assert.Equal(t, "Qty", byTemplate["quantity"].MappedClientHeader)
	assert.Equal(t, "Desc", byTemplate["item_name"].MappedClientHeader)
	assert.Equal(t, "Mfg", byTemplate["manufacturer"].MappedClientHeader)
	for _, e := range entries {
		assert.GreaterOrEqual(t, e.Confidence, 40)
	}
}

func TestSaveMappingsValidation(t *testing.T) {
	svc := newTestService(t)
	id := uploadSession(t, svc)

	err := svc.SaveMappings(context.Background(), id, json.RawMessage(`[]`), nil)
	assert.ErrorIs(t, err, mapping.ErrNoMappings)

	err = svc.SaveMappings(context.Background(), id, json.RawMessage(`not json`), nil)
	assert.Error(t, err)
}

func TestPreviewPipeline(t *testing.T) {
	svc := newTestService(t)
	id := uploadSession(t, svc)
	ctx := context.Background()

	// Without mappings the preview is an empty dataset, not an error.
	page, err := svc.Preview(ctx, id, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, page.Rows)
	assert.Equal(t, 0, page.TotalRows)

	saveMappings(t, svc, id)
	require.NoError(t, svc.SaveFormulaRules(ctx, id, []domain.FormulaRule{{
		SourceColumn: "item_name",
		SubRules:     []domain.SubRule{{SearchText: "screw", OutputValue: "Fastener"}},
	}}))
	require.NoError(t, svc.SetIdentityRule(ctx, id, domain.IdentityRule{
		FirstColumn: "manufacturer", SecondColumn: "quantity", Operator: "-",
	}))

	page, err = svc.Preview(ctx, id, 1, 10)
	require.NoError(t, err)

	assert.Equal(t, []string{"Factwise_ID", "quantity", "item_name", "manufacturer", "Tag_1"}, page.Headers)
	require.Len(t, page.Rows, 3)
	assert.Equal(t, []string{"Acme-10", "10", "M3 screw", "Acme", "Fastener"}, page.Rows[0])
	assert.Equal(t, []string{"Bolt Co-5", "5", "Washer", "Bolt Co", ""}, page.Rows[1])
	assert.Equal(t, 3, page.TotalRows)
	assert.Equal(t, 1, page.TotalPages)
}

func TestPreviewPagination(t *testing.T) {
	svc := newTestService(t)
	id := uploadSession(t, svc)
	saveMappings(t, svc, id)
	ctx := context.Background()

	page, err := svc.Preview(ctx, id, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 3, page.TotalRows)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Rows, 1)

	// Past the end: empty rows, same totals.
	page, err = svc.Preview(ctx, id, 9, 2)
	require.NoError(t, err)
	assert.Empty(t, page.Rows)
	assert.Equal(t, 3, page.TotalRows)
}

func TestPreviewUsesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := mapping.NewPreviewCache(client, time.Minute)

	store, err := storage.New(config.StorageConfig{
		Type:            "local",
		LocalPath:       t.TempDir(),
		SessionTTLHours: 24,
	})
	require.NoError(t, err)
	svc := mapping.NewService(mapping.Deps{
		Objects: store, Sessions: store, Templates: store, Cache: cache,
	})

	id := uploadSession(t, svc)
	saveMappings(t, svc, id)
	ctx := context.Background()

	_, err = svc.Preview(ctx, id, 1, 10)
	require.NoError(t, err)
	assert.True(t, mr.Exists("preview:"+id), "preview cached after first build")

	// Mutating the session drops the cached dataset.
	require.NoError(t, svc.SaveFormulaRules(ctx, id, nil))
	assert.False(t, mr.Exists("preview:"+id))

	page, err := svc.Preview(ctx, id, 1, 10)
	require.NoError(t, err)
	assert.Len(t, page.Rows, 3)
}

func TestExport(t *testing.T) {
	svc := newTestService(t)
	id := uploadSession(t, svc)
	ctx := context.Background()

	_, err := svc.Export(ctx, id, "csv")
	assert.ErrorIs(t, err, mapping.ErrNoMappings)

	saveMappings(t, svc, id)

	result, err := svc.Export(ctx, id, "csv")
	require.NoError(t, err)
	assert.Equal(t, "bom_mapped.csv", result.Filename)
	assert.Equal(t, "processed/"+id+"/bom_mapped.csv", result.Key)
	assert.Contains(t, result.URL, "file://")
	assert.Equal(t, 3, result.Rows)

	xlsxResult, err := svc.Export(ctx, id, "")
	require.NoError(t, err)
	assert.Equal(t, "bom_mapped.xlsx", xlsxResult.Filename)

	_, err = svc.Export(ctx, id, "pdf")
	assert.ErrorIs(t, err, mapping.ErrUnsupportedFormat)
}

func TestTemplateRoundTrip(t *testing.T) {
	svc := newTestService(t)
	id := uploadSession(t, svc)
	saveMappings(t, svc, id)
	ctx := context.Background()

	require.NoError(t, svc.SaveFormulaRules(ctx, id, []domain.FormulaRule{{
		SourceColumn: "item_name",
		SubRules:     []domain.SubRule{{SearchText: "screw", OutputValue: "Fastener"}},
	}}))

	tpl, err := svc.SaveTemplate(ctx, mapping.TemplateInput{Name: "Standard BOM", SessionID: id})
	require.NoError(t, err)
	require.NotEmpty(t, tpl.ID)
	assert.Equal(t, "Qty", tpl.Mappings["quantity"])
	assert.Len(t, tpl.FormulaRules, 1)

	// Apply to a fresh session whose headers differ slightly.
	result, err := svc.Upload(ctx, mapping.UploadInput{
		ClientFilename: "bom2.csv",
		ClientContent:  []byte("Qtyy,Desc,Mfg\n1,Bolt,Acme\n"),
	})
	require.NoError(t, err)

	applied, err := svc.ApplyTemplate(ctx, result.SessionID, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, applied.TotalTemplateColumns)
	assert.Equal(t, 3, applied.TotalMapped)
	assert.Equal(t, "Qtyy", applied.Mappings["quantity"], "near-identical header fuzzy-matched")
	assert.Equal(t, "Desc", applied.Mappings["item_name"])

	got, err := svc.GetTemplate(ctx, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.UsageCount)

	// The applied session previews with the template's rules in effect.
	page, err := svc.Preview(ctx, result.SessionID, 1, 10)
	require.NoError(t, err)
	assert.Contains(t, page.Headers, "Tag_1")
}

func TestApplyTemplateNoFuzzyHit(t *testing.T) {
	svc := newTestService(t)
	id := uploadSession(t, svc)
	saveMappings(t, svc, id)
	ctx := context.Background()

	tpl, err := svc.SaveTemplate(ctx, mapping.TemplateInput{Name: "BOM", SessionID: id})
	require.NoError(t, err)

	result, err := svc.Upload(ctx, mapping.UploadInput{
		ClientFilename: "other.csv",
		ClientContent:  []byte("colour,size\nred,XL\n"),
	})
	require.NoError(t, err)

	applied, err := svc.ApplyTemplate(ctx, result.SessionID, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, applied.TotalMapped)
	assert.Empty(t, applied.Mappings)
}

func TestTemplateNotFound(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.GetTemplate(context.Background(), "ghost")
	assert.ErrorIs(t, err, mapping.ErrTemplateNotFound)
	assert.ErrorIs(t, svc.DeleteTemplate(context.Background(), "ghost"), mapping.ErrTemplateNotFound)
}

func TestSaveTemplateValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.SaveTemplate(ctx, mapping.TemplateInput{})
	assert.Error(t, err, "name required")

	id := uploadSession(t, svc)
	_, err = svc.SaveTemplate(ctx, mapping.TemplateInput{Name: "X", SessionID: id})
	assert.ErrorIs(t, err, mapping.ErrNoMappings, "session without mappings")
}
