package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"tyre-assistant/internal/llm"
	"tyre-assistant/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChat struct {
	reply string
	err   error
}

func (f *fakeChat) Complete(context.Context, llm.ChatRequest) (string, error) {
	return f.reply, f.err
}

type fakeRows struct {
	rows []models.VectorRow
}

func (f *fakeRows) LoadVectorRows(context.Context) ([]models.VectorRow, error) {
	return f.rows, nil
}

func strPtr(s string) *string { return &s }

func vecJSON(t *testing.T, v []float64) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func makeRow(t *testing.T, id int64, embedding []float64, metadata map[string]interface{}) models.VectorRow {
	t.Helper()
	meta, err := json.Marshal(metadata)
	require.NoError(t, err)
	return models.VectorRow{
		ID:          id,
		TableJoin:   "inventory_product_warehouse",
		Description: fmt.Sprintf("row %d", id),
		Embedding:   vecJSON(t, embedding),
		Metadata:    string(meta),
	}
}

func newTestEngine(rows []models.VectorRow) *Engine {
	return NewEngine(&fakeChat{}, nil, &fakeRows{rows: rows}, 10, 0.08, 0.3)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float64{1, 0}, []float64{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float64{1, 0}, []float64{-1, 0}), 1e-9)
	// Zero vectors never divide by zero.
	assert.Equal(t, 0.0, CosineSimilarity([]float64{0, 0}, []float64{1, 1}))
	assert.Equal(t, 0.0, CosineSimilarity([]float64{1, 2}, []float64{1, 2, 3}))
}

func TestScoreMetadataExactAndFuzzy(t *testing.T) {
	filter := map[string]interface{}{"product_name": "speedocruze"}

	exact := ScoreMetadata(nil, filter, map[string]interface{}{"product_name": "SpeedoCruze"})
	assert.InDelta(t, 1.0, exact, 1e-9)

	fuzzy := ScoreMetadata(nil, filter, map[string]interface{}{"product_name": "SpeedoCruz"})
	assert.Greater(t, fuzzy, 0.69)
	assert.Less(t, fuzzy, 1.0)

	substring := ScoreMetadata(nil, map[string]interface{}{"warehouse_location": "chen"},
		map[string]interface{}{"warehouse_location": "xyzchenxyzabc"})
	assert.InDelta(t, 0.7, substring, 1e-9)
}

func TestScoreMetadataAveragesOverFilterCount(t *testing.T) {
	filter := map[string]interface{}{
		"product_name": "SpeedoCruze",
		"dealer_name":  "Nobody Here",
	}
	score := ScoreMetadata(nil, filter, map[string]interface{}{"product_name": "SpeedoCruze"})
	assert.InDelta(t, 0.5, score, 1e-9)
}

func TestScoreMetadataDealerIsolation(t *testing.T) {
	dealer := &models.Session{Role: models.RoleDealer, DealerID: strPtr("D1")}
	filter := map[string]interface{}{"claim_id": "55"}

	// Another dealer's claim row scores zero no matter how well it matches.
	other := map[string]interface{}{"dealer_id": "D2", "claim_id": "55"}
	assert.Equal(t, 0.0, ScoreMetadata(dealer, filter, other))

	// The dealer's own claim row scores normally.
	own := map[string]interface{}{"dealer_id": "D1", "claim_id": "55"}
	assert.InDelta(t, 1.0, ScoreMetadata(dealer, filter, own), 1e-9)

	// Rows tagged with another dealer id but carrying no sales or claim
	// keys are not isolated.
	inv := map[string]interface{}{"dealer_id": "D2", "product_id": "P1"}
	score := ScoreMetadata(dealer, map[string]interface{}{"product_id": "P1"}, inv)
	assert.InDelta(t, 1.0, score, 1e-9)
}

func TestSearchThresholdAndTopK(t *testing.T) {
	query := []float64{1, 0}
	rows := []models.VectorRow{
		makeRow(t, 1, []float64{1, 0}, map[string]interface{}{"product_id": "P1"}),
		makeRow(t, 2, []float64{0.9, 0.1}, map[string]interface{}{"product_id": "P2"}),
		makeRow(t, 3, []float64{0, 1}, map[string]interface{}{"product_id": "P3"}), // below threshold
	}
	engine := newTestEngine(rows)

	hits, err := engine.Search(context.Background(), nil, query, nil)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, int64(1), hits[0].Row.ID)
	assert.Equal(t, int64(2), hits[1].Row.ID)
	assert.GreaterOrEqual(t, hits[1].Similarity, 0.08)
}

func TestSearchTopKCut(t *testing.T) {
	query := []float64{1, 0}
	var rows []models.VectorRow
	for i := 0; i < 15; i++ {
		rows = append(rows, makeRow(t, int64(i+1), []float64{1, float64(i) * 0.01}, nil))
	}
	engine := newTestEngine(rows)

	hits, err := engine.Search(context.Background(), nil, query, nil)
	require.NoError(t, err)
	assert.Len(t, hits, 10)
}

func TestSearchMetadataPreFilter(t *testing.T) {
	query := []float64{1, 0}
	rows := []models.VectorRow{
		makeRow(t, 1, []float64{1, 0}, map[string]interface{}{"product_name": "SpeedoCruze"}),
		makeRow(t, 2, []float64{1, 0}, map[string]interface{}{"product_name": "MaxATB"}),
	}
	engine := newTestEngine(rows)

	filter := map[string]interface{}{"product_name": "SpeedoCruze"}
	hits, err := engine.Search(context.Background(), nil, query, filter)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, int64(1), hits[0].Row.ID)
}

func TestSearchMetadataFloorCanEmpty(t *testing.T) {
	query := []float64{1, 0}
	rows := []models.VectorRow{
		makeRow(t, 1, []float64{1, 0}, map[string]interface{}{"product_name": "MaxATB", "category": "bias", "zone": "north", "warehouse_id": "W9"}),
	}
	engine := newTestEngine(rows)

	// One weak substring hit out of four filters lands under the floor,
	// so the pre-filter legitimately empties the candidate set.
	filter := map[string]interface{}{
		"product_name": "axa",
		"dealer_name":  "nobody",
		"sales_rep_id": "SR0",
		"claim_id":     "999",
	}
	hits, err := engine.Search(context.Background(), nil, query, filter)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchSkipsMalformedRows(t *testing.T) {
	rows := []models.VectorRow{
		{ID: 1, Embedding: "not json", Metadata: "{}"},
		makeRow(t, 2, []float64{1, 0}, nil),
	}
	engine := newTestEngine(rows)

	hits, err := engine.Search(context.Background(), nil, []float64{1, 0}, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, int64(2), hits[0].Row.ID)
}

func TestRewriteFallsBackOnError(t *testing.T) {
	engine := NewEngine(&fakeChat{err: fmt.Errorf("provider down")}, nil, &fakeRows{}, 10, 0.08, 0.3)
	assert.Equal(t, "corrected query", engine.Rewrite(context.Background(), "corrected query"))
}

func TestExtractMetadataRejectsNonJSON(t *testing.T) {
	engine := NewEngine(&fakeChat{reply: "I think the product is SpeedoCruze"}, nil, &fakeRows{}, 10, 0.08, 0.3)
	assert.Nil(t, engine.ExtractMetadata(context.Background(), nil, "query"))

	engine = NewEngine(&fakeChat{reply: `{"product_name": "SpeedoCruze"}`}, nil, &fakeRows{}, 10, 0.08, 0.3)
	meta := engine.ExtractMetadata(context.Background(), nil, "query")
	require.NotNil(t, meta)
	assert.Equal(t, "SpeedoCruze", meta["product_name"])
}

func TestContextualizeOmitsEmbedding(t *testing.T) {
	hits := []RetrievedRow{{Row: makeRow(t, 7, []float64{1}, map[string]interface{}{"product_id": "P7"}), Similarity: 0.9}}
	out := Contextualize(hits)
	assert.Contains(t, out, "Vector Row 1:")
	assert.Contains(t, out, "row 7")
	assert.NotContains(t, out, "[1]")
}
