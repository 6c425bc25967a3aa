package service

import (
	"context"
	"fmt"
	"testing"

	"tyre-assistant/internal/models"
	"tyre-assistant/internal/redisclient"
	"tyre-assistant/internal/retrieval"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type identityCorrector struct{}

func (identityCorrector) CorrectEntities(query string) string { return query }

type fakeGenerator struct {
	stmt string
	err  error
}

func (f *fakeGenerator) Synthesize(context.Context, *models.Session, string, []models.Exchange) (string, error) {
	return f.stmt, f.err
}

type fakeRunner struct {
	results []map[string]interface{}
	err     error
	ran     []string
}

func (f *fakeRunner) Execute(_ context.Context, sql string) ([]map[string]interface{}, error) {
	f.ran = append(f.ran, sql)
	return f.results, f.err
}

type fakeRetriever struct {
	hits []retrieval.RetrievedRow
}

func (f *fakeRetriever) Rewrite(_ context.Context, corrected string) string { return corrected }

func (f *fakeRetriever) ExtractMetadata(context.Context, *models.Session, string) map[string]interface{} {
	return nil
}

func (f *fakeRetriever) Search(context.Context, *models.Session, []float64, map[string]interface{}) ([]retrieval.RetrievedRow, error) {
	return f.hits, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(context.Context, string) ([]float64, error) {
	return []float64{1, 0}, nil
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float64, error) {
	return nil, fmt.Errorf("embedding provider returned status 500")
}

func newTestAssistant(chat *fakeChat, store *fakeOrderStore, proposals *fakeProposals, generator *fakeGenerator, runner *fakeRunner, log *fakeHistory) *Assistant {
	engine := NewOrderEngine(chat, store, proposals, nil)
	finalizer := NewFinalizer(chat, log)
	return NewAssistant(identityCorrector{}, engine, generator, runner, &fakeRetriever{}, fakeEmbedder{}, finalizer, log)
}

func TestAnswerInfoQueryRunsBothPipelines(t *testing.T) {
	// Replies in call order: order extraction, then the final answer.
	chat := &fakeChat{replies: []string{`{"intent": "info"}`, "Final answer 🛞"}}
	runner := &fakeRunner{results: []map[string]interface{}{{"quantity": 12}}}
	generator := &fakeGenerator{stmt: "SELECT quantity FROM inventory"}
	log := &fakeHistory{}

	assistant := newTestAssistant(chat, newFakeOrderStore(), newFakeProposals(), generator, runner, log)

	answer, err := assistant.Answer(context.Background(), repSession("s1"), "how much SpeedoCruze stock is left?")
	require.NoError(t, err)
	assert.Equal(t, "Final answer 🛞", answer)
	assert.Equal(t, []string{"SELECT quantity FROM inventory"}, runner.ran)

	// The exchange was logged.
	require.Len(t, log.logged, 1)
	assert.Equal(t, "how much SpeedoCruze stock is left?", log.logged[0].UserQuery)
}

func TestAnswerFailsWhenEmbeddingFails(t *testing.T) {
	chat := &fakeChat{replies: []string{`{"intent": "info"}`, "must not reach the caller"}}
	log := &fakeHistory{}
	engine := NewOrderEngine(chat, newFakeOrderStore(), newFakeProposals(), nil)
	finalizer := NewFinalizer(chat, log)
	assistant := NewAssistant(identityCorrector{}, engine, &fakeGenerator{stmt: "NO_SQL"}, &fakeRunner{}, &fakeRetriever{}, failingEmbedder{}, finalizer, log)

	answer, err := assistant.Answer(context.Background(), repSession("s1"), "anything about claims?")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query embedding failed")
	assert.Empty(t, answer)
	assert.Empty(t, log.logged)
}

func TestAnswerInfoStockQuestionFeedsAvailability(t *testing.T) {
	chat := &fakeChat{replies: []string{`{"intent": "info", "product_id": "P9", "quantity": 20}`, "Final answer"}}
	store := newFakeOrderStore()
	store.stock = &models.StockAvailability{
		Available: true, ProductName: "SpeedoCruze", TotalStock: 80, RequiredQuantity: 20,
		Warehouses: []models.StockLocation{
			{WarehouseID: "W2", Location: "Chennai", Zone: "south", Quantity: 80, Sufficient: true},
		},
	}

	assistant := newTestAssistant(chat, store, newFakeProposals(), &fakeGenerator{stmt: "NO_SQL"}, &fakeRunner{}, &fakeHistory{})

	answer, err := assistant.Answer(context.Background(), dealerSession("s1"), "do we have 20 SpeedoCruze in stock?")
	require.NoError(t, err)
	assert.Equal(t, "Final answer", answer)

	// The availability summary reaches final synthesis as SQL context.
	assert.Contains(t, chat.lastReq.User, "80 units in total")
	assert.Contains(t, chat.lastReq.User, "W2 (Chennai, south zone): 80 units")
}

func TestAnswerSkipsExecutionOnNoSQL(t *testing.T) {
	chat := &fakeChat{replies: []string{`{"intent": "info"}`, "answer"}}
	runner := &fakeRunner{}
	generator := &fakeGenerator{stmt: "NO_SQL"}

	assistant := newTestAssistant(chat, newFakeOrderStore(), newFakeProposals(), generator, runner, &fakeHistory{})

	_, err := assistant.Answer(context.Background(), repSession("s1"), "hello there")
	require.NoError(t, err)
	assert.Empty(t, runner.ran)
}

func TestAnswerDegradesOnExecutionFailure(t *testing.T) {
	chat := &fakeChat{replies: []string{`{"intent": "info"}`, "answer"}}
	runner := &fakeRunner{err: fmt.Errorf("only single SELECT statements are allowed")}
	generator := &fakeGenerator{stmt: "SELECT 1; DROP TABLE orders"}

	assistant := newTestAssistant(chat, newFakeOrderStore(), newFakeProposals(), generator, runner, &fakeHistory{})

	answer, err := assistant.Answer(context.Background(), repSession("s1"), "weird question")
	require.NoError(t, err)
	assert.Equal(t, "answer", answer)
}

func TestAnswerOrderTurnShortCircuits(t *testing.T) {
	chat := &fakeChat{replies: []string{`{"intent": "order", "dealer_id": "D1", "product_id": "P1", "quantity": 2}`}}
	runner := &fakeRunner{}
	store := newFakeOrderStore()
	proposals := newFakeProposals()

	assistant := newTestAssistant(chat, store, proposals, &fakeGenerator{stmt: "NO_SQL"}, runner, &fakeHistory{})

	answer, err := assistant.Answer(context.Background(), repSession("s1"), "order 2 P1 for dealer D1")
	require.NoError(t, err)
	assert.Contains(t, answer, "confirm")
	assert.Empty(t, runner.ran)
	assert.NotNil(t, proposals.proposals["s1"])
}

func TestAnswerConfirmTurnPlacesOrder(t *testing.T) {
	chat := &fakeChat{replies: []string{"unused"}}
	store := newFakeOrderStore()
	proposals := newFakeProposals()
	proposals.proposals["s1"] = &redisclient.Proposal{DealerID: "D1", ProductID: "P1", Quantity: 2}

	assistant := newTestAssistant(chat, store, proposals, &fakeGenerator{stmt: "NO_SQL"}, &fakeRunner{}, &fakeHistory{})

	answer, err := assistant.Answer(context.Background(), repSession("s1"), "yes")
	require.NoError(t, err)
	assert.Contains(t, answer, "✅")
	require.Len(t, store.placed, 1)
}

func TestPreprocess(t *testing.T) {
	assert.Equal(t, "radial tyres 100 35r24", preprocess("Radial tyres, 100/35R24?"))
	assert.Equal(t, "hello world", preprocess("  Hello,   World!  "))
}
