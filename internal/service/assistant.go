package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"tyre-assistant/internal/models"
	"tyre-assistant/internal/retrieval"
	"tyre-assistant/internal/sqlgen"
	"tyre-assistant/internal/util"

	"go.uber.org/zap"
)

// EntityCorrector fixes misspelled entity references before any prompt
// sees the query.
type EntityCorrector interface {
	CorrectEntities(query string) string
}

// SQLSynthesizer turns a question into a guarded statement or NO_SQL.
type SQLSynthesizer interface {
	Synthesize(ctx context.Context, session *models.Session, query string, history []models.Exchange) (string, error)
}

// SQLRunner executes a guarded statement.
type SQLRunner interface {
	Execute(ctx context.Context, sql string) ([]map[string]interface{}, error)
}

// Retriever is the semantic search pipeline.
type Retriever interface {
	Rewrite(ctx context.Context, corrected string) string
	ExtractMetadata(ctx context.Context, session *models.Session, corrected string) map[string]interface{}
	Search(ctx context.Context, session *models.Session, queryEmbedding []float64, metadataFilter map[string]interface{}) ([]retrieval.RetrievedRow, error)
}

// QueryEmbedder embeds the rewritten query.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// ConversationLog records answered exchanges.
type ConversationLog interface {
	AppendConversation(ctx context.Context, entry *models.ConversationLogEntry) error
	HistorySource
}

// Assistant is the top-level query orchestrator.
type Assistant struct {
	corrector EntityCorrector
	orders    *OrderEngine
	generator SQLSynthesizer
	runner    SQLRunner
	retriever Retriever
	embedder  QueryEmbedder
	finalizer *Finalizer
	log       ConversationLog
}

// NewAssistant wires the orchestrator.
func NewAssistant(corrector EntityCorrector, orders *OrderEngine, generator SQLSynthesizer, runner SQLRunner, retriever Retriever, embedder QueryEmbedder, finalizer *Finalizer, log ConversationLog) *Assistant {
	return &Assistant{
		corrector: corrector,
		orders:    orders,
		generator: generator,
		runner:    runner,
		retriever: retriever,
		embedder:  embedder,
		finalizer: finalizer,
		log:       log,
	}
}

// Answer handles one turn end to end. Order-flavored turns short-circuit
// before the query pipelines; everything else runs SQL and retrieval in
// parallel and synthesizes a final answer.
func (a *Assistant) Answer(ctx context.Context, session *models.Session, query string) (string, error) {
	ctx, span := util.StartSpan(ctx, "assistant.Answer")
	defer span.End()

	util.QueriesTotal.WithLabelValues(session.Role).Inc()
	logger := util.GetLogger()

	corrected := a.corrector.CorrectEntities(query)
	if corrected != query {
		logger.Debug("Entity correction applied",
			zap.String("original", query),
			zap.String("corrected", corrected))
	}

	if session.IsSalesRep() {
		if IsConfirmation(corrected) {
			if answer, handled := a.orders.HandleConfirmation(ctx, session); handled {
				a.record(ctx, session, query, answer)
				return answer, nil
			}
		}
		if IsCancellation(corrected) {
			if answer, handled := a.orders.HandleCancellation(ctx, session); handled {
				a.record(ctx, session, query, answer)
				return answer, nil
			}
		}
	}

	var expiryNotice, stockContext string
	if session.IsSalesRep() || session.IsDealer() {
		details := a.orders.ExtractOrderDetails(ctx, corrected)
		switch details.Intent {
		case "order":
			answer := a.orders.HandleOrderIntent(ctx, session, details)
			a.record(ctx, session, query, answer)
			return answer, nil
		case "info":
			stockContext = a.orders.StockSummary(ctx, details)
			// Informational turn while a proposal is pending discards
			// the proposal with a visible notice.
			if session.IsSalesRep() {
				expiryNotice = a.orders.ExpireProposal(ctx, session)
			}
		default:
			if session.IsSalesRep() {
				answer := "❌ Could not understand your intent. Please try rephrasing." + a.orders.ExpireProposal(ctx, session)
				a.record(ctx, session, query, answer)
				return answer, nil
			}
		}
	}

	sqlContext, ragContext, err := a.gatherContexts(ctx, session, corrected)
	if err != nil {
		return "", err
	}
	if stockContext != "" {
		if sqlContext == sqlgen.NoResultsSentinel {
			sqlContext = stockContext
		} else {
			sqlContext = stockContext + "\n\n" + sqlContext
		}
	}

	answer := a.finalizer.Finalize(ctx, session, corrected, sqlContext, ragContext) + expiryNotice
	a.record(ctx, session, query, answer)
	return answer, nil
}

// gatherContexts runs the SQL and retrieval pipelines concurrently.
// SQL synthesis, execution and vector-search failures degrade to their
// empty sentinels. An embedding failure is fatal to the whole request:
// without a vector there is nothing trustworthy to retrieve against.
func (a *Assistant) gatherContexts(ctx context.Context, session *models.Session, corrected string) (string, string, error) {
	logger := util.GetLogger()

	sqlContext := sqlgen.NoResultsSentinel
	ragContext := "No relevant vector context found."
	var embedErr error

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		ctx, span := util.StartSpan(ctx, "assistant.sqlPipeline")
		defer span.End()

		history, err := a.log.History(ctx, session.UserID, 3)
		if err != nil {
			logger.Warn("Failed to load history for SQL synthesis", zap.Error(err))
		}

		stmt, err := a.generator.Synthesize(ctx, session, corrected, history)
		if err != nil {
			logger.Warn("SQL synthesis failed", zap.Error(err))
			return
		}
		if strings.EqualFold(strings.TrimSpace(stmt), sqlgen.NoSQLSentinel) {
			return
		}

		results, err := a.runner.Execute(ctx, stmt)
		if err != nil {
			logger.Warn("SQL execution rejected or failed", zap.String("sql", stmt), zap.Error(err))
			return
		}
		sqlContext = sqlgen.Contextualize(results)
	}()

	go func() {
		defer wg.Done()
		ctx, span := util.StartSpan(ctx, "assistant.ragPipeline")
		defer span.End()

		rewritten := a.retriever.Rewrite(ctx, corrected)
		embedding, err := a.embedder.Embed(ctx, preprocess(rewritten))
		if err != nil {
			logger.Error("Query embedding failed", zap.Error(err))
			embedErr = fmt.Errorf("query embedding failed: %w", err)
			return
		}

		filter := a.retriever.ExtractMetadata(ctx, session, corrected)
		hits, err := a.retriever.Search(ctx, session, embedding, filter)
		if err != nil {
			logger.Warn("Vector search failed", zap.Error(err))
			return
		}
		if len(hits) > 0 {
			ragContext = retrieval.Contextualize(hits)
		}
	}()

	wg.Wait()
	if embedErr != nil {
		return "", "", embedErr
	}
	return sqlContext, ragContext, nil
}

// preprocess lowercases and strips punctuation before embedding.
func preprocess(query string) string {
	var b strings.Builder
	lastSpace := false
	for _, r := range strings.ToLower(query) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_':
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace && b.Len() > 0 {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// record appends the exchange to the conversation log. Failures are
// logged and swallowed; answering always wins.
func (a *Assistant) record(ctx context.Context, session *models.Session, query, answer string) {
	entry := &models.ConversationLogEntry{
		UserID:     session.UserID,
		DealerID:   session.DealerID,
		SalesRepID: session.SalesRepID,
		UserQuery:  query,
		AIResponse: answer,
		SessionID:  session.SessionID,
	}
	if err := a.log.AppendConversation(ctx, entry); err != nil {
		util.GetLogger().Warn("Failed to append conversation log", zap.Error(err))
	}
}
