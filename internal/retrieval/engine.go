// Package retrieval implements semantic search over the denormalized
// vector store: query rewriting, metadata extraction and scoring, cosine
// similarity ranking.
package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"tyre-assistant/internal/llm"
	"tyre-assistant/internal/models"
	"tyre-assistant/internal/resolver"
	"tyre-assistant/internal/util"
)

// Completer is the completion call used for rewriting and extraction.
type Completer interface {
	Complete(ctx context.Context, req llm.ChatRequest) (string, error)
}

// VectorEmbedder produces query embeddings.
type VectorEmbedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// RowSource loads the retrieval corpus.
type RowSource interface {
	LoadVectorRows(ctx context.Context) ([]models.VectorRow, error)
}

// Engine runs the retrieval pipeline. All thresholds come from config so
// they can be tuned without a rebuild.
type Engine struct {
	chat         Completer
	embedder     VectorEmbedder
	rows         RowSource
	topK         int
	simThreshold float64
	metaFloor    float64
}

// NewEngine creates a retrieval engine.
func NewEngine(chat Completer, embedder VectorEmbedder, rows RowSource, topK int, simThreshold, metaFloor float64) *Engine {
	return &Engine{
		chat:         chat,
		embedder:     embedder,
		rows:         rows,
		topK:         topK,
		simThreshold: simThreshold,
		metaFloor:    metaFloor,
	}
}

// Rewrite reformulates the corrected query for vector search. On any
// provider failure the corrected query is used as-is.
func (e *Engine) Rewrite(ctx context.Context, corrected string) string {
	system := `You are an expert at rewriting queries for better vector similarity search in a tyre manufacturing context. Your task is to rewrite user queries to make them more neutral, comprehensive, and suitable for semantic search.

Guidelines for rewriting:
1. Remove conversational elements (please, can you, I want to know, etc.)
2. Expand abbreviations and acronyms related to tyres (e.g., 'R' to 'radial')
3. Add relevant synonyms and related terms
4. Convert questions to declarative statements focusing on key concepts
5. Include industry-specific terminology where appropriate
6. Maintain all specific identifiers (IDs, part numbers, names)
7. Focus on the core information need
8. Include variations and synonyms for names and products to handle typos

Only return the rewritten query, nothing else.`

	rewritten, err := e.chat.Complete(ctx, llm.ChatRequest{
		System:      system,
		User:        corrected,
		Temperature: 0.1,
		MaxTokens:   150,
		Operation:   "query_rewrite",
	})
	if err != nil || strings.TrimSpace(rewritten) == "" {
		return corrected
	}
	return strings.TrimSpace(rewritten)
}

// ExtractMetadata pulls structured filters from the corrected query.
// Returns nil when nothing parses; retrieval then runs unfiltered.
func (e *Engine) ExtractMetadata(ctx context.Context, session *models.Session, corrected string) map[string]interface{} {
	userContext := ""
	if session != nil {
		switch {
		case session.IsDealer():
			userContext = fmt.Sprintf(" The current user is a DEALER named %s with dealer_id '%s'.",
				strDeref(session.DealerName), session.Dealer())
		case session.IsSalesRep():
			userContext = fmt.Sprintf(" The current user is a SALES REPRESENTATIVE named %s with sales_rep_id '%s'.",
				strDeref(session.SalesRepName), session.SalesRep())
		}
	}

	system := `You are an intelligent assistant that extracts structured metadata from user queries related to tyres, orders, claims, dealers, sales reps, and warehouses.
Your job is to return a valid JSON object with as many of the following fields as possible:

  - order_id
  - dealer_id
  - dealer_name
  - sales_rep_id
  - sales_rep_name
  - product_id (e.g., 100/35R24 50P)
  - product_name (e.g., SpeedoCruze Pro)
  - category
  - warehouse_id (number or alphanumeric)
  - warehouse_location
  - claim_id

Only return fields if they are clearly mentioned in the query. Use fuzzy matching where helpful.
Return ONLY a valid JSON object. Do NOT explain, add comments, or format as a code block.` + userContext

	content, err := e.chat.Complete(ctx, llm.ChatRequest{
		System:      system,
		User:        corrected,
		Temperature: 0,
		MaxTokens:   200,
		Operation:   "metadata_extraction",
	})
	if err != nil {
		return nil
	}

	var metadata map[string]interface{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &metadata); err != nil {
		return nil
	}
	return metadata
}

// CosineSimilarity returns the cosine of the angle between two vectors,
// or 0.0 when either has zero magnitude.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0.0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// RetrievedRow is one ranked search hit.
type RetrievedRow struct {
	Row        models.VectorRow
	Similarity float64
}

// Search runs the full pipeline over the corpus: metadata pre-filter,
// then cosine ranking with threshold and top-K cut. Rows with malformed
// embeddings or metadata are skipped, never fatal.
func (e *Engine) Search(ctx context.Context, session *models.Session, queryEmbedding []float64, metadataFilter map[string]interface{}) ([]RetrievedRow, error) {
	rows, err := e.rows.LoadVectorRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load retrieval corpus: %w", err)
	}
	util.VectorRowsScannedTotal.Add(float64(len(rows)))

	if len(metadataFilter) > 0 {
		type scored struct {
			score float64
			row   models.VectorRow
		}
		var kept []scored
		for _, row := range rows {
			meta := map[string]interface{}{}
			if err := json.Unmarshal([]byte(row.Metadata), &meta); err != nil {
				continue
			}
			score := ScoreMetadata(session, metadataFilter, meta)
			if score > 0 {
				kept = append(kept, scored{score: score, row: row})
			}
		}
		sort.SliceStable(kept, func(i, j int) bool { return kept[i].score > kept[j].score })

		rows = rows[:0:0]
		for _, s := range kept {
			if s.score >= e.metaFloor {
				rows = append(rows, s.row)
			}
		}
	}

	var hits []RetrievedRow
	for _, row := range rows {
		var embedding []float64
		if err := json.Unmarshal([]byte(row.Embedding), &embedding); err != nil {
			continue
		}
		sim := CosineSimilarity(queryEmbedding, embedding)
		if sim >= e.simThreshold {
			hits = append(hits, RetrievedRow{Row: row, Similarity: sim})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })
	if len(hits) > e.topK {
		hits = hits[:e.topK]
	}
	return hits, nil
}

// ScoreMetadata computes the mean per-filter match score in [0, 1].
// Dealer sessions score zero against sales or claim rows belonging to a
// different dealer; that isolation overrides every field match.
func ScoreMetadata(session *models.Session, filter, rowMeta map[string]interface{}) float64 {
	if len(filter) == 0 || len(rowMeta) == 0 {
		return 0
	}

	if session != nil && session.IsDealer() {
		if rowDealer, ok := rowMeta["dealer_id"]; ok {
			if fmt.Sprint(rowDealer) != session.Dealer() {
				_, hasSales := rowMeta["sales_id"]
				_, hasClaim := rowMeta["claim_id"]
				if hasSales || hasClaim {
					return 0
				}
			}
		}
	}

	var matchScore float64
	for key, filterValue := range filter {
		rowValue, ok := rowMeta[key]
		if !ok {
			continue
		}
		fv := strings.ToLower(fmt.Sprint(filterValue))
		rv := strings.ToLower(fmt.Sprint(rowValue))
		if fv == "" || rv == "" {
			continue
		}

		sim := resolver.Ratio(fv, rv)
		switch {
		case fv == rv:
			matchScore += 1
		case sim >= 70:
			matchScore += float64(sim) / 100
		case strings.Contains(rv, fv) || strings.Contains(fv, rv):
			matchScore += 0.7
		}
	}
	return matchScore / float64(len(filter))
}

// Contextualize renders hits as numbered blocks, every stored field
// except the raw embedding.
func Contextualize(hits []RetrievedRow) string {
	var b strings.Builder
	for i, hit := range hits {
		fmt.Fprintf(&b, "\nVector Row %d:\n", i+1)
		fmt.Fprintf(&b, "id: %d\n", hit.Row.ID)
		fmt.Fprintf(&b, "table_join: %s\n", hit.Row.TableJoin)
		fmt.Fprintf(&b, "description: %s\n", hit.Row.Description)
		fmt.Fprintf(&b, "metadata: %s\n", hit.Row.Metadata)
	}
	return strings.TrimSpace(b.String())
}

func strDeref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
