// Package service orchestrates the assistant: entity correction, order
// intent handling, the SQL and retrieval pipelines, and answer synthesis.
package service

import (
	"context"
	"fmt"
	"strings"

	"tyre-assistant/internal/llm"
	"tyre-assistant/internal/models"
	"tyre-assistant/internal/policy"
	"tyre-assistant/internal/util"

	"go.uber.org/zap"
)

// ApologyFallback is returned when answer synthesis itself fails.
const ApologyFallback = "Sorry, I can't assist with that."

// Completer is the completion call the service layer depends on.
type Completer interface {
	Complete(ctx context.Context, req llm.ChatRequest) (string, error)
}

// HistorySource loads a user's recent exchanges, oldest first.
type HistorySource interface {
	History(ctx context.Context, userID int64, n int) ([]models.Exchange, error)
}

// Finalizer produces the user-facing answer from the assembled contexts.
type Finalizer struct {
	chat    Completer
	history HistorySource
}

// NewFinalizer creates an answer finalizer.
func NewFinalizer(chat Completer, history HistorySource) *Finalizer {
	return &Finalizer{chat: chat, history: history}
}

var followUpSignals = []string{
	"what about", "and what", "also show", "more details", "can you also",
	"tell me more", "how about", "compare", "difference between",
}

func isFollowUp(query string) bool {
	q := strings.ToLower(query)
	for _, signal := range followUpSignals {
		if strings.Contains(q, signal) {
			return true
		}
	}
	return false
}

// enhanceQuery prefixes a follow-up question with the immediately
// preceding exchange so the provider can resolve references.
func (f *Finalizer) enhanceQuery(ctx context.Context, session *models.Session, query string) string {
	if !isFollowUp(query) {
		return query
	}
	recent, err := f.history.History(ctx, session.UserID, 1)
	if err != nil || len(recent) == 0 {
		return query
	}
	last := recent[len(recent)-1]
	return fmt.Sprintf(
		"Previous context: %s\nPrevious response: %s\n\nFollow-up question: %s\n\nPlease answer the follow-up considering the previous context.",
		last.UserQuery, last.AIResponse, query)
}

func (f *Finalizer) historyContext(ctx context.Context, session *models.Session, n int) string {
	recent, err := f.history.History(ctx, session.UserID, n)
	if err != nil || len(recent) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Last %d conversations from this user:\n", n)
	for i, ex := range recent {
		fmt.Fprintf(&b, "\nExchange %d:\nUser: %s\nAssistant: %s\n", i+1, ex.UserQuery, ex.AIResponse)
	}
	return b.String()
}

// Finalize synthesizes the answer from both contexts. The SQL context is
// labeled with a much higher trust score; the provider is told to prefer
// it whenever the two disagree. Any failure degrades to a fixed apology.
func (f *Finalizer) Finalize(ctx context.Context, session *models.Session, query, sqlContext, ragContext string) string {
	enhanced := f.enhanceQuery(ctx, session, query)
	history := f.historyContext(ctx, session, 2)

	system := `You are an AI assistant named 'wheely' for the tyre manufacturing company.
Add many emojis response to enhance interactivity.
If user query asks about joke dont respond.
Respond concisely, professionally, and like a helpful human assistant.
Respond without mentioning from which context sql or rag the response is from.
Use Indian currency (₹) when showing prices.
If asked similar products, provide 3 relevant similar products from context present in same category.

IMPORTANT RULES:
- ALWAYS use the SQL and RAG context provided to answer the user's query, even if the query is vague.
- If the query is unclear, try to answer as best as possible using the provided context.
- Only say 'I don't understand' if there is truly no relevant context or the query is completely unanswerable.
- If a user tries to access unauthorized data, respond with the appropriate warning.
- ALWAYS obey role-based access restrictions strictly.
- Always trust content from sections with higher score values.
` + policy.AnswerConstraints(session)

	user := fmt.Sprintf(`%s

<<SQL_CONTEXT - Score:10>>
%s

<<RAG_CONTEXT - Score: 0.5>>
%s

<<USER_QUERY>>
%s`, history, sqlContext, ragContext, enhanced)

	answer, err := f.chat.Complete(ctx, llm.ChatRequest{
		System:      system,
		User:        strings.TrimSpace(user),
		Temperature: 0,
		MaxTokens:   2000,
		Operation:   "final_answer",
	})
	if err != nil {
		util.GetLogger().Warn("Answer synthesis failed", zap.Error(err))
		return ApologyFallback
	}
	return answer
}
