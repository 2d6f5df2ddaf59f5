// Package llm implements the answering collaborator: grounded question
// answering over retrieved chunks, whole-document summarization, and
// risk-clause analysis. It drives an Eino chat model so any configured
// backend (Gemini, OpenAI, Ollama, ...) can serve the three operations.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/clauselens/clauselens-go/internal/budget"
	"github.com/clauselens/clauselens-go/internal/logging"
)

// qaSystemPrompt establishes the grounded-answering contract: answers come
// only from the provided context, unanswerable questions get a fixed
// phrase, and the output is a JSON object with one answer per question.
const qaSystemPrompt = `You are an expert AI legal assistant specializing in document analysis. Your goal is to provide precise, factual answers based strictly on the text provided.

## Primary Task
Answer a list of questions based exclusively on the document excerpts provided in the CONTEXT section. Synthesize information across the text chunks as needed to form a complete answer.

## Critical Rules
1. Strictly Grounded: your entire answer MUST be derived from the provided CONTEXT. Do not use any external knowledge.
2. Handling Unanswerable Questions: if the answer to a question cannot be found in the CONTEXT, respond with the exact phrase: "The provided text does not contain enough information to answer this question."
3. Be Concise: provide direct answers without introductory phrases.
4. Match Question Count: provide one answer for every question asked, in the same order.

## Output Format
Respond with a single valid JSON object and nothing else:
{"answers": ["Answer to question 1.", "Answer to question 2."]}`

// summaryPrompt wraps a full document for single-call summarization.
const summaryPrompt = `You are an expert legal analyst. Provide a clear and effective summary of the following legal document.

Instructions:
1. Begin with a concise introductory paragraph explaining the document's overall purpose and identifying the key parties involved.
2. Follow with a bulleted list of the most critical points, obligations, and clauses the reader should be aware of.
3. Use simple language a non-lawyer can understand.

Document text to summarize:
---
%s
---`

// riskPrompt asks for a single-call scan of the document against a fixed
// checklist of risk categories, returning structured JSON.
const riskPrompt = `You are an expert legal document analyst. Analyze the provided document text and identify any clauses that fall into the risk categories listed below.

Instructions:
1. For each category, determine whether a relevant clause exists in the text.
2. Respond with a JSON object with a single key "risks" holding a list of objects, each with keys "risk_category", "explanation", and "quote".
3. If no risks from the categories are found, return {"risks": []}.
4. Respond with the JSON object only.

Risk categories to scan for:
- Automatic Renewal: auto-renewal or automatic continuation of services or contracts.
- High Penalties or Unclear Fees: specific penalties, late fees, termination fees, or vague "administrative fees".
- Waiver of Rights / Arbitration: waiving the right to sue or join a class action, or mandatory arbitration.
- One-Sided Indemnification: hold-harmless clauses that unfairly favor one party.
- Exclusions & Limitations of Liability: clauses limiting the provider's responsibility.
- Unfavorable Payment Terms: variable interest rates, prepayment penalties, or acceleration clauses.
- Ambiguous or Vague Language: subjective terms like "at our sole discretion" or "subject to change without notice".
- Restrictions on Use or Access: significant restrictions on how a property, service, or product can be used.
- Data Privacy & Sharing: collecting, using, or sharing personal data with third parties.

--- DOCUMENT TEXT ---
%s`

// unanswerablePlaceholder pads the answer list when the model produces
// fewer answers than questions.
const unanswerablePlaceholder = "Unable to find relevant information in the provided context."

// generateTimeout bounds a single chat completion so a stalled backend
// cannot hold a request open until the server write timeout.
const generateTimeout = 3 * time.Minute

// ErrDocumentTooLarge is returned by Summarize when the document exceeds the
// summarizer's size budget. Callers treat it as a client error.
var ErrDocumentTooLarge = errors.New("llm: document is too large for the summarizer")

// Risk is one identified risk clause.
type Risk struct {
	// RiskCategory names the checklist category the clause falls into.
	RiskCategory string `json:"risk_category"`
	// Explanation describes the risk in plain language.
	Explanation string `json:"explanation"`
	// Quote is the verbatim clause text that triggered the finding.
	Quote string `json:"quote"`
}

// chatModel is the narrow slice of the Eino model interface the processor
// needs. model.ToolCallingChatModel satisfies it; tests inject a fake.
type chatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// Processor performs the three LLM-backed document operations.
type Processor struct {
	// model is the chat model all operations run against.
	model chatModel
}

// New constructs a Processor around the given chat model.
func New(m model.ToolCallingChatModel) (*Processor, error) {
	if m == nil {
		return nil, fmt.Errorf("llm: chat model must not be nil")
	}
	return &Processor{model: m}, nil
}

// generate runs a single chat completion under the generation timeout.
func (p *Processor) generate(ctx context.Context, msgs []*schema.Message) (*schema.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()
	return p.model.Generate(ctx, msgs) //nolint:wrapcheck // callers wrap per operation
}

// GenerateAnswers answers each question from the provided context chunks.
// The returned slice always has exactly len(questions) entries: the model
// output is padded with a placeholder or truncated as needed. A model or
// parse failure degrades to per-question error messages rather than an
// empty batch, so the caller can always satisfy the one-answer-per-question
// contract.
func (p *Processor) GenerateAnswers(ctx context.Context, questions, chunks []string) ([]string, error) {
	log := logging.FromContext(ctx)

	var numbered strings.Builder
	for i, q := range questions {
		fmt.Fprintf(&numbered, "%d. %s\n", i+1, q)
	}

	user := fmt.Sprintf("CONTEXT CHUNKS:\n%s\n\nQUESTIONS TO ANSWER:\n%s\nAnswer each question based only on the provided context chunks.",
		formatContext(chunks), numbered.String())

	log.Info("generating answers",
		slog.Int("questions", len(questions)),
		slog.Int("context_chunks", len(chunks)),
		slog.Int("context_tokens_est", budget.Estimate(user)),
	)

	resp, err := p.generate(ctx, []*schema.Message{
		schema.SystemMessage(qaSystemPrompt),
		schema.UserMessage(user),
	})
	if err != nil {
		log.Error("answer generation failed", slog.Any("error", err))
		answers := make([]string, len(questions))
		for i := range answers {
			answers[i] = fmt.Sprintf("Error: %v", err)
		}
		return answers, nil
	}

	return parseAnswers(resp.Content, len(questions)), nil
}

// Summarize produces a single-call summary of the full document text.
// Documents past the summarizer's size budget are rejected with a
// descriptive message instead of being silently truncated.
func (p *Processor) Summarize(ctx context.Context, text string) (string, error) {
	if len(text) > budget.MaxSummaryChars {
		logging.FromContext(ctx).Warn("document exceeds summarizer limit",
			slog.Int("chars", len(text)),
		)
		return "", fmt.Errorf("%w (%d chars, limit %d)",
			ErrDocumentTooLarge, len(text), budget.MaxSummaryChars)
	}

	resp, err := p.generate(ctx, []*schema.Message{
		schema.UserMessage(fmt.Sprintf(summaryPrompt, text)),
	})
	if err != nil {
		return "", fmt.Errorf("llm: summarization failed: %w", err)
	}

	return strings.TrimSpace(resp.Content), nil
}

// AnalyzeRisks scans the document against the risk checklist in a single
// call. Only the first part of very large documents is scanned, bounded by
// the risk-analysis character budget. A malformed model response yields an
// empty finding list, not an error; a missing scan result is presented to
// the user as "no risks found".
func (p *Processor) AnalyzeRisks(ctx context.Context, text string) ([]Risk, error) {
	log := logging.FromContext(ctx)
	clamped := budget.Clamp(text, budget.MaxRiskAnalysisChars)

	resp, err := p.generate(ctx, []*schema.Message{
		schema.UserMessage(fmt.Sprintf(riskPrompt, clamped)),
	})
	if err != nil {
		return nil, fmt.Errorf("llm: risk analysis failed: %w", err)
	}

	risks, err := parseRisks(resp.Content)
	if err != nil {
		log.Warn("risk analysis response unparseable, returning no findings",
			slog.Any("error", err),
		)
		return []Risk{}, nil
	}

	log.Info("risk analysis complete", slog.Int("findings", len(risks)))
	return risks, nil
}

// formatContext numbers each chunk so the model can reference them.
func formatContext(chunks []string) string {
	var b strings.Builder
	for i, c := range chunks {
		fmt.Fprintf(&b, "[Chunk %d]\n%s\n\n", i+1, strings.TrimSpace(c))
	}
	return b.String()
}
