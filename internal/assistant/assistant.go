// Package assistant turns natural-language questions about the ingested
// financials into safe warehouse queries. The model only ever proposes an
// intent; execution always goes through the query mediator, so the guard and
// the row cap apply to model-written SQL exactly as to human-written SQL.
package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/avelkov/finfacts/internal/mediator"
	"google.golang.org/genai"
)

const (
	// DefaultModelName is the default Gemini model used for query planning.
	DefaultModelName = "gemini-2.5-flash"
)

// intent is the strict JSON shape the model must answer with.
type intent struct {
	SQL         string `json:"sql,omitempty"`
	AccountTerm string `json:"account_term,omitempty"`
}

type Assistant struct {
	mediator *mediator.Mediator
	model    string
}

func New(m *mediator.Mediator) *Assistant {
	model := os.Getenv("GENAI_MODEL")
	if model == "" {
		model = DefaultModelName
	}
	return &Assistant{mediator: m, model: model}
}

// Answer plans a query for the question, executes it through the mediator,
// and phrases the result. The raw result table is returned alongside the
// prose so callers can show both.
func (a *Assistant) Answer(ctx context.Context, question string) (answer, table string, err error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return "", "", fmt.Errorf("Answer: create genai client: %w", err)
	}

	schema, err := a.mediator.Handle(ctx, mediator.Request{FetchSchema: true})
	if err != nil {
		return "", "", fmt.Errorf("Answer: fetching schema: %w", err)
	}

	in, err := a.plan(ctx, client, question, schema.Rendered)
	if err != nil {
		return "", "", err
	}

	var req mediator.Request
	switch {
	case in.SQL != "":
		req = mediator.Request{SQL: in.SQL}
	case in.AccountTerm != "":
		req = mediator.Request{AccountTerm: in.AccountTerm}
	default:
		return "", "", fmt.Errorf("Answer: model produced no usable intent")
	}

	resp, err := a.mediator.Handle(ctx, req)
	if err != nil {
		return "", "", fmt.Errorf("Answer: executing intent: %w", err)
	}

	table = resp.Rendered
	if table == "" && len(resp.Matches) > 0 {
		var names []string
		for _, m := range resp.Matches {
			names = append(names, fmt.Sprintf("%s (%.2f)", m.Name, m.Score))
		}
		table = strings.Join(names, "\n")
	}

	answer, err = a.phrase(ctx, client, question, table)
	if err != nil {
		return "", "", err
	}
	return answer, table, nil
}

func (a *Assistant) plan(ctx context.Context, client *genai.Client, question, schemaText string) (*intent, error) {
	prompt := "You write BigQuery SQL over a financial facts table.\n\n" +
		"Schema:\n" + schemaText + "\n" +
		"Only facts in committed batches are visible; the table already filters them.\n\n" +
		"Task: answer the user's question with ONE of:\n" +
		"- {\"sql\": \"<single SELECT statement>\"}\n" +
		"- {\"account_term\": \"<free-text account name to look up>\"}\n\n" +
		"Rules:\n" +
		"- SELECT only. Never modify data.\n" +
		"- Output STRICT JSON, no code fences, no commentary.\n\n" +
		"Question: " + question

	resp, err := client.Models.GenerateContent(ctx, a.model, genai.Text(prompt), nil)
	if err != nil {
		return nil, fmt.Errorf("plan: generate content: %w", err)
	}

	raw := resp.Text()
	if raw == "" {
		return nil, fmt.Errorf("plan: empty response from model")
	}

	var in intent
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &in); err != nil {
		return nil, fmt.Errorf("plan: unmarshal JSON: %w\nraw response: %s", err, raw)
	}
	return &in, nil
}

func (a *Assistant) phrase(ctx context.Context, client *genai.Client, question, table string) (string, error) {
	prompt := "Answer the question using only the query result below. " +
		"Be concise and state amounts plainly.\n\n" +
		"Question: " + question + "\n\nResult:\n" + table

	resp, err := client.Models.GenerateContent(ctx, a.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("phrase: generate content: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("phrase: empty response from model")
	}
	return strings.TrimSpace(text), nil
}

func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	// Extra safety: keep only from the first '{' to the last '}' if the
	// model wrapped the object in prose.
	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
