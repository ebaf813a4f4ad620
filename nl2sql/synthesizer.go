package nl2sql

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/DachengChen/shelfcare/ai"
)

// Synthesizer asks the model for one SQL statement.
type Synthesizer struct {
	model ai.Provider
	topK  int
}

// NewSynthesizer creates a Synthesizer limiting results to topK rows.
func NewSynthesizer(model ai.Provider, topK int) *Synthesizer {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Synthesizer{model: model, topK: topK}
}

// Synthesize renders the prompt, makes one temperature-0 call and
// returns the cleaned single-line statement.
func (s *Synthesizer) Synthesize(ctx context.Context, question, schema string, examples []Example) (string, error) {
	prompt := RenderSynthesisPrompt(question, schema, examples, s.topK)
	raw, err := s.model.Chat(ai.WithOperation(ctx, "synthesize"),
		[]ai.Message{{Role: ai.RoleUser, Content: prompt}},
		ai.WithTemperature(0))
	if err != nil {
		return "", stageErr(StageSynthesize, ErrSynthesis, err)
	}

	sql := CleanSQL(raw)
	if sql == "" {
		return "", stageErr(StageSynthesize, ErrSynthesis, errEmptyCompletion)
	}
	return sql, nil
}

var errEmptyCompletion = errors.New("model returned no SQL")

var (
	fenceRe = regexp.MustCompile("```(?:sql|SQL)?")
	labelRe = regexp.MustCompile(`^(?i:sql\s*query\s*:|sql\s*:|sql\b)\s*`)
	spaceRe = regexp.MustCompile(`\s*\n\s*`)
)

// CleanSQL strips code fences, backticks and a leading "SQL"/"SQL:"
// label from a completion and collapses it onto one line.
func CleanSQL(raw string) string {
	s := fenceRe.ReplaceAllString(raw, "")
	s = strings.Trim(strings.TrimSpace(s), "`")
	s = strings.TrimSpace(s)
	s = labelRe.ReplaceAllString(s, "")
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
