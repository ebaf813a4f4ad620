package nl2sql

import (
	"context"
	"strings"

	"github.com/DachengChen/shelfcare/ai"
)

// Rephraser turns a raw result into a short answer to the question.
type Rephraser struct {
	model ai.Provider
}

// NewRephraser creates a Rephraser.
func NewRephraser(model ai.Provider) *Rephraser {
	return &Rephraser{model: model}
}

// Rephrase makes one model call with the question, the SQL and its result.
func (r *Rephraser) Rephrase(ctx context.Context, question, sql, result string) (string, error) {
	prompt := RenderRephrasePrompt(question, sql, result)
	answer, err := r.model.Chat(ai.WithOperation(ctx, "rephrase"),
		[]ai.Message{{Role: ai.RoleUser, Content: prompt}},
		ai.WithTemperature(0))
	if err != nil {
		return "", stageErr(StageRephrase, ErrRephrase, err)
	}
	return strings.TrimSpace(answer), nil
}
