package nl2sql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DachengChen/shelfcare/ai"
	"github.com/DachengChen/shelfcare/db"
	"github.com/DachengChen/shelfcare/metrics"
	"github.com/rs/zerolog"
)

// Executor runs a gated statement.
type Executor interface {
	Execute(ctx context.Context, sql string) (*db.QueryResult, error)
}

// SchemaSource renders the schema descriptor for the prompt.
type SchemaSource interface {
	SchemaDescriptor(ctx context.Context, tables ...string) (string, error)
}

// Options tunes a Chain.
type Options struct {
	TopK int
	// RephraseFallback returns the raw result, with a notice, when the
	// rephrase call fails instead of failing the run.
	RephraseFallback bool
	ExtraDenylist    []string
	Tables           []string
}

// ChainResult is everything one run produced.
type ChainResult struct {
	Question string
	Examples []Example
	SQL      string
	Result   *db.QueryResult
	Answer   string

	// Rejected is set when the safety gate refused SQL; Answer then holds
	// the refusal and nothing was executed.
	Rejected bool
	Keyword  string
	// Degraded is set when Answer is the raw result because rephrasing failed.
	Degraded bool
}

// Chain runs Select → Synthesize → Gate → Execute → Rephrase.
type Chain struct {
	selector  Selector
	synth     *Synthesizer
	gate      *Gate
	exec      Executor
	schema    SchemaSource
	rephraser *Rephraser
	opts      Options
	logger    zerolog.Logger
}

// NewChain wires a chain. model serves both synthesis and rephrasing.
func NewChain(selector Selector, model ai.Provider, schema SchemaSource, exec Executor, opts Options, logger zerolog.Logger) *Chain {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	return &Chain{
		selector:  selector,
		synth:     NewSynthesizer(model, opts.TopK),
		gate:      NewGate(opts.ExtraDenylist...),
		exec:      exec,
		schema:    schema,
		rephraser: NewRephraser(model),
		opts:      opts,
		logger:    logger.With().Str("component", "chain").Logger(),
	}
}

// RefusalText is the answer returned when the gate rejects a statement.
func RefusalText(keyword string) string {
	return fmt.Sprintf("Action not allowed: the generated query contains a restricted operation (%s).", keyword)
}

const rephraseFallbackNotice = "I couldn't summarise the result, so here is the raw data: "

// Run answers one question. A gate rejection is not an error: the result
// comes back with Rejected set. Any other stage failure is a *StageError.
func (c *Chain) Run(ctx context.Context, question string) (*ChainResult, error) {
	res := &ChainResult{Question: question}
	log := c.logger.With().Str("question", question).Logger()

	err := c.stage(StageSelect, ErrEmbeddingUnavailable, func() error {
		ex, err := c.selector.Select(ctx, question, c.opts.TopK)
		res.Examples = ex
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("stage", string(StageSelect)).Strs("examples", questionsOf(res.Examples)).Msg("stage output")

	var schema string
	err = c.stage(StageSchema, ErrSchemaUnavailable, func() error {
		var err error
		schema, err = c.schema.SchemaDescriptor(ctx, c.opts.Tables...)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Debug().Str("stage", string(StageSchema)).Int("bytes", len(schema)).Msg("stage output")

	err = c.stage(StageSynthesize, ErrSynthesis, func() error {
		var err error
		res.SQL, err = c.synth.Synthesize(ctx, question, schema, res.Examples)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("stage", string(StageSynthesize)).Str("sql", res.SQL).Msg("stage output")

	start := time.Now()
	gateErr := c.gate.Check(res.SQL)
	metrics.ObserveStage(string(StageGate), gateErr, time.Since(start))
	var rejected *SafetyRejectedError
	if errors.As(gateErr, &rejected) {
		metrics.IncrementSafetyRejection(rejected.Keyword)
		log.Warn().Str("stage", string(StageGate)).Str("sql", res.SQL).Str("keyword", rejected.Keyword).Msg("statement rejected")
		res.Rejected = true
		res.Keyword = rejected.Keyword
		res.Answer = RefusalText(rejected.Keyword)
		return res, nil
	}
	log.Debug().Str("stage", string(StageGate)).Str("sql", res.SQL).Msg("stage output")

	err = c.stage(StageExecute, ErrExecution, func() error {
		var err error
		res.Result, err = c.exec.Execute(ctx, res.SQL)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("stage", string(StageExecute)).Str("result", res.Result.Text()).Msg("stage output")

	err = c.stage(StageRephrase, ErrRephrase, func() error {
		var err error
		res.Answer, err = c.rephraser.Rephrase(ctx, question, res.SQL, res.Result.Text())
		if err == nil && res.Answer == "" {
			err = stageErr(StageRephrase, ErrRephrase, errors.New("model returned an empty answer"))
		}
		return err
	})
	if err != nil {
		if !c.opts.RephraseFallback {
			return nil, err
		}
		log.Warn().Err(err).Msg("rephrase failed, returning raw result")
		res.Answer = rephraseFallbackNotice + res.Result.Text()
		res.Degraded = true
		return res, nil
	}
	log.Info().Str("stage", string(StageRephrase)).Str("answer", res.Answer).Msg("stage output")
	return res, nil
}

// stage times fn and makes sure whatever it returns is a *StageError
// tagged with this stage.
func (c *Chain) stage(stage Stage, kind error, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.ObserveStage(string(stage), err, time.Since(start))
	if err == nil {
		return nil
	}

	var se *StageError
	if !errors.As(err, &se) {
		err = stageErr(stage, kind, err)
	}
	c.logger.Error().Err(err).Str("stage", string(stage)).Msg("stage failed")
	return err
}

func questionsOf(examples []Example) []string {
	out := make([]string, len(examples))
	for i, ex := range examples {
		out[i] = ex.Question
	}
	return out
}
