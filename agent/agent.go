package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/DachengChen/shelfcare/ai"
	"github.com/DachengChen/shelfcare/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EarlyStopping selects what happens when the loop gives up.
type EarlyStopping string

const (
	// EarlyStopGenerate makes one last tool-less call for a best answer.
	EarlyStopGenerate EarlyStopping = "generate"
	// EarlyStopForce returns MsgForcedStop.
	EarlyStopForce EarlyStopping = "force"
)

// ParseEarlyStopping validates a configured method. Empty means generate.
func ParseEarlyStopping(s string) (EarlyStopping, error) {
	switch EarlyStopping(strings.ToLower(strings.TrimSpace(s))) {
	case "", EarlyStopGenerate:
		return EarlyStopGenerate, nil
	case EarlyStopForce:
		return EarlyStopForce, nil
	}
	return "", fmt.Errorf("early stopping method %q: want generate or force", s)
}

const (
	DefaultMaxIterations = 20
	DefaultStallLimit    = 3
	minInputLen          = 3
)

// Fixed replies.
const (
	MsgEmptyInput = "Please provide a valid input."
	MsgShortInput = "Could you please provide more details about what you'd like to know?"
	MsgFailed     = "I'm having trouble processing that request. Could you please rephrase it?"
	MsgForcedStop = "Agent stopped due to iteration limit or time limit."
)

// Options bounds a run.
type Options struct {
	// MaxIterations caps model round-trips, including the closing call
	// made by EarlyStopGenerate.
	MaxIterations int
	// StallLimit is the number of consecutive rounds without progress (an
	// unparseable reply, a repeated tool call or an unknown tool) that
	// ends the loop.
	StallLimit    int
	EarlyStopping EarlyStopping
}

// Result is what a run hands back to its caller.
type Result struct {
	RunID        string           `json:"run_id"`
	Output       string           `json:"output"`
	Error        bool             `json:"error,omitempty"`
	ErrorType    string           `json:"error_type,omitempty"`
	State        State            `json:"state"`
	StoppedEarly bool             `json:"stopped_early,omitempty"`
	Iterations   int              `json:"iterations"`
	Transitions  []Transition     `json:"transitions,omitempty"`
	Invocations  []ToolInvocation `json:"invocations,omitempty"`
}

// Agent answers questions by letting the model call tools. It is safe
// for concurrent use on different conversations.
type Agent struct {
	model  ai.Provider
	tools  *Registry
	opts   Options
	logger zerolog.Logger
	runLog RunLog
	now    func() time.Time
	system string
}

// New creates an agent. Zero options take the defaults.
func New(model ai.Provider, tools *Registry, opts Options, logger zerolog.Logger) *Agent {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	if opts.StallLimit <= 0 {
		opts.StallLimit = DefaultStallLimit
	}
	if opts.EarlyStopping == "" {
		opts.EarlyStopping = EarlyStopGenerate
	}
	return &Agent{
		model:  model,
		tools:  tools,
		opts:   opts,
		logger: logger.With().Str("component", "agent").Logger(),
		now:    time.Now,
		system: RenderSystemPrompt(tools),
	}
}

// WithRunLog persists every finished run to l.
func (a *Agent) WithRunLog(l RunLog) *Agent {
	a.runLog = l
	return a
}

// Tools returns the agent's registry.
func (a *Agent) Tools() *Registry { return a.tools }

// Run answers input in the context of conv and appends exactly one user
// and one assistant turn to it. Failures are reported in the Result,
// never as raw error text.
func (a *Agent) Run(ctx context.Context, conv *Conversation, input string) *Result {
	started := a.now()
	r := &run{
		agent: a,
		res:   &Result{RunID: uuid.NewString(), State: StateIdle},
	}
	r.log = a.logger.With().Str("run_id", r.res.RunID).Logger()

	trimmed := strings.TrimSpace(input)
	switch {
	case trimmed == "":
		r.finish(MsgEmptyInput)
	case utf8.RuneCountInString(trimmed) < minInputLen:
		r.finish(MsgShortInput)
	default:
		r.loop(ctx, conv.Messages(), trimmed)
	}

	conv.Append(ai.RoleUser, input)
	conv.Append(ai.RoleAssistant, r.res.Output)

	metrics.ObserveAgentRun(r.res.State.String(), r.res.ErrorType, r.res.Iterations)
	r.log.Info().
		Str("state", r.res.State.String()).
		Int("iterations", r.res.Iterations).
		Int("tool_calls", len(r.res.Invocations)).
		Bool("stopped_early", r.res.StoppedEarly).
		Dur("elapsed", a.now().Sub(started)).
		Msg("agent run finished")
	a.saveRun(ctx, input, started, r.res)
	return r.res
}

func (a *Agent) saveRun(ctx context.Context, question string, started time.Time, res *Result) {
	if a.runLog == nil {
		return
	}
	rec := RunRecord{
		ID:          res.RunID,
		Question:    question,
		Output:      res.Output,
		State:       res.State,
		ErrorType:   res.ErrorType,
		Iterations:  res.Iterations,
		Started:     started,
		Duration:    a.now().Sub(started),
		Invocations: res.Invocations,
	}
	if err := a.runLog.SaveRun(context.WithoutCancel(ctx), rec); err != nil {
		a.logger.Warn().Err(err).Str("run_id", res.RunID).Msg("save run")
	}
}

// run is the state of one Agent.Run call.
type run struct {
	agent *Agent
	res   *Result
	log   zerolog.Logger
	// lastObs is the most recent non-empty output of a successful tool
	// call, the partial answer when the loop gives up.
	lastObs string
}

func (r *run) to(s State) {
	t := Transition{From: r.res.State, To: s, Step: r.res.Iterations, At: r.agent.now()}
	r.res.Transitions = append(r.res.Transitions, t)
	r.res.State = s
	r.log.Debug().Str("from", t.From.String()).Str("to", s.String()).Int("step", t.Step).Msg("transition")
}

func (r *run) finish(output string) {
	r.res.Output = output
	r.to(StateDone)
}

func (r *run) fail(err error) {
	r.res.Output = MsgFailed
	r.res.Error = true
	r.res.ErrorType = Classify(err)
	r.log.Error().Err(err).Str("error_type", r.res.ErrorType).Msg("agent run failed")
	r.to(StateFailed)
}

func (r *run) loop(ctx context.Context, history []ai.Message, question string) {
	a := r.agent
	base := make([]ai.Message, 0, len(history)+2)
	base = append(base, ai.Message{Role: ai.RoleSystem, Content: a.system})
	base = append(base, history...)
	base = append(base, ai.Message{Role: ai.RoleUser, Content: question})

	var scratch []ai.Message
	seen := map[string]bool{}
	stalls := 0

	// Generate keeps one call of the cap for the closing answer.
	budget := a.opts.MaxIterations
	if a.opts.EarlyStopping == EarlyStopGenerate && budget > 1 {
		budget--
	}

	for r.res.Iterations < budget {
		r.to(StateAwaitingModel)
		reply, err := r.chat(ctx, base, scratch)
		if err != nil {
			r.fail(err)
			return
		}

		action, err := Parse(reply)
		if err != nil {
			stalls++
			r.log.Warn().Err(err).Int("stalls", stalls).Msg("unparseable reply")
			scratch = appendStep(scratch, reply, fmt.Sprintf(invalidFormatText, err))
			if stalls >= a.opts.StallLimit {
				r.stopEarly(ctx, base, scratch)
				return
			}
			continue
		}
		if action.Final {
			r.finish(action.Answer)
			return
		}

		key := action.Tool + "\x00" + canonicalJSON(action.Input)
		if seen[key] {
			stalls++
			r.log.Warn().Str("tool", action.Tool).Int("stalls", stalls).Msg("repeated tool call")
			scratch = appendStep(scratch, reply, fmt.Sprintf(repeatedCallText, action.Tool))
			if stalls >= a.opts.StallLimit {
				r.stopEarly(ctx, base, scratch)
				return
			}
			continue
		}
		seen[key] = true

		tool, ok := a.tools.Get(action.Tool)
		if !ok {
			stalls++
			scratch = appendStep(scratch, reply, r.unknownTool(action))
			if stalls >= a.opts.StallLimit {
				r.stopEarly(ctx, base, scratch)
				return
			}
			continue
		}
		stalls = 0

		r.to(StateToolDispatch)
		obs, err := r.dispatch(ctx, tool, action.Input)
		if err != nil {
			r.fail(err)
			return
		}
		scratch = appendStep(scratch, reply, obs)
	}
	r.stopEarly(ctx, base, scratch)
}

func appendStep(scratch []ai.Message, reply, obs string) []ai.Message {
	return append(scratch,
		ai.Message{Role: ai.RoleAssistant, Content: reply},
		ai.Message{Role: ai.RoleUser, Content: observation(obs)},
	)
}

func (r *run) chat(ctx context.Context, base, scratch []ai.Message) (string, error) {
	msgs := make([]ai.Message, 0, len(base)+len(scratch))
	msgs = append(msgs, base...)
	msgs = append(msgs, scratch...)
	r.res.Iterations++
	return r.agent.model.Chat(ai.WithOperation(ctx, "agent"), msgs, ai.WithTemperature(0))
}

// stopEarly ends a loop that hit the iteration cap or the stall limit.
func (r *run) stopEarly(ctx context.Context, base, scratch []ai.Message) {
	r.res.StoppedEarly = true
	r.log.Warn().Int("iterations", r.res.Iterations).Str("method", string(r.agent.opts.EarlyStopping)).Msg("stopping early")
	if r.agent.opts.EarlyStopping == EarlyStopForce {
		r.finish(MsgForcedStop)
		return
	}
	if r.res.Iterations >= r.agent.opts.MaxIterations {
		r.finish(r.partialAnswer())
		return
	}

	r.to(StateAwaitingModel)
	final := append(append([]ai.Message(nil), scratch...), ai.Message{Role: ai.RoleUser, Content: generateFinalText})
	reply, err := r.chat(ctx, base, final)
	if err != nil {
		r.fail(err)
		return
	}
	answer := strings.TrimSpace(reply)
	action, err := Parse(reply)
	switch {
	case err == nil && action.Final:
		answer = strings.TrimSpace(action.Answer)
	case err == nil, looksLikeAction(answer):
		// Still a tool call, not an answer.
		r.log.Warn().Str("reply", answer).Msg("closing reply is not an answer")
		answer = ""
	}
	if answer == "" {
		answer = r.partialAnswer()
	}
	r.finish(answer)
}

// partialAnswer is the last tool output, or MsgForcedStop without one.
func (r *run) partialAnswer() string {
	if r.lastObs != "" {
		return r.lastObs
	}
	return MsgForcedStop
}

// looksLikeAction catches action JSON that did not parse, such as a
// truncated blob.
func looksLikeAction(s string) bool {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "```json"))
	s = strings.TrimPrefix(s, "```")
	return strings.HasPrefix(strings.TrimSpace(s), "{") && strings.Contains(s, `"action"`)
}

// unknownTool records a call to a tool that does not exist and returns
// the observation listing the real ones.
func (r *run) unknownTool(action Action) string {
	now := r.agent.now()
	r.res.Invocations = append(r.res.Invocations, ToolInvocation{
		RunID:   r.res.RunID,
		Step:    len(r.res.Invocations) + 1,
		Tool:    action.Tool,
		Input:   string(action.Input),
		Err:     "unknown tool",
		Started: now,
	})
	r.log.Warn().Str("tool", action.Tool).Msg("unknown tool")
	return fmt.Sprintf(unknownToolText, action.Tool, strings.Join(r.agent.tools.Names(), ", "))
}

// dispatch runs one tool call and returns the observation. Tool errors
// become observations; only a panicking tool or a cancelled context
// escapes as an error.
func (r *run) dispatch(ctx context.Context, tool Tool, input json.RawMessage) (string, error) {
	inv := ToolInvocation{
		RunID:   r.res.RunID,
		Step:    len(r.res.Invocations) + 1,
		Tool:    tool.Name,
		Input:   string(input),
		Started: r.agent.now(),
	}
	out, panicked, err := callTool(ctx, tool, input)
	inv.Duration = r.agent.now().Sub(inv.Started)
	inv.Output = out
	if err != nil {
		inv.Err = err.Error()
	}
	r.res.Invocations = append(r.res.Invocations, inv)
	metrics.ObserveToolCall(tool.Name, err)

	level := zerolog.InfoLevel
	if err != nil {
		level = zerolog.WarnLevel
	}
	r.log.WithLevel(level).Err(err).Int("step", inv.Step).Str("tool", inv.Tool).Str("input", inv.Input).
		Str("output", inv.Output).Dur("duration", inv.Duration).Msg("tool invoked")

	if panicked {
		return "", err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	switch {
	case out != "" && err == nil:
		r.lastObs = out
		return out, nil
	case out != "":
		return out, nil
	case err != nil:
		return "Error: " + err.Error(), nil
	default:
		return emptyToolOutput, nil
	}
}

func callTool(ctx context.Context, tool Tool, input json.RawMessage) (out string, panicked bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			out, panicked = "", true
			err = fmt.Errorf("%w: %s panicked: %v", ErrToolDispatch, tool.Name, p)
		}
	}()
	out, err = tool.Invoke(ctx, input)
	return out, false, err
}

// canonicalJSON re-encodes raw so that key order and whitespace do not make
// two identical calls look different.
func canonicalJSON(raw json.RawMessage) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return strings.TrimSpace(string(raw))
	}
	b, err := json.Marshal(v)
	if err != nil {
		return strings.TrimSpace(string(raw))
	}
	return string(b)
}
