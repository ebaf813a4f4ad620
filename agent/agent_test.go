package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/DachengChen/shelfcare/ai"
	"github.com/DachengChen/shelfcare/nl2sql"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAgent(t *testing.T, model ai.Provider, opts Options, deps ToolDeps) *Agent {
	t.Helper()
	if deps.Chain == nil {
		deps.Chain = &fakeChain{answer: "You have 2 products low on stock."}
	}
	if deps.Inventory == nil {
		deps.Inventory = &fakeInventory{}
	}
	if deps.Now == nil {
		deps.Now = fixedNow
	}
	reg, err := NewRegistry(DefaultTools(deps)...)
	require.NoError(t, err)
	return New(model, reg, opts, zerolog.Nop())
}

func states(res *Result) []State {
	out := []State{}
	for _, tr := range res.Transitions {
		out = append(out, tr.To)
	}
	return out
}

func TestRunValidationSkipsModel(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"", MsgEmptyInput},
		{"   \n\t", MsgEmptyInput},
		{"hi", MsgShortInput},
		{" ok ", MsgShortInput},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%q", tc.input), func(t *testing.T) {
			model := &scriptedModel{}
			agent := newTestAgent(t, model, Options{}, ToolDeps{})
			conv := NewConversation()

			res := agent.Run(context.Background(), conv, tc.input)
			assert.Equal(t, tc.want, res.Output)
			assert.Equal(t, StateDone, res.State)
			assert.False(t, res.Error)
			assert.Zero(t, model.calls())
			assert.Empty(t, res.Invocations)
			assert.Equal(t, []State{StateDone}, states(res))
			require.Equal(t, 2, conv.Len())
			assert.Equal(t, Turn{Role: ai.RoleUser, Content: tc.input}, conv.Turns[0])
			assert.Equal(t, Turn{Role: ai.RoleAssistant, Content: tc.want}, conv.Turns[1])
		})
	}
}

func TestRunAddProductScenario(t *testing.T) {
	model := &scriptedModel{replies: []string{
		`{"action": "add_product", "action_input": {"product_name": "Aspirin", "stock_count": 100, "category": "General"}}`,
		"```json\n{\"action\": \"Final Answer\", \"action_input\": \"Aspirin has been added with 100 units.\"}\n```",
	}}
	inv := &fakeInventory{}
	agent := newTestAgent(t, model, Options{}, ToolDeps{Inventory: inv})
	conv := NewConversation()

	res := agent.Run(context.Background(), conv, "Add new medication 'Aspirin' to inventory with stock level 100, category 'General'")

	assert.Equal(t, "Aspirin has been added with 100 units.", res.Output)
	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, 2, res.Iterations)
	assert.Equal(t, []State{StateAwaitingModel, StateToolDispatch, StateAwaitingModel, StateDone}, states(res))

	require.Len(t, inv.added, 1)
	assert.Equal(t, "Aspirin", inv.added[0].ProductName)
	assert.Equal(t, int64(100), inv.added[0].StockCount)
	assert.Equal(t, "General", inv.added[0].Category)

	require.Len(t, res.Invocations, 1)
	call := res.Invocations[0]
	assert.Equal(t, ToolAddProduct, call.Tool)
	assert.Equal(t, 1, call.Step)
	assert.Equal(t, res.RunID, call.RunID)
	assert.Equal(t, "Product added successfully to the database.", call.Output)
	assert.Empty(t, call.Err)

	assert.Equal(t, ai.Message{Role: ai.RoleUser, Content: "Observation: Product added successfully to the database."}, model.lastMessage(1))
	assert.Equal(t, 2, conv.Len())
}

func TestRunSendsSystemPromptHistoryAndQuestion(t *testing.T) {
	model := &scriptedModel{replies: []string{"Final Answer: 12 products."}}
	agent := newTestAgent(t, model, Options{}, ToolDeps{})
	conv := NewConversation()
	conv.Append(ai.RoleUser, "What stock is running low?")
	conv.Append(ai.RoleAssistant, "Ibuprofen is low.")

	res := agent.Run(context.Background(), conv, "How many products do I have?")
	require.Equal(t, "12 products.", res.Output)

	req := model.requests[0]
	require.Len(t, req, 4)
	assert.Equal(t, ai.RoleSystem, req[0].Role)
	for _, name := range []string{ToolQueryDatabase, ToolDatabaseOverview, ToolAddProduct, ToolCurrentDate, ToolAskHuman} {
		assert.Contains(t, req[0].Content, name+": ")
	}
	assert.Contains(t, req[0].Content, `"action_input"`)
	assert.Equal(t, "What stock is running low?", req[1].Content)
	assert.Equal(t, "Ibuprofen is low.", req[2].Content)
	assert.Equal(t, ai.Message{Role: ai.RoleUser, Content: "How many products do I have?"}, req[3])
	assert.Equal(t, 4, conv.Len())
}

func TestRunGarbageStopsAtStallLimit(t *testing.T) {
	model := &scriptedModel{replies: []string{"I am not sure what to do here."}}
	agent := newTestAgent(t, model, Options{EarlyStopping: EarlyStopForce}, ToolDeps{})

	res := agent.Run(context.Background(), NewConversation(), "What stock is running low?")

	assert.Equal(t, DefaultStallLimit, model.calls())
	assert.Equal(t, MsgForcedStop, res.Output)
	assert.Equal(t, StateDone, res.State)
	assert.True(t, res.StoppedEarly)
	assert.False(t, res.Error)
	assert.True(t, strings.HasPrefix(model.lastMessage(1).Content, "Observation: Invalid or incomplete response: "))
}

func TestRunGenerateMakesOneClosingCall(t *testing.T) {
	model := &funcModel{reply: func(n int) string {
		if n <= DefaultStallLimit {
			return "hmm"
		}
		return "Final Answer: Nothing is low on stock."
	}}
	agent := newTestAgent(t, model, Options{}, ToolDeps{})

	res := agent.Run(context.Background(), NewConversation(), "What stock is running low?")

	assert.Equal(t, DefaultStallLimit+1, model.n)
	assert.Equal(t, "Nothing is low on stock.", res.Output)
	assert.True(t, res.StoppedEarly)
	assert.Equal(t, StateDone, res.State)
}

func TestRunIterationCapBoundsModelCalls(t *testing.T) {
	// Every reply asks the chain something new: no stall, no answer.
	model := &funcModel{reply: func(n int) string {
		return fmt.Sprintf(`{"action": "query_database", "action_input": {"question": "low stock page %d"}}`, n)
	}}
	chain := &fakeChain{answer: "Ibuprofen (4) is low on stock."}
	agent := newTestAgent(t, model, Options{}, ToolDeps{Chain: chain})

	res := agent.Run(context.Background(), NewConversation(), "What stock is running low?")

	assert.Equal(t, DefaultMaxIterations, model.n)
	assert.Equal(t, DefaultMaxIterations, res.Iterations)
	assert.Len(t, chain.asked, DefaultMaxIterations-1)
	assert.True(t, res.StoppedEarly)
	assert.Equal(t, StateDone, res.State)
	// The closing reply is another tool call, so the last tool output
	// stands in for the answer.
	assert.Equal(t, "Ibuprofen (4) is low on stock.", res.Output)
	assert.NotContains(t, res.Output, `"action"`)
}

func TestRunClosingToolCallWithoutObservations(t *testing.T) {
	for name, closing := range map[string]string{
		"parsed":    `{"action": "tool_x", "action_input": {}}`,
		"truncated": "```json\n{\"action\": \"query_database\", \"action_input\": {\"question\"",
	} {
		t.Run(name, func(t *testing.T) {
			model := &funcModel{reply: func(n int) string {
				if n <= DefaultStallLimit {
					return "hmm"
				}
				return closing
			}}
			agent := newTestAgent(t, model, Options{}, ToolDeps{})

			res := agent.Run(context.Background(), NewConversation(), "What stock is running low?")
			assert.Equal(t, DefaultStallLimit+1, model.n)
			assert.Equal(t, MsgForcedStop, res.Output)
			assert.True(t, res.StoppedEarly)
		})
	}
}

func TestRunSingleIterationGenerate(t *testing.T) {
	model := &scriptedModel{replies: []string{`{"action": "current_date", "action_input": {}}`}}
	agent := newTestAgent(t, model, Options{MaxIterations: 1}, ToolDeps{})

	res := agent.Run(context.Background(), NewConversation(), "What is the date?")

	assert.Equal(t, 1, model.calls())
	assert.Equal(t, 1, res.Iterations)
	assert.True(t, res.StoppedEarly)
	assert.Equal(t, "2026-03-10", res.Output)
}

func TestRunUnknownToolsStall(t *testing.T) {
	model := &funcModel{reply: func(n int) string {
		return fmt.Sprintf(`{"action": "tool_%d", "action_input": {}}`, n)
	}}
	runLog := &recordingRunLog{}
	agent := newTestAgent(t, model, Options{EarlyStopping: EarlyStopForce}, ToolDeps{}).WithRunLog(runLog)

	res := agent.Run(context.Background(), NewConversation(), "What stock is running low?")

	assert.Equal(t, DefaultStallLimit, model.n)
	assert.Equal(t, MsgForcedStop, res.Output)
	assert.True(t, res.StoppedEarly)
	require.Len(t, res.Invocations, DefaultStallLimit)
	for i, inv := range res.Invocations {
		assert.Equal(t, fmt.Sprintf("tool_%d", i+1), inv.Tool)
		assert.Equal(t, i+1, inv.Step)
		assert.Equal(t, "unknown tool", inv.Err)
	}
	require.Len(t, runLog.runs, 1)
	assert.Len(t, runLog.runs[0].Invocations, DefaultStallLimit)
}

func TestRunIterationCapWithForce(t *testing.T) {
	model := &funcModel{reply: func(n int) string {
		return fmt.Sprintf(`{"action": "current_date", "action_input": {"n": %d}}`, n)
	}}
	agent := newTestAgent(t, model, Options{MaxIterations: 4, EarlyStopping: EarlyStopForce}, ToolDeps{})

	res := agent.Run(context.Background(), NewConversation(), "What is the date?")

	assert.Equal(t, 4, model.n)
	assert.Len(t, res.Invocations, 4)
	assert.Equal(t, MsgForcedStop, res.Output)
}

func TestRunRepeatedToolCallStalls(t *testing.T) {
	model := &scriptedModel{replies: []string{`{"action": "current_date", "action_input": {}}`}}
	agent := newTestAgent(t, model, Options{EarlyStopping: EarlyStopForce}, ToolDeps{})

	res := agent.Run(context.Background(), NewConversation(), "What is the date today?")

	assert.Equal(t, 1+DefaultStallLimit, model.calls())
	require.Len(t, res.Invocations, 1)
	assert.Equal(t, "2026-03-10", res.Invocations[0].Output)
	assert.Equal(t, MsgForcedStop, res.Output)
	assert.Contains(t, model.lastMessage(2).Content, "You already called current_date")
}

func TestRunRepeatedCallIgnoresKeyOrder(t *testing.T) {
	model := &scriptedModel{replies: []string{
		`{"action": "database_overview", "action_input": {"days": 7}}`,
		`{"action": "database_overview", "action_input": { "days" : 7 }}`,
		`{"action": "Final Answer", "action_input": "done"}`,
	}}
	inv := &fakeInventory{}
	agent := newTestAgent(t, model, Options{}, ToolDeps{Inventory: inv})

	res := agent.Run(context.Background(), NewConversation(), "Give me an overview")
	assert.Equal(t, "done", res.Output)
	assert.Len(t, res.Invocations, 1)
	assert.Equal(t, []int{7}, inv.days)
}

func TestRunUnknownToolObservation(t *testing.T) {
	model := &scriptedModel{replies: []string{
		`{"action": "Text to SQL Tool", "action_input": "low stock"}`,
		`{"action": "Final Answer", "action_input": "ok"}`,
	}}
	agent := newTestAgent(t, model, Options{}, ToolDeps{})

	res := agent.Run(context.Background(), NewConversation(), "What stock is running low?")
	assert.Equal(t, "ok", res.Output)
	require.Len(t, res.Invocations, 1)
	assert.Equal(t, "Text to SQL Tool", res.Invocations[0].Tool)
	assert.Equal(t, "unknown tool", res.Invocations[0].Err)

	obs := model.lastMessage(1).Content
	assert.Contains(t, obs, "Text to SQL Tool is not a valid tool")
	assert.Contains(t, obs, "add_product, ask_human, current_date, database_overview, query_database")
}

func TestRunQueryToolErrorBecomesObservation(t *testing.T) {
	chainErr := &nl2sql.StageError{Stage: nl2sql.StageExecute, Kind: nl2sql.ErrExecution, Err: errors.New(`relation "stock" does not exist`)}
	chain := &fakeChain{err: chainErr}
	model := &scriptedModel{replies: []string{
		`{"action": "query_database", "action_input": {"question": "What stock is running low?"}}`,
		`{"action": "Final Answer", "action_input": "I could not read the stock table."}`,
	}}
	agent := newTestAgent(t, model, Options{}, ToolDeps{Chain: chain})

	res := agent.Run(context.Background(), NewConversation(), "What stock is running low?")

	assert.False(t, res.Error)
	assert.Equal(t, "I could not read the stock table.", res.Output)
	assert.Equal(t, []string{"What stock is running low?"}, chain.asked)
	require.Len(t, res.Invocations, 1)
	assert.NotEmpty(t, res.Invocations[0].Err)
	assert.True(t, strings.HasPrefix(model.lastMessage(1).Content, "Observation: Error executing database query: "))
}

func TestRunProviderFailure(t *testing.T) {
	model := &scriptedModel{err: errors.New("401 Unauthorized: invalid api key sk-secret")}
	agent := newTestAgent(t, model, Options{}, ToolDeps{})
	conv := NewConversation()

	res := agent.Run(context.Background(), conv, "What stock is running low?")

	assert.Equal(t, MsgFailed, res.Output)
	assert.True(t, res.Error)
	assert.Equal(t, TypeInternal, res.ErrorType)
	assert.Equal(t, StateFailed, res.State)
	assert.NotContains(t, res.Output, "sk-secret")
	require.Equal(t, 2, conv.Len())
	assert.Equal(t, MsgFailed, conv.Turns[1].Content)
}

func TestRunProviderTimeout(t *testing.T) {
	model := &scriptedModel{err: fmt.Errorf("openai request: %w", context.DeadlineExceeded)}
	agent := newTestAgent(t, model, Options{}, ToolDeps{})

	res := agent.Run(context.Background(), NewConversation(), "What stock is running low?")
	assert.Equal(t, TypeTimeout, res.ErrorType)
}

func TestRunPanickingToolFails(t *testing.T) {
	boom := Tool{
		Name:        "boom",
		Description: "explodes",
		Invoke: func(context.Context, json.RawMessage) (string, error) {
			panic("nil map")
		},
	}
	reg, err := NewRegistry(boom)
	require.NoError(t, err)
	model := &scriptedModel{replies: []string{`{"action": "boom", "action_input": {}}`}}
	agent := New(model, reg, Options{}, zerolog.Nop())

	res := agent.Run(context.Background(), NewConversation(), "Blow up please")
	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, TypeToolDispatch, res.ErrorType)
	assert.Equal(t, 1, model.calls())
	require.Len(t, res.Invocations, 1)
	assert.Contains(t, res.Invocations[0].Err, "boom panicked")
}

func TestRunCancelledContextFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	slow := Tool{
		Name: "slow",
		Invoke: func(context.Context, json.RawMessage) (string, error) {
			cancel()
			return "late", nil
		},
	}
	reg, err := NewRegistry(slow)
	require.NoError(t, err)
	model := &scriptedModel{replies: []string{`{"action": "slow", "action_input": {}}`}}

	res := New(model, reg, Options{}, zerolog.Nop()).Run(ctx, NewConversation(), "Take your time")
	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, TypeCanceled, res.ErrorType)
}

func TestRunSavesToRunLog(t *testing.T) {
	model := &scriptedModel{replies: []string{
		`{"action": "current_date", "action_input": {}}`,
		`Final Answer: It is 2026-03-10.`,
	}}
	runLog := &recordingRunLog{}
	agent := newTestAgent(t, model, Options{}, ToolDeps{}).WithRunLog(runLog)

	res := agent.Run(context.Background(), NewConversation(), "What is the date?")

	require.Len(t, runLog.runs, 1)
	rec := runLog.runs[0]
	assert.Equal(t, res.RunID, rec.ID)
	assert.Equal(t, "What is the date?", rec.Question)
	assert.Equal(t, "It is 2026-03-10.", rec.Output)
	assert.Equal(t, StateDone, rec.State)
	assert.Equal(t, 2, rec.Iterations)
	assert.Len(t, rec.Invocations, 1)
}

func TestParseEarlyStopping(t *testing.T) {
	m, err := ParseEarlyStopping("")
	require.NoError(t, err)
	assert.Equal(t, EarlyStopGenerate, m)

	m, err = ParseEarlyStopping(" Force ")
	require.NoError(t, err)
	assert.Equal(t, EarlyStopForce, m)

	_, err = ParseEarlyStopping("panic")
	assert.Error(t, err)
}
