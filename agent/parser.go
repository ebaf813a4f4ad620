package agent

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// FinalAnswer is the action name that ends a run.
const FinalAnswer = "Final Answer"

const finalAnswerPrefix = "Final Answer:"

// Action is one parsed model decision: either a tool call or the final
// answer.
type Action struct {
	Tool   string
	Input  json.RawMessage
	Answer string
	Final  bool
}

type actionBlob struct {
	Action      string          `json:"action"`
	ActionInput json.RawMessage `json:"action_input"`
}

// Parse reads a model reply. It accepts a JSON blob (bare, fenced or
// embedded in prose) and a plain "Final Answer:" prefix. Anything else
// is a *ParseError.
func Parse(reply string) (Action, error) {
	text := strings.TrimSpace(reply)
	if text == "" {
		return Action{}, &ParseError{Raw: reply, Reason: "empty response"}
	}

	var jsonErr *ParseError
	if blob := extractJSON(text); blob != "" {
		a, err := parseBlob(blob)
		if err == nil {
			return a, nil
		}
		jsonErr = &ParseError{Raw: reply, Reason: err.Error()}
	}

	if idx := strings.Index(text, finalAnswerPrefix); idx >= 0 {
		if answer := strings.TrimSpace(text[idx+len(finalAnswerPrefix):]); answer != "" {
			return Action{Final: true, Answer: answer}, nil
		}
		return Action{}, &ParseError{Raw: reply, Reason: "empty final answer"}
	}
	if jsonErr != nil {
		return Action{}, jsonErr
	}
	return Action{}, &ParseError{Raw: reply, Reason: "no JSON action found"}
}

func parseBlob(blob string) (Action, error) {
	var a actionBlob
	if err := json.Unmarshal([]byte(blob), &a); err != nil {
		return Action{}, fmt.Errorf("malformed JSON: %v", err)
	}
	a.Action = strings.TrimSpace(a.Action)
	if a.Action == "" {
		return Action{}, errors.New(`missing "action"`)
	}
	if strings.EqualFold(a.Action, FinalAnswer) {
		answer := answerText(a.ActionInput)
		if answer == "" {
			return Action{}, errors.New("empty final answer")
		}
		return Action{Final: true, Answer: answer}, nil
	}
	input := bytes.TrimSpace(a.ActionInput)
	if len(input) == 0 || bytes.Equal(input, []byte("null")) {
		input = json.RawMessage("{}")
	}
	return Action{Tool: a.Action, Input: input}, nil
}

// answerText unwraps a final answer given as a JSON string; any other
// JSON value is returned verbatim.
func answerText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(raw))
}

// extractJSON finds the first {...} JSON object in the text,
// handling markdown code fences and surrounding narrative.
func extractJSON(text string) string {
	if idx := strings.Index(text, "```json"); idx >= 0 {
		start := idx + len("```json")
		if end := strings.Index(text[start:], "```"); end >= 0 {
			return strings.TrimSpace(text[start : start+end])
		}
	}
	if idx := strings.Index(text, "```"); idx >= 0 {
		start := idx + len("```")
		if end := strings.Index(text[start:], "```"); end >= 0 {
			candidate := strings.TrimSpace(text[start : start+end])
			if strings.HasPrefix(candidate, "{") {
				return candidate
			}
		}
	}

	// Match braces, skipping over string literals so a "}" inside an
	// answer does not close the object early.
	depth, start := 0, -1
	inString, escaped := false, false
	for i, ch := range text {
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}
