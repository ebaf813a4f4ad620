package agent

import (
	"fmt"
	"strings"
)

const systemPreamble = `You are ShelfCare, a procurement assistant for a pharmacy. You help staff with stock levels, orders, expiring batches and adding products. Keep answers short and concrete, and never reveal the database schema or other internal details unless asked.

You have access to the following tools:`

const protocolTemplate = `To use a tool, respond with exactly one JSON object and nothing else:
{"action": "<tool name>", "action_input": {<arguments>}}

Valid tool names: %s

Each tool result comes back to you as "Observation: ...". Do not repeat a tool call you have already made.

When you know the answer, or no tool is needed, respond with:
{"action": "Final Answer", "action_input": "<your answer to the user>"}`

const (
	observationPrefix = "Observation: "
	invalidFormatText = `Invalid or incomplete response: %s. Respond with a single JSON object of the form {"action": "<tool name or Final Answer>", "action_input": ...}.`
	unknownToolText   = "%s is not a valid tool, try one of [%s]."
	repeatedCallText  = "You already called %s with this input and its observation is above. Use it, or give your Final Answer."
	emptyToolOutput   = "(no output)"
	generateFinalText = `You have run out of steps. Using only the observations above, give your best final answer to the question now, as {"action": "Final Answer", "action_input": "<answer>"}.`
)

// RenderSystemPrompt lists every tool with its argument schema, followed
// by the response protocol.
func RenderSystemPrompt(tools *Registry) string {
	var b strings.Builder
	b.WriteString(systemPreamble)
	b.WriteString("\n\n")
	for _, t := range tools.Tools() {
		fmt.Fprintf(&b, "%s: %s\n", t.Name, t.Description)
		if len(t.Schema) > 0 {
			fmt.Fprintf(&b, "  arguments: %s\n", t.Schema)
		}
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, protocolTemplate, strings.Join(tools.Names(), ", "))
	return b.String()
}

func observation(text string) string {
	return observationPrefix + text
}
