// Package nl2sql turns a pharmacy staff question into SQL, runs it and
// explains the result.
//
// Design decisions:
//   - The pipeline is strictly sequential: select examples, synthesize,
//     gate, execute, rephrase. Only the safety gate may short-circuit it.
//   - Every collaborator (selector, model, schema source, executor) is
//     an interface so the chain can run against fakes.
//   - No stage is retried. A failed statement needs a new question, not
//     the same SQL resubmitted.
package nl2sql

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Example is one few-shot question/SQL pair.
type Example struct {
	Question string `yaml:"input" json:"input"`
	SQL      string `yaml:"query" json:"query"`
}

//go:embed examples.yaml
var defaultCorpusYAML []byte

// Corpus is the ordered, immutable set of examples. Order matters: it
// breaks similarity ties.
type Corpus struct {
	examples []Example
}

// DefaultCorpus returns the built-in examples.
func DefaultCorpus() (*Corpus, error) {
	return ParseCorpus(defaultCorpusYAML)
}

// LoadCorpus reads examples from a YAML file, or the built-in ones when
// path is empty.
func LoadCorpus(path string) (*Corpus, error) {
	if path == "" {
		return DefaultCorpus()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read examples: %w", err)
	}
	return ParseCorpus(data)
}

// ParseCorpus decodes a YAML list of {input, query} entries.
func ParseCorpus(data []byte) (*Corpus, error) {
	var examples []Example
	if err := yaml.Unmarshal(data, &examples); err != nil {
		return nil, fmt.Errorf("parse examples: %w", err)
	}
	for i := range examples {
		examples[i].Question = strings.TrimSpace(examples[i].Question)
		examples[i].SQL = strings.TrimSpace(examples[i].SQL)
		if examples[i].Question == "" || examples[i].SQL == "" {
			return nil, fmt.Errorf("parse examples: entry %d needs both input and query", i)
		}
	}
	return NewCorpus(examples)
}

// NewCorpus copies examples into a corpus. An empty corpus is an error.
func NewCorpus(examples []Example) (*Corpus, error) {
	if len(examples) == 0 {
		return nil, fmt.Errorf("example corpus is empty")
	}
	return &Corpus{examples: append([]Example(nil), examples...)}, nil
}

// Len returns the number of examples.
func (c *Corpus) Len() int { return len(c.examples) }

// Examples returns a copy of the examples in corpus order.
func (c *Corpus) Examples() []Example {
	return append([]Example(nil), c.examples...)
}

// Questions returns the example questions in corpus order.
func (c *Corpus) Questions() []string {
	out := make([]string, len(c.examples))
	for i, ex := range c.examples {
		out[i] = ex.Question
	}
	return out
}
