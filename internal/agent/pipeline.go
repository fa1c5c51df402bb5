// Package agent runs the document reasoning pipeline. The worker treats it
// as a black box: Run returns the final analysis text or a classified error.
package agent

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/adityakurhade/finsight/pkg/models"
)

// Completer is a single chat-completion backend. Providers implement this;
// the crew sequences prompts over it.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
	Name() string
}

// stage is one step of the sequential crew. Each stage sees the document,
// the client query, and the previous stage's output.
type stage struct {
	name   string
	system string
}

var stages = []stage{
	{
		name: "verification",
		system: "You are a document verifier. Confirm the attached document is a " +
			"financial document and summarize what kind it is. Flag anything that " +
			"looks malformed or unrelated to finance.",
	},
	{
		name: "analysis",
		system: "You are a senior financial analyst. Analyze the document with " +
			"respect to the user's query. Cite concrete figures from the document.",
	},
	{
		name: "investment",
		system: "You are an investment advisor. Based on the prior analysis, give " +
			"measured investment considerations relevant to the query.",
	},
	{
		name: "risk",
		system: "You are a risk assessor. Based on the prior analysis, outline the " +
			"principal risks and their severity.",
	},
}

// maxDocumentBytes bounds how much of the document is inlined into prompts.
const maxDocumentBytes = 100 << 10

// Crew implements models.AgentPipeline as a fixed sequence of completion
// stages over one provider, mirroring a sequential multi-agent run.
type Crew struct {
	completer Completer
	timeout   time.Duration
}

// NewCrew creates a pipeline over the given completion backend. timeout
// bounds each individual stage call, not the whole run.
func NewCrew(completer Completer, timeout time.Duration) *Crew {
	return &Crew{completer: completer, timeout: timeout}
}

func (c *Crew) Name() string { return c.completer.Name() }

// Run executes all stages in order and returns their combined output.
func (c *Crew) Run(ctx context.Context, documentPath, query string) (string, error) {
	raw, err := os.ReadFile(documentPath)
	if err != nil {
		return "", fmt.Errorf("reading document: %w", err)
	}
	document := truncateString(string(raw), maxDocumentBytes)

	var sections []string
	previous := ""
	for _, st := range stages {
		prompt := buildPrompt(document, query, previous)

		out, err := c.runStage(ctx, st.system, prompt)
		if err != nil {
			return "", fmt.Errorf("%s stage: %w", st.name, err)
		}

		sections = append(sections, fmt.Sprintf("## %s\n\n%s", strings.ToUpper(st.name[:1])+st.name[1:], out))
		previous = out
	}

	return strings.Join(sections, "\n\n"), nil
}

func (c *Crew) runStage(ctx context.Context, system, prompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return c.completer.Complete(ctx, system, prompt)
}

func buildPrompt(document, query, previous string) string {
	var b strings.Builder
	b.WriteString("User query: ")
	b.WriteString(query)
	b.WriteString("\n\nDocument:\n")
	b.WriteString(document)
	if previous != "" {
		b.WriteString("\n\nOutput of the previous stage:\n")
		b.WriteString(previous)
	}
	return b.String()
}

// truncateString truncates s to maxBytes without splitting UTF-8 runes.
func truncateString(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}

var _ models.AgentPipeline = (*Crew)(nil)
