package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"media-pipeline/internal/domain/ports/adapter"
)

var (
	_ adapter.Critic     = (*Critic)(nil)
	_ adapter.Rewriter   = (*Critic)(nil)
	_ adapter.Summarizer = (*Critic)(nil)
)

const criticSystem = `You review generated MoviePy assembly scripts before they are run.
You are strict about correctness and loose about style.`

const critiqueTemplate = `Review this script. It must:
- be valid Python 3 using moviepy
- load every listed asset and respect the scene order
- attach the audio track and write exactly one output file
- not read from stdin or the network

Answer with JSON {"verdict": "PASS" | "FAIL", "reason": string}. The reason
says what to fix when the verdict is FAIL.

Script:
%s`

const rewriteTemplate = `Rewrite the script to fix this problem: %s

Return only the full corrected Python code.

Script:
%s`

const summarizeTemplate = `This script went through several rounds of fixes and took too long to
converge. Produce a shorter, cleaner version with the same behavior. Remove
dead code and duplicated helpers. Return only the Python code.

Script:
%s`

// Critic plays all three roles of the critique loop with one model.
type Critic struct {
	c *Client
}

func NewCritic(c *Client) *Critic { return &Critic{c: c} }

func (k *Critic) Critique(ctx context.Context, artifact string) (adapter.Critique, error) {
	out, err := k.c.Complete(ctx, criticSystem, fmt.Sprintf(critiqueTemplate, artifact), adapter.ChatOptions{Temperature: 0.1, JSON: true})
	if err != nil {
		return adapter.Critique{}, err
	}
	return parseCritique(out), nil
}

func (k *Critic) Rewrite(ctx context.Context, artifact, reason string) (string, error) {
	return k.c.Complete(ctx, criticSystem, fmt.Sprintf(rewriteTemplate, reason, artifact), adapter.ChatOptions{Temperature: 0.2})
}

func (k *Critic) Summarize(ctx context.Context, artifact string) (string, error) {
	return k.c.Complete(ctx, criticSystem, fmt.Sprintf(summarizeTemplate, artifact), adapter.ChatOptions{Temperature: 0.2})
}

// parseCritique reads the verdict JSON. Anything that is not a clear PASS
// counts as FAIL, with the raw text as the reason.
func parseCritique(out string) adapter.Critique {
	var v struct {
		Verdict string `json:"verdict"`
		Reason  string `json:"reason"`
	}
	if body, err := extractJSON(out); err == nil && json.Unmarshal([]byte(body), &v) == nil {
		if strings.EqualFold(strings.TrimSpace(v.Verdict), string(adapter.VerdictPass)) {
			return adapter.Critique{Verdict: adapter.VerdictPass, Reason: v.Reason}
		}
		if v.Reason != "" {
			return adapter.Critique{Verdict: adapter.VerdictFail, Reason: v.Reason}
		}
	}
	if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(out)), "PASS") {
		return adapter.Critique{Verdict: adapter.VerdictPass}
	}
	return adapter.Critique{Verdict: adapter.VerdictFail, Reason: strings.TrimSpace(out)}
}
