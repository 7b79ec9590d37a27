// Package polish sends a single section entry's content to the LLM
// improvement capability and normalizes the reply into one improved-text
// value. It never touches the document; merging is the orchestration layer's
// job.
package polish

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/AmyLu0828/the-resume-hub/internal/llm"
	"github.com/AmyLu0828/the-resume-hub/internal/resume"
)

// Error is the polish failure taxonomy: transport failures, capability
// errors and unrecognized reply envelopes all surface as *Error so callers
// can treat them as one transient notice.
type Error struct {
	Section string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("polish %s: %v", e.Section, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// improvedKeys is the explicit priority order for locating the improved text
// inside a reply envelope.
var improvedKeys = []string{"polishedDescription", "description", "summary", "text"}

// Normalize extracts the improved text from any accepted envelope shape:
// the improved string may sit at the top level or nested under a "content"
// object, under one of polishedDescription/description/summary/text. The
// first non-empty match in priority order wins; no recognized non-empty
// field is an error, never an empty string.
func Normalize(envelope map[string]any) (string, error) {
	if nested, ok := envelope["content"].(map[string]any); ok {
		if text, err := probe(nested); err == nil {
			return text, nil
		}
	}
	return probe(envelope)
}

func probe(m map[string]any) (string, error) {
	for _, key := range improvedKeys {
		if value, ok := m[key].(string); ok && strings.TrimSpace(value) != "" {
			return value, nil
		}
	}
	return "", fmt.Errorf("no recognized improved-text field in reply")
}

const systemPrompt = `You are an expert resume improvement assistant. Improve the given resume
section content: polish descriptions with action-oriented language, fix grammar and style,
keep it concise, and never change IDs, dates, or structural information. Maintain the
original meaning and truthfulness; if the content is already well written, make minimal
changes. Do not hallucinate data and avoid excessive buzzwords.
Return ONLY a JSON object: {"content": {...same keys as the input content, improved text...}}`

// Polisher is the content polishing client.
type Polisher struct {
	client *llm.Client
}

// NewPolisher builds a Polisher on the shared LLM client.
func NewPolisher(client *llm.Client) *Polisher {
	return &Polisher{client: client}
}

// Polish improves one entry's content and returns the normalized improved
// text. Any failure is reported as *Error and the caller must leave the
// document untouched.
func (p *Polisher) Polish(ctx context.Context, section, entryID string, content json.RawMessage) (string, error) {
	request := resume.UpdateMessage{
		Section:    section,
		EntryID:    entryID,
		ChangeType: resume.ChangeUpdate,
		Content:    content,
	}
	payload, err := json.Marshal(request)
	if err != nil {
		return "", &Error{Section: section, Err: fmt.Errorf("marshal polish request: %w", err)}
	}

	prompt := fmt.Sprintf(
		"Improve the following content for a resume %s section:\n%s\nFocus on descriptions and other narrative text. Keep all IDs and dates exactly the same.",
		section, payload,
	)

	raw, err := p.client.CompleteJSON(ctx, systemPrompt, prompt)
	if err != nil {
		return "", &Error{Section: section, Err: err}
	}

	var envelope map[string]any
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		return "", &Error{Section: section, Err: fmt.Errorf("decode polish reply: %w", err)}
	}

	improved, err := Normalize(envelope)
	if err != nil {
		return "", &Error{Section: section, Err: err}
	}

	return improved, nil
}
