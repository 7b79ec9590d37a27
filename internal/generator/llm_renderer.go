package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/AmyLu0828/the-resume-hub/internal/llm"
)

const headerSystemPrompt = `You are a LaTeX header rendering agent. You are given the exact header block
from a resume template, which contains example name and contact values, and the user's data.
Replace the example values with the user's data while preserving ALL formatting and LaTeX
commands. Keep the structure (minipages, tikz, href formats) identical. Do not invent new
commands; only replace textual values (name, phone, email, links). Handle missing data
gracefully: skip a contact line rather than inventing one.
Return ONLY a JSON object: {"latex": "<rendered header block>"}`

const sectionSystemPrompt = `You are a LaTeX CV section rendering agent. You are given the template's section
block (showing the commands and patterns to use), the section name, the change type, the
section's full current data, and the previously rendered block for that section (possibly
empty). Render the complete updated block for this section only, following the template's
command patterns exactly. Generate only valid LaTeX, no placeholders and no commentary.
Handle empty or missing data gracefully.
Return ONLY a JSON object: {"latex": "<rendered section block>"}`

// LLMRenderer implements Renderer on top of the chat completion client.
type LLMRenderer struct {
	client *llm.Client
}

// NewLLMRenderer wraps an llm.Client as the generation capability.
func NewLLMRenderer(client *llm.Client) *LLMRenderer {
	return &LLMRenderer{client: client}
}

type renderResult struct {
	Latex string `json:"latex"`
}

// RenderHeader renders the template's header block with the user's name and
// contact data.
func (r *LLMRenderer) RenderHeader(ctx context.Context, headerTemplate string, data HeaderData) (string, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal header data: %w", err)
	}

	prompt := fmt.Sprintf(
		"Here is the header template block:\n```\n%s\n```\nAnd here is the user data:\n```\n%s\n```\nRender the header block using the provided user data.",
		headerTemplate, payload,
	)

	return r.render(ctx, headerSystemPrompt, prompt)
}

// RenderSection renders one section's block from its current data.
func (r *LLMRenderer) RenderSection(ctx context.Context, req SectionRequest) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal section request: %w", err)
	}

	return r.render(ctx, sectionSystemPrompt, string(payload))
}

func (r *LLMRenderer) render(ctx context.Context, system, user string) (string, error) {
	raw, err := r.client.CompleteJSON(ctx, system, user)
	if err != nil {
		return "", err
	}

	var result renderResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return "", fmt.Errorf("decode render result: %w", err)
	}
	if strings.TrimSpace(result.Latex) == "" {
		return "", fmt.Errorf("render result missing latex field")
	}

	return result.Latex, nil
}
