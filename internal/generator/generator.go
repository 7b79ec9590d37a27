// Package generator maintains the generated LaTeX source for one resume
// session. It is an explicit two-state machine: Uninitialized until the first
// successful full generation, Initialized afterwards. Section-scope requests
// regenerate a single section block and splice it into the combined source;
// any incremental failure falls back to a full generation.
package generator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/AmyLu0828/the-resume-hub/internal/metrics"
	"github.com/AmyLu0828/the-resume-hub/internal/resume"
	"github.com/AmyLu0828/the-resume-hub/internal/template"
)

// State of the generator.
type State int

const (
	StateUninitialized State = iota
	StateInitialized
)

func (s State) String() string {
	if s == StateInitialized {
		return "initialized"
	}
	return "uninitialized"
}

// sectionOrder fixes the order section blocks appear in the combined source,
// regardless of the order they were submitted.
var sectionOrder = []string{
	resume.SectionAboutMe,
	resume.SectionEducation,
	resume.SectionExperience,
	resume.SectionSkills,
	resume.SectionCustomSections,
}

// HeaderData is the payload for a full (header) generation.
type HeaderData struct {
	Name    resume.Name      `json:"name"`
	Contact []resume.Contact `json:"contact"`
}

// SectionRequest is the payload for an incremental section generation.
type SectionRequest struct {
	Section    string `json:"section"`
	ChangeType string `json:"changeType"`
	// Entries is the full current data for the section; nil for an unknown
	// section, which the capability must tolerate.
	Entries any `json:"entries"`
	// Template is the template's sections block, Current the previously
	// rendered block for this section (empty on first render).
	Template string `json:"template"`
	Current  string `json:"current"`
}

// Renderer is the generation capability. Production uses the LLM-backed
// implementation; tests substitute fakes.
type Renderer interface {
	RenderHeader(ctx context.Context, headerTemplate string, data HeaderData) (string, error)
	RenderSection(ctx context.Context, req SectionRequest) (string, error)
}

// GenerationError wraps a failure of the generation capability, tagged with
// the scope that failed.
type GenerationError struct {
	Scope string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s generation failed: %v", e.Scope, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Generator holds the per-session generation state. All entry points
// serialize on an internal mutex; no two generation calls run concurrently
// for the same document.
type Generator struct {
	mu        sync.Mutex
	state     State
	templates *template.Store
	renderer  Renderer
	logger    *slog.Logger

	header   string
	sections map[string]string
	current  string
}

// New builds an uninitialized Generator.
func New(templates *template.Store, renderer Renderer, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		state:     StateUninitialized,
		templates: templates,
		renderer:  renderer,
		logger:    logger,
		sections:  map[string]string{},
	}
}

// State returns the current lifecycle state.
func (g *Generator) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Source returns the current combined source text.
func (g *Generator) Source() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current
}

// Reset clears all generated state, returning to Uninitialized. Called when
// the document becomes empty.
func (g *Generator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = StateUninitialized
	g.header = ""
	g.sections = map[string]string{}
	g.current = ""
}

// Generate services one submit trigger against the current document state and
// returns the updated combined source. fellBack reports that an incremental
// request was recovered by a full generation.
//
// Dispatch rules:
//   - Uninitialized: always run a full generation; a section-scope payload is
//     dropped for this call.
//   - name/contact triggers: full generation (the header owns that data).
//   - anything else: incremental section generation, falling back to full on
//     any failure. Only the fallback's outcome is surfaced.
func (g *Generator) Generate(ctx context.Context, trigger resume.SubmitTrigger, doc resume.ResumeData) (source string, fellBack bool, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if doc.IsEmpty() {
		g.state = StateUninitialized
		g.header = ""
		g.sections = map[string]string{}
		g.current = ""
		return "", false, nil
	}

	parts, err := g.templates.Acquire(ctx)
	if err != nil {
		return "", false, fmt.Errorf("acquire template: %w", err)
	}

	if g.state == StateUninitialized {
		g.logger.Info("generator uninitialized, redirecting to full generation",
			slog.String("requested_section", trigger.Section),
		)
		source, err = g.generateFull(ctx, parts, doc)
		return source, false, err
	}

	switch trigger.Section {
	case "", resume.SectionName, resume.SectionContact:
		source, err = g.generateFull(ctx, parts, doc)
		return source, false, err
	}

	source, err = g.generateSection(ctx, parts, trigger, doc)
	if err == nil {
		return source, false, nil
	}

	// Incremental failure is recoverable: retry once as a full generation and
	// report that outcome instead.
	g.logger.Warn("incremental generation failed, falling back to full",
		slog.String("section", trigger.Section),
		slog.Any("error", err),
	)
	metrics.ObserveGenerationFallback(trigger.Section)
	source, err = g.generateFull(ctx, parts, doc)
	return source, err == nil, err
}

// generateFull renders the header block from name+contact and recombines the
// document. Success transitions the state machine to Initialized. Failure is
// surfaced to the caller.
func (g *Generator) generateFull(ctx context.Context, parts *template.Parts, doc resume.ResumeData) (string, error) {
	header, err := g.renderer.RenderHeader(ctx, parts.Header, HeaderData{
		Name:    doc.Name,
		Contact: doc.Contact,
	})
	if err != nil {
		metrics.ObserveGeneration("full", "error")
		return "", &GenerationError{Scope: "full", Err: err}
	}
	if strings.TrimSpace(header) == "" {
		metrics.ObserveGeneration("full", "error")
		return "", &GenerationError{Scope: "full", Err: fmt.Errorf("capability returned empty header")}
	}

	combined := combine(parts, header, g.combinedSections())
	if !ValidateSource(combined) {
		metrics.ObserveGeneration("full", "error")
		return "", &GenerationError{Scope: "full", Err: fmt.Errorf("generated source failed validation")}
	}

	g.header = header
	g.current = combined
	g.state = StateInitialized
	metrics.ObserveGeneration("full", "ok")
	return g.current, nil
}

// generateSection renders a single section block and splices it in, keeping
// every other block byte-for-byte unchanged.
func (g *Generator) generateSection(ctx context.Context, parts *template.Parts, trigger resume.SubmitTrigger, doc resume.ResumeData) (string, error) {
	rendered, err := g.renderer.RenderSection(ctx, SectionRequest{
		Section:    trigger.Section,
		ChangeType: trigger.ChangeType,
		Entries:    sectionPayload(doc, trigger.Section),
		Template:   parts.Sections,
		Current:    g.sections[trigger.Section],
	})
	if err != nil {
		metrics.ObserveGeneration("section", "error")
		return "", &GenerationError{Scope: "section", Err: err}
	}
	if strings.TrimSpace(rendered) == "" {
		metrics.ObserveGeneration("section", "error")
		return "", &GenerationError{Scope: "section", Err: fmt.Errorf("capability returned empty section")}
	}

	previous, hadPrevious := g.sections[trigger.Section]
	g.sections[trigger.Section] = rendered
	combined := combine(parts, g.header, g.combinedSections())
	if !ValidateSource(combined) {
		if hadPrevious {
			g.sections[trigger.Section] = previous
		} else {
			delete(g.sections, trigger.Section)
		}
		metrics.ObserveGeneration("section", "error")
		return "", &GenerationError{Scope: "section", Err: fmt.Errorf("generated source failed validation")}
	}

	g.current = combined
	metrics.ObserveGeneration("section", "ok")
	return g.current, nil
}

// combinedSections joins the rendered section blocks in canonical order.
func (g *Generator) combinedSections() string {
	blocks := make([]string, 0, len(sectionOrder))
	for _, name := range sectionOrder {
		if block := strings.TrimSpace(g.sections[name]); block != "" {
			blocks = append(blocks, block)
		}
	}
	return strings.Join(blocks, "\n\n")
}

func combine(parts *template.Parts, header, sections string) string {
	return parts.Combined(header, sections)
}

// sectionPayload extracts the data currently stored for a section. An unknown
// section yields nil and generation proceeds with an empty payload.
func sectionPayload(doc resume.ResumeData, section string) any {
	switch section {
	case resume.SectionAboutMe:
		return doc.AboutMe
	case resume.SectionEducation:
		return doc.Education
	case resume.SectionExperience:
		return doc.Experience
	case resume.SectionSkills:
		return doc.Skills
	case resume.SectionCustomSections:
		return doc.CustomSections
	default:
		return nil
	}
}
