package generator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/AmyLu0828/the-resume-hub/internal/resume"
	"github.com/AmyLu0828/the-resume-hub/internal/template"
)

const testTemplate = `%PART 1
\documentclass{article}
\begin{document}
%PART 2
\textbf{\Huge Charles Rambo}
%PART 3
\section{Education}
\textbf{Degree} | Institution
\end{document}
`

// fakeRenderer deterministically renders blocks and records calls.
type fakeRenderer struct {
	headerCalls  int
	sectionCalls []SectionRequest

	headerErr  error
	sectionErr error
	sectionOut string
}

func (f *fakeRenderer) RenderHeader(_ context.Context, _ string, data HeaderData) (string, error) {
	f.headerCalls++
	if f.headerErr != nil {
		return "", f.headerErr
	}
	return "\\textbf{\\Huge " + data.Name.FirstName + " " + data.Name.LastName + "}", nil
}

func (f *fakeRenderer) RenderSection(_ context.Context, req SectionRequest) (string, error) {
	f.sectionCalls = append(f.sectionCalls, req)
	if f.sectionErr != nil {
		return "", f.sectionErr
	}
	if f.sectionOut != "" {
		return f.sectionOut, nil
	}
	var sb strings.Builder
	sb.WriteString("\\section{" + req.Section + "}\n")
	switch entries := req.Entries.(type) {
	case []resume.Education:
		for _, e := range entries {
			sb.WriteString(e.Degree + " | " + e.Institution + "\n")
		}
	case []resume.Experience:
		for _, e := range entries {
			sb.WriteString(e.Title + " | " + e.Company + "\n")
		}
	}
	return sb.String(), nil
}

func newTestGenerator(t *testing.T, r Renderer) *Generator {
	t.Helper()
	store := template.NewStore("testdata", "default_resume")
	if err := store.SetActive("default_resume", testTemplate); err != nil {
		t.Fatalf("set active template: %v", err)
	}
	return New(store, r, nil)
}

func TestGenerate_SectionBeforeInitRunsFull(t *testing.T) {
	fake := &fakeRenderer{}
	g := newTestGenerator(t, fake)

	doc := resume.ResumeData{
		Name:      resume.Name{FirstName: "Amy", LastName: "Lu"},
		Education: []resume.Education{{ID: "edu_1", Degree: "BSc", Institution: "MIT"}},
	}

	source, fellBack, err := g.Generate(context.Background(), resume.SubmitTrigger{Section: resume.SectionEducation, ChangeType: resume.ChangeAdd}, doc)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if fellBack {
		t.Fatal("a redirected bootstrap is not a fallback")
	}

	if g.State() != StateInitialized {
		t.Fatalf("expected Initialized after first generation, got %v", g.State())
	}
	if fake.headerCalls != 1 {
		t.Fatalf("expected one full (header) generation, got %d", fake.headerCalls)
	}
	// the section payload is dropped for the redirected call
	if len(fake.sectionCalls) != 0 {
		t.Fatalf("expected no section render before initialization, got %d", len(fake.sectionCalls))
	}
	if !strings.Contains(source, "Amy Lu") {
		t.Fatalf("expected header content in source:\n%s", source)
	}
}

func TestGenerate_EducationScenario(t *testing.T) {
	fake := &fakeRenderer{}
	g := newTestGenerator(t, fake)
	ctx := context.Background()

	doc := resume.ResumeData{
		Name:      resume.Name{FirstName: "Amy", LastName: "Lu"},
		Education: []resume.Education{{ID: "edu_1", Degree: "BSc", Institution: "MIT"}},
	}

	trigger := resume.SubmitTrigger{Section: resume.SectionEducation, ChangeType: resume.ChangeAdd}

	// first submit bootstraps, second carries the education payload
	if _, _, err := g.Generate(ctx, trigger, doc); err != nil {
		t.Fatalf("bootstrap generate: %v", err)
	}
	source, _, err := g.Generate(ctx, trigger, doc)
	if err != nil {
		t.Fatalf("section generate: %v", err)
	}

	if !strings.Contains(source, "BSc") || !strings.Contains(source, "MIT") {
		t.Fatalf("expected education content in source:\n%s", source)
	}
}

func TestGenerate_SectionFailureFallsBackToFull(t *testing.T) {
	fake := &fakeRenderer{}
	g := newTestGenerator(t, fake)
	ctx := context.Background()

	doc := resume.ResumeData{
		Name:       resume.Name{FirstName: "Amy", LastName: "Lu"},
		Experience: []resume.Experience{{ID: "exp_1", Title: "Engineer", Company: "Acme"}},
	}

	if _, _, err := g.Generate(ctx, resume.SubmitTrigger{Section: resume.SectionName}, doc); err != nil {
		t.Fatalf("bootstrap generate: %v", err)
	}

	fake.sectionErr = errors.New("capability returned 500")
	headerCallsBefore := fake.headerCalls

	source, fellBack, err := g.Generate(ctx, resume.SubmitTrigger{Section: resume.SectionExperience, ChangeType: resume.ChangeUpdate}, doc)
	if err != nil {
		t.Fatalf("expected fallback success, got %v", err)
	}

	if !fellBack {
		t.Fatal("expected the fallback to be reported")
	}
	if fake.headerCalls != headerCallsBefore+1 {
		t.Fatal("expected a full-generation fallback after the section failure")
	}
	if !strings.Contains(source, "Amy Lu") {
		t.Fatalf("expected fallback (full) output, got:\n%s", source)
	}
}

func TestGenerate_InvalidSectionOutputFallsBack(t *testing.T) {
	fake := &fakeRenderer{}
	g := newTestGenerator(t, fake)
	ctx := context.Background()

	doc := resume.ResumeData{
		Name:       resume.Name{FirstName: "Amy", LastName: "Lu"},
		Experience: []resume.Experience{{ID: "exp_1", Title: "Engineer", Company: "Acme"}},
	}

	if _, _, err := g.Generate(ctx, resume.SubmitTrigger{Section: resume.SectionName}, doc); err != nil {
		t.Fatalf("bootstrap generate: %v", err)
	}

	fake.sectionOut = `\section{broken`

	source, fellBack, err := g.Generate(ctx, resume.SubmitTrigger{Section: resume.SectionExperience, ChangeType: resume.ChangeUpdate}, doc)
	if err != nil {
		t.Fatalf("expected fallback success, got %v", err)
	}
	if !fellBack {
		t.Fatal("unbalanced section output must trigger the fallback")
	}
	if strings.Contains(source, "broken") {
		t.Fatalf("rejected block leaked into the source:\n%s", source)
	}
}

func TestGenerate_FallbackFailureIsSurfaced(t *testing.T) {
	fake := &fakeRenderer{}
	g := newTestGenerator(t, fake)
	ctx := context.Background()

	doc := resume.ResumeData{
		Name:       resume.Name{FirstName: "Amy", LastName: "Lu"},
		Experience: []resume.Experience{{ID: "exp_1", Title: "Engineer", Company: "Acme"}},
	}

	if _, _, err := g.Generate(ctx, resume.SubmitTrigger{Section: resume.SectionName}, doc); err != nil {
		t.Fatalf("bootstrap generate: %v", err)
	}

	fake.sectionErr = errors.New("capability returned 500")
	fake.headerErr = errors.New("capability down")

	_, _, err := g.Generate(ctx, resume.SubmitTrigger{Section: resume.SectionExperience, ChangeType: resume.ChangeUpdate}, doc)
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected GenerationError, got %v", err)
	}
	if genErr.Scope != "full" {
		t.Fatalf("surfaced error must come from the full fallback, got scope %q", genErr.Scope)
	}
}

func TestGenerate_PreservesUntouchedSections(t *testing.T) {
	fake := &fakeRenderer{}
	g := newTestGenerator(t, fake)
	ctx := context.Background()

	doc := resume.ResumeData{
		Name:       resume.Name{FirstName: "Amy", LastName: "Lu"},
		Education:  []resume.Education{{ID: "edu_1", Degree: "BSc", Institution: "MIT"}},
		Experience: []resume.Experience{{ID: "exp_1", Title: "Engineer", Company: "Acme"}},
	}

	eduTrigger := resume.SubmitTrigger{Section: resume.SectionEducation, ChangeType: resume.ChangeAdd}
	if _, _, err := g.Generate(ctx, eduTrigger, doc); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if _, _, err := g.Generate(ctx, eduTrigger, doc); err != nil {
		t.Fatalf("education submit: %v", err)
	}

	eduBlock := g.sections[resume.SectionEducation]
	source, _, err := g.Generate(ctx, resume.SubmitTrigger{Section: resume.SectionExperience, ChangeType: resume.ChangeAdd}, doc)
	if err != nil {
		t.Fatalf("experience submit: %v", err)
	}

	if g.sections[resume.SectionEducation] != eduBlock {
		t.Fatal("education block changed while regenerating experience")
	}
	if !strings.Contains(source, eduBlock) {
		t.Fatal("combined source lost the untouched education block")
	}
	// canonical ordering: education before experience regardless of submit order
	if strings.Index(source, "section{education}") > strings.Index(source, "section{experience}") {
		t.Fatalf("sections out of canonical order:\n%s", source)
	}
}

func TestGenerate_EmptyDocumentClearsState(t *testing.T) {
	fake := &fakeRenderer{}
	g := newTestGenerator(t, fake)
	ctx := context.Background()

	doc := resume.ResumeData{Name: resume.Name{FirstName: "Amy", LastName: "Lu"}}
	if _, _, err := g.Generate(ctx, resume.SubmitTrigger{Section: resume.SectionName}, doc); err != nil {
		t.Fatalf("generate: %v", err)
	}

	source, _, err := g.Generate(ctx, resume.SubmitTrigger{Section: resume.SectionName, ChangeType: resume.ChangeDelete}, resume.ResumeData{})
	if err != nil {
		t.Fatalf("generate on empty doc: %v", err)
	}
	if source != "" {
		t.Fatalf("expected cleared source, got %q", source)
	}
	if g.State() != StateUninitialized {
		t.Fatalf("expected Uninitialized after clearing, got %v", g.State())
	}
}

func TestGenerate_UnknownSectionProceedsWithNilPayload(t *testing.T) {
	fake := &fakeRenderer{}
	g := newTestGenerator(t, fake)
	ctx := context.Background()

	doc := resume.ResumeData{Name: resume.Name{FirstName: "Amy", LastName: "Lu"}, Skills: []resume.Skill{{ID: "sk_1", Skill: "Go"}}}
	if _, _, err := g.Generate(ctx, resume.SubmitTrigger{Section: resume.SectionName}, doc); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	if _, _, err := g.Generate(ctx, resume.SubmitTrigger{Section: "hobbies", ChangeType: resume.ChangeAdd}, doc); err != nil {
		t.Fatalf("unknown section must not be rejected: %v", err)
	}

	last := fake.sectionCalls[len(fake.sectionCalls)-1]
	if last.Section != "hobbies" || last.Entries != nil {
		t.Fatalf("expected nil payload for unknown section, got %+v", last)
	}
}
