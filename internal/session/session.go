// Package session is the orchestration layer: it owns the in-memory resume
// documents and wires edits, submits and polish requests to the store,
// generator and polishing client. Documents live only for the process
// lifetime; there is no cross-session persistence.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AmyLu0828/the-resume-hub/internal/generator"
	"github.com/AmyLu0828/the-resume-hub/internal/polish"
	"github.com/AmyLu0828/the-resume-hub/internal/resume"
)

// ErrUnsupportedPolishSection is returned for sections that have no polish
// merge semantics (name, contact, skills).
var ErrUnsupportedPolishSection = fmt.Errorf("section does not support polishing")

// Session binds one resume document to its generator state.
type Session struct {
	ID        string
	CreatedAt time.Time

	// mu guards the document only. Generation serializes on the generator's
	// own mutex, so edits stay possible while a generation call is in flight.
	mu  sync.Mutex
	doc resume.ResumeData
	gen *generator.Generator
}

// Document returns a snapshot of the current document.
func (s *Session) Document() resume.ResumeData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Clone()
}

// Source returns the current generated source text.
func (s *Session) Source() string {
	return s.gen.Source()
}

// ApplyUpdate routes an edit through the reducer. It never triggers
// generation.
func (s *Session) ApplyUpdate(update resume.UpdateMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := resume.Apply(s.doc, update)
	if err != nil {
		return err
	}
	s.doc = next
	return nil
}

// Submit renders the currently stored state for the trigger's section. The
// document is snapshotted first, so edits arriving during the generation call
// only affect the next submission. fellBack reports that an incremental
// request was recovered by a full generation.
func (s *Session) Submit(ctx context.Context, trigger resume.SubmitTrigger) (source string, fellBack bool, err error) {
	s.mu.Lock()
	snapshot := s.doc.Clone()
	s.mu.Unlock()

	return s.gen.Generate(ctx, trigger, snapshot)
}

// PolishResult reports the outcome of a polish operation, including the
// source refreshed by the auto-emitted submit.
type PolishResult struct {
	Improved   string
	SourceText string
	// SubmitErr is set when the improvement succeeded but the auto-emitted
	// submit failed; the merge is kept either way.
	SubmitErr error
}

// Polish improves one entry's text, merges the result into the document and
// auto-emits a submit trigger for the section. On polish failure the document
// is left untouched.
//
// Merge policy: aboutMe/education/experience set both description and
// polishedDescription to the improved text (the pre-polish original is not
// retained server-side); customSections overwrite content only. If the target
// entry vanished while the polish call was in flight the merge is a no-op.
func (s *Session) Polish(ctx context.Context, polisher *polish.Polisher, section, entryID string, content json.RawMessage) (PolishResult, error) {
	if !polishable(section) {
		return PolishResult{}, ErrUnsupportedPolishSection
	}

	improved, err := polisher.Polish(ctx, section, entryID, content)
	if err != nil {
		return PolishResult{}, err
	}

	s.mu.Lock()
	s.merge(section, entryID, improved)
	s.mu.Unlock()

	result := PolishResult{Improved: improved}
	source, _, err := s.Submit(ctx, resume.SubmitTrigger{
		Section:    section,
		EntryID:    entryID,
		ChangeType: resume.ChangeUpdate,
	})
	if err != nil {
		result.SubmitErr = err
	} else {
		result.SourceText = source
	}

	return result, nil
}

// polishable reports whether a section has polish merge semantics.
func polishable(section string) bool {
	switch section {
	case resume.SectionAboutMe, resume.SectionEducation, resume.SectionExperience, resume.SectionCustomSections:
		return true
	}
	return false
}

func (s *Session) merge(section, entryID, improved string) {
	switch section {
	case resume.SectionAboutMe:
		s.doc.AboutMe.Description = improved
		s.doc.AboutMe.PolishedDescription = improved
	case resume.SectionEducation:
		for i := range s.doc.Education {
			if s.doc.Education[i].ID == entryID {
				s.doc.Education[i].Description = improved
				s.doc.Education[i].PolishedDescription = improved
				break
			}
		}
	case resume.SectionExperience:
		for i := range s.doc.Experience {
			if s.doc.Experience[i].ID == entryID {
				s.doc.Experience[i].Description = improved
				s.doc.Experience[i].PolishedDescription = improved
				break
			}
		}
	case resume.SectionCustomSections:
		for i := range s.doc.CustomSections {
			if s.doc.CustomSections[i].ID == entryID {
				s.doc.CustomSections[i].Content = improved
				break
			}
		}
	}
}

// Manager is the in-memory session registry.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	newGenerator func() *generator.Generator
	logger       *slog.Logger
	newID        func() string
}

// NewManager builds a Manager; newGenerator constructs a fresh generator per
// session (each session owns its own generation state machine).
func NewManager(newGenerator func() *generator.Generator, logger *slog.Logger, newID func() string) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		sessions:     map[string]*Session{},
		newGenerator: newGenerator,
		logger:       logger,
		newID:        newID,
	}
}

// Create registers a new empty session.
func (m *Manager) Create() *Session {
	s := &Session{
		ID:        m.newID(),
		CreatedAt: time.Now(),
		gen:       m.newGenerator(),
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.logger.Info("session created", slog.String("session_id", s.ID))
	return s
}

// Get looks up a session by id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}
