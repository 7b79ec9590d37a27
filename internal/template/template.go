// Package template acquires and caches the LaTeX resume template the
// generator fills. A template is a plain .tex file annotated with %PART 1
// (preamble), %PART 2 (header block) and %PART 3 (section blocks) markers.
package template

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	gocache "github.com/patrickmn/go-cache"
)

const (
	markerPreamble = "%PART 1"
	markerHeader   = "%PART 2"
	markerSections = "%PART 3"
	footer         = "\\end{document}"

	cacheKeyActive = "active"
)

// ErrMissingMarkers indicates the template source lacks the %PART markers the
// generator relies on.
var ErrMissingMarkers = errors.New("template missing required %PART markers (1/2/3)")

// Parts is the parsed, normalized template shared read-only by all
// generation calls.
type Parts struct {
	Name     string
	Preamble string
	Header   string
	Sections string
	Footer   string
}

// Combined reassembles the template parts into a full document skeleton.
func (p *Parts) Combined(header, sections string) string {
	return strings.Join([]string{p.Preamble, header, sections, p.Footer}, "\n")
}

// Store loads templates from disk, parses them once and caches the result for
// the process lifetime (or until Reset). Acquire is safe for concurrent use;
// the parse runs at most once per active template.
type Store struct {
	mu     sync.Mutex
	cache  *gocache.Cache
	loader func() (string, string, error)

	dir         string
	defaultName string
}

// NewStore builds a Store reading <dir>/<name>.tex with the configured
// default template as the initial active source.
func NewStore(dir, defaultName string) *Store {
	s := &Store{
		cache:       gocache.New(gocache.NoExpiration, 0),
		dir:         dir,
		defaultName: defaultName,
	}
	s.loader = func() (string, string, error) {
		return s.loadFromDisk(s.defaultName)
	}
	return s
}

func (s *Store) loadFromDisk(name string) (string, string, error) {
	path := filepath.Join(s.dir, name+".tex")
	content, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("read template %s: %w", path, err)
	}
	return name, string(content), nil
}

// Acquire returns the parsed active template, fetching and parsing it on the
// first call and serving the cached handle afterwards.
func (s *Store) Acquire(ctx context.Context) (*Parts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cached, ok := s.cache.Get(cacheKeyActive); ok {
		return cached.(*Parts), nil
	}

	name, content, err := s.loader()
	if err != nil {
		return nil, err
	}

	parts, err := Parse(name, content)
	if err != nil {
		return nil, err
	}

	s.cache.Set(cacheKeyActive, parts, gocache.NoExpiration)
	return parts, nil
}

// Reset drops the cached template so the next Acquire re-fetches.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Delete(cacheKeyActive)
}

// SetActive replaces the active template with uploaded content. The content
// is parsed up front so a broken upload never evicts a working template.
func (s *Store) SetActive(name, content string) error {
	parts, err := Parse(name, content)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loader = func() (string, string, error) { return name, content, nil }
	s.cache.Set(cacheKeyActive, parts, gocache.NoExpiration)
	return nil
}

// Parse splits raw template source on the %PART markers. Everything from
// %PART 3 up to \end{document} is the sections block; the footer is always
// exactly \end{document}.
func Parse(name, content string) (*Parts, error) {
	part1 := strings.Index(content, markerPreamble)
	part2 := strings.Index(content, markerHeader)
	part3 := strings.Index(content, markerSections)
	endDoc := strings.LastIndex(content, footer)

	if part1 == -1 || part2 == -1 || part3 == -1 {
		return nil, fmt.Errorf("template %q: %w", name, ErrMissingMarkers)
	}
	if !(part1 < part2 && part2 < part3) {
		return nil, fmt.Errorf("template %q: %%PART markers out of order", name)
	}

	sectionsEnd := len(content)
	if endDoc > part3 {
		sectionsEnd = endDoc
	}

	return &Parts{
		Name:     name,
		Preamble: strings.TrimSpace(content[part1:part2]),
		Header:   strings.TrimSpace(content[part2:part3]),
		Sections: strings.TrimSpace(content[part3:sectionsEnd]),
		Footer:   footer,
	}, nil
}
