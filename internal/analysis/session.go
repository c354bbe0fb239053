package analysis

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/fleveque/fundamentals-analyzer/internal/model"
)

// Enhancer decorates a section prompt with external context. Implementations
// return the prompt unchanged when they have nothing to add.
type Enhancer interface {
	Enhance(ctx context.Context, prompt string, section model.SectionKey) string
}

// Session is the state of one uploaded document: its text, the per-section
// cache and the optional research enhancer. A new upload gets a new Session;
// sessions are never merged or reused.
type Session struct {
	info model.SessionInfo
	text string

	mu       sync.Mutex
	cache    map[model.SectionKey]string
	enhancer Enhancer

	// flights collapses concurrent computations of the same section.
	flights singleflight.Group
}

// NewSession creates a session for document text.
func NewSession(filename, text string, pages int) *Session {
	return &Session{
		info: model.SessionInfo{
			ID:         uuid.NewString(),
			Filename:   filename,
			Pages:      pages,
			Characters: len([]rune(text)),
			CreatedAt:  time.Now().UTC(),
		},
		text:  text,
		cache: make(map[model.SectionKey]string),
	}
}

func (s *Session) ID() string   { return s.info.ID }
func (s *Session) Text() string { return s.text }

// Info returns a snapshot of the session metadata.
func (s *Session) Info() model.SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}

// Cached returns the stored text for a section, if any.
func (s *Session) Cached(key model.SectionKey) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.cache[key]
	return text, ok
}

// CachedSections lists populated sections in display order.
func (s *Session) CachedSections() []model.SectionKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []model.SectionKey
	for _, k := range model.AllSections {
		if _, ok := s.cache[k]; ok {
			keys = append(keys, k)
		}
	}
	return keys
}

func (s *Session) store(key model.SectionKey, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Append-only: the first stored value wins for the life of the session.
	if _, ok := s.cache[key]; !ok {
		s.cache[key] = text
	}
}

// SetEnhancer attaches (or with nil, detaches) web research for this session.
func (s *Session) SetEnhancer(e Enhancer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enhancer = e
}

func (s *Session) currentEnhancer() Enhancer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enhancer
}

// CompanyName returns the extracted company name, or "" before extraction.
func (s *Session) CompanyName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info.CompanyName
}

func (s *Session) setCompanyName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.info.CompanyName = name
}
