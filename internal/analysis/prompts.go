package analysis

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/fleveque/fundamentals-analyzer/internal/model"
)

//go:embed prompts.yaml
var defaultPromptsYAML []byte

// SectionPrompt is one entry of the section catalog.
type SectionPrompt struct {
	Key    model.SectionKey `yaml:"key" json:"key"`
	Title  string           `yaml:"title" json:"title"`
	Prompt string           `yaml:"prompt" json:"-"`
}

// Prompts is the ordered section catalog.
type Prompts struct {
	sections []SectionPrompt
	byKey    map[model.SectionKey]SectionPrompt
}

// DefaultPrompts returns the built-in catalog.
func DefaultPrompts() *Prompts {
	p, err := parsePrompts(defaultPromptsYAML)
	if err != nil {
		// The embedded file ships with the binary; failing here is a build defect.
		panic(fmt.Sprintf("parsing embedded prompts: %v", err))
	}
	return p
}

// LoadPrompts reads a catalog from path, or returns the built-in one when
// path is empty.
func LoadPrompts(path string) (*Prompts, error) {
	if path == "" {
		return DefaultPrompts(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading prompts file: %w", err)
	}
	p, err := parsePrompts(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return p, nil
}

func parsePrompts(data []byte) (*Prompts, error) {
	var doc struct {
		Sections []SectionPrompt `yaml:"sections"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	p := &Prompts{byKey: make(map[model.SectionKey]SectionPrompt, len(doc.Sections))}
	for _, s := range doc.Sections {
		if !model.ValidSection(string(s.Key)) {
			return nil, fmt.Errorf("unknown section %q", s.Key)
		}
		if _, dup := p.byKey[s.Key]; dup {
			return nil, fmt.Errorf("duplicate section %q", s.Key)
		}
		if s.Prompt == "" {
			return nil, fmt.Errorf("section %q has an empty prompt", s.Key)
		}
		p.byKey[s.Key] = s
		p.sections = append(p.sections, s)
	}
	for _, k := range model.AllSections {
		if _, ok := p.byKey[k]; !ok {
			return nil, fmt.Errorf("missing section %q", k)
		}
	}
	return p, nil
}

// Sections returns the catalog in display order.
func (p *Prompts) Sections() []SectionPrompt {
	out := make([]SectionPrompt, len(p.sections))
	copy(out, p.sections)
	return out
}

// Get returns the prompt for a section.
func (p *Prompts) Get(key model.SectionKey) (SectionPrompt, bool) {
	s, ok := p.byKey[key]
	return s, ok
}
