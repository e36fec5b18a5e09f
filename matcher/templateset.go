package matcher

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// TemplateDefinition is one entry of a template set file.
type TemplateDefinition struct {
	ID        string   `yaml:"id"`
	Path      string   `yaml:"path"`
	Threshold *float64 `yaml:"threshold,omitempty"`
}

type templateSetFile struct {
	Templates []TemplateDefinition `yaml:"templates"`
}

// TemplateSet is a named collection of templates loaded from YAML.
type TemplateSet struct {
	templates map[string]Template
}

// LoadTemplateSet reads a YAML file listing templates. Relative image paths
// are resolved against the directory of the YAML file.
func LoadTemplateSet(path string) (*TemplateSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template set: %w", err)
	}

	var file templateSetFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse template set %s: %w", path, err)
	}

	base := filepath.Dir(path)
	set := &TemplateSet{templates: make(map[string]Template, len(file.Templates))}
	for _, def := range file.Templates {
		if def.ID == "" || def.Path == "" {
			return nil, fmt.Errorf("template set %s: entries need both id and path", path)
		}
		if _, exists := set.templates[def.ID]; exists {
			return nil, fmt.Errorf("template set %s: duplicate id %q", path, def.ID)
		}

		imgPath := def.Path
		if !filepath.IsAbs(imgPath) {
			imgPath = filepath.Join(base, imgPath)
		}

		var opts []TemplateOption
		if def.Threshold != nil {
			opts = append(opts, WithThreshold(*def.Threshold))
		}

		tmpl, err := NewFileTemplate(imgPath, opts...)
		if err != nil {
			return nil, fmt.Errorf("template %q: %w", def.ID, err)
		}
		set.templates[def.ID] = tmpl
	}

	return set, nil
}

func (s *TemplateSet) Get(id string) (Template, bool) {
	t, ok := s.templates[id]
	return t, ok
}

func (s *TemplateSet) IDs() []string {
	ids := make([]string, 0, len(s.templates))
	for id := range s.templates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
