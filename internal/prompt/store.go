// Package prompt holds the named templates agents use to compose
// generation requests. Built-in templates cover every agent/message
// type; a template directory can override or extend them.
package prompt

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

// Context carries every field a template may reference. Typed with
// zero-value defaults so templates never hit a missing key.
type Context struct {
	MessageType        string
	Name               string
	PersonaDescription string
	PersonaTraits      []string
	PersonaBackground  string
	Topic              string
	ExactTopic         string
	Stance             string
	StanceLabel        string
	DebateStyle        string
	ModerationStyle    string
	TurnNumber         int
	TotalTurns         int
	CurrentSpeaker     string
	NextSpeaker        string
	Debaters           []string
	Rules              string
	TranscriptSummary  string
	Transcript         string
	OpponentArguments  string
	ArgumentsMade      string
	PointsAddressed    string
	ScoreText          string
	Winner             string
	WinnerScore        float64
	Statement          string
	Sources            string
	NumSources         int
	Issue              string
}

type templateFrontmatter struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

var errInvalidTemplateYAML = errors.New("invalid template YAML frontmatter")

type Store struct {
	templates map[string]*template.Template
}

// NewStore returns a store preloaded with the built-in templates.
func NewStore() *Store {
	s := &Store{templates: make(map[string]*template.Template)}
	for name, text := range builtinTemplates {
		if err := s.Add(name, text); err != nil {
			// Built-ins are compiled in; a parse failure is a bug.
			panic(fmt.Sprintf("builtin template %s: %v", name, err))
		}
	}
	return s
}

// Add registers or replaces a template.
func (s *Store) Add(name, text string) error {
	tmpl, err := template.New(name).Parse(text)
	if err != nil {
		return fmt.Errorf("parse template %q: %w", name, err)
	}
	s.templates[name] = tmpl
	return nil
}

// Has reports whether a template with this name is registered.
func (s *Store) Has(name string) bool {
	_, ok := s.templates[name]
	return ok
}

// Names returns the registered template names, sorted.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.templates))
	for name := range s.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Format renders the named template with ctx. A missing template or a
// render failure degrades to a labeled placeholder instead of an error:
// prompt composition must never abort a debate step.
func (s *Store) Format(name string, ctx Context) string {
	tmpl, ok := s.templates[name]
	if !ok {
		log.Printf("[prompt] template %s not found, using fallback", name)
		return fmt.Sprintf("This is a placeholder for the %s template. Topic: %s. Speaker: %s.", name, ctx.Topic, ctx.Name)
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, ctx); err != nil {
		log.Printf("[prompt] render %s: %v", name, err)
		return fmt.Sprintf("This is a placeholder for the %s template. Topic: %s. Speaker: %s.", name, ctx.Topic, ctx.Name)
	}
	return sb.String()
}

// LoadDir merges template files from dir into the store. Plain .txt
// files register under their base name; .md files carry a YAML
// frontmatter block with the template name. Files that fail to parse
// are skipped with a warning.
func (s *Store) LoadDir(dir string) error {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil
	}

	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat template dir %q: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("template path is not a directory: %s", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read template dir %q: %w", dir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		ext := strings.ToLower(filepath.Ext(entry.Name()))

		switch ext {
		case ".txt":
			content, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read template %q: %w", path, err)
			}
			name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
			if err := s.Add(name, string(content)); err != nil {
				log.Printf("[prompt] warning: skip invalid template %s: %v", path, err)
			}
		case ".md":
			name, body, err := parseTemplateFile(path)
			if err != nil {
				if errors.Is(err, errInvalidTemplateYAML) {
					log.Printf("[prompt] warning: skip invalid template %s: %v", path, err)
					continue
				}
				return err
			}
			if err := s.Add(name, body); err != nil {
				log.Printf("[prompt] warning: skip invalid template %s: %v", path, err)
			}
		}
	}
	return nil
}

func parseTemplateFile(path string) (string, string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("read template %q: %w", path, err)
	}

	text := strings.TrimPrefix(string(content), "\uFEFF")
	lines := strings.Split(text, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		// No frontmatter, fall back to the file base name.
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		return name, text, nil
	}

	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			end = i
			break
		}
	}
	if end == -1 {
		return "", "", fmt.Errorf("%w: missing closing separator in %s", errInvalidTemplateYAML, path)
	}

	var meta templateFrontmatter
	if err := yaml.Unmarshal([]byte(strings.Join(lines[1:end], "\n")), &meta); err != nil {
		return "", "", fmt.Errorf("%w: %v", errInvalidTemplateYAML, err)
	}
	name := strings.TrimSpace(meta.Name)
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	body := strings.TrimSpace(strings.Join(lines[end+1:], "\n"))
	return name, body, nil
}
