package prompt

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed prompts
var embedded embed.FS

// ErrPromptNotFound is returned when an agent has no prompt file of the requested kind.
var ErrPromptNotFound = errors.New("prompt not found")

// ErrInvalidPrompt is returned when a prompt file lacks its text field.
var ErrInvalidPrompt = errors.New("invalid prompt")

// Kind of prompt file.
type Kind string

const (
	KindSystem Kind = "system"
	KindUser   Kind = "user"
)

// Store reads prompt definitions laid out as <agent>/<kind>.yaml.
type Store struct {
	fsys fs.FS
}

func NewStore(fsys fs.FS) *Store { return &Store{fsys: fsys} }

// DirStore reads prompts from a directory on disk.
func DirStore(dir string) *Store { return NewStore(os.DirFS(dir)) }

// DefaultStore serves the prompts compiled into the binary.
func DefaultStore() *Store {
	sub, err := fs.Sub(embedded, "prompts")
	if err != nil {
		panic(err) // embedded tree is fixed at build time
	}
	return NewStore(sub)
}

// Load returns the parsed YAML mapping of one prompt file.
func (s *Store) Load(agent string, kind Kind) (map[string]any, error) {
	name := path.Join(agent, string(kind)+".yaml")
	data, err := fs.ReadFile(s.fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrInvalid) {
			return nil, fmt.Errorf("%w: %s prompt for agent %q (%s)", ErrPromptNotFound, kind, agent, name)
		}
		return nil, fmt.Errorf("read prompt %s: %w", name, err)
	}
	var out map[string]any
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse prompt %s: %w", name, err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

// SystemPrompt returns the "prompt" field of the agent's system prompt.
func (s *Store) SystemPrompt(agent string) (string, error) {
	return s.text(agent, KindSystem, "prompt")
}

// UserTemplate returns the "template" field of the agent's user prompt.
func (s *Store) UserTemplate(agent string) (string, error) {
	return s.text(agent, KindUser, "template")
}

func (s *Store) text(agent string, kind Kind, field string) (string, error) {
	m, err := s.Load(agent, kind)
	if err != nil {
		return "", err
	}
	v, ok := m[field].(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("%w: %s prompt for agent %q has no %q field", ErrInvalidPrompt, kind, agent, field)
	}
	return v, nil
}
