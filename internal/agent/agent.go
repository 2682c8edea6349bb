// Package agent implements the debate participants: a shared agent
// base, debaters, and the moderator with its evaluation engine.
package agent

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stellarlinkco/rostrum/internal/llm"
	"github.com/stellarlinkco/rostrum/internal/prompt"
)

// Persona is the static descriptive record used to color generated
// text and select prompt templates. Read-only to the core.
type Persona struct {
	ID              string   `json:"id,omitempty"`
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Traits          []string `json:"traits"`
	Background      string   `json:"background,omitempty"`
	Stance          string   `json:"stance,omitempty"`
	DebateStyle     string   `json:"debate_style,omitempty"`
	ModerationStyle string   `json:"moderation_style,omitempty"`
}

// LLMConfig is the per-agent generation configuration.
type LLMConfig struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"maxTokens"`
	TopP        float64 `json:"topP"`
}

// Message is one entry in an agent's append-only history.
type Message struct {
	Type      string         `json:"type"`
	Context   prompt.Context `json:"context"`
	Response  string         `json:"response"`
	Timestamp time.Time      `json:"timestamp"`
}

// Deps are the injected collaborators every agent needs.
type Deps struct {
	LLM     llm.Client
	Prompts *prompt.Store
}

// Base carries identity, persona, generation config, and history for
// all agent kinds. Mutated only through its own methods; owned by the
// debate session that constructed it.
type Base struct {
	ID        string
	Name      string
	Persona   Persona
	LLMConfig LLMConfig

	agentType string
	deps      Deps
	history   []Message
	state     map[string]any
	now       func() time.Time
}

func newBase(agentType string, p Persona, cfg LLMConfig, deps Deps) Base {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = "Agent"
	}
	b := Base{
		ID:        uuid.NewString(),
		Name:      name,
		Persona:   p,
		LLMConfig: cfg,
		agentType: agentType,
		deps:      deps,
		state:     make(map[string]any),
		now:       time.Now,
	}
	log.Printf("[agent] initialized %s: %s", agentType, name)
	return b
}

// GenerateMessage composes a persona-aware prompt for pc.MessageType,
// invokes the generation service, and records the exchange. A failed
// generation never reaches the caller as an error: it degrades to a
// labeled placeholder that still enters the history and the debate.
func (b *Base) GenerateMessage(ctx context.Context, pc prompt.Context) string {
	templateName := b.agentType + "_" + pc.MessageType

	pc.Name = b.Name
	pc.PersonaDescription = b.Persona.Description
	pc.PersonaTraits = b.Persona.Traits
	pc.PersonaBackground = b.Persona.Background

	composed := b.deps.Prompts.Format(templateName, pc)

	// Hard topic pin: quote the exact topic so the model cannot
	// silently drift the subject.
	if pc.Topic != "" {
		composed = fmt.Sprintf("IMPORTANT: The debate topic is exactly: %q. Do not change or reinterpret the topic.\n\n%s", pc.Topic, composed)
	}

	text, err := b.deps.LLM.Complete(ctx, llm.Request{
		System:      b.systemPrompt(),
		Prompt:      composed,
		Model:       b.LLMConfig.Model,
		Temperature: b.LLMConfig.Temperature,
		MaxTokens:   b.LLMConfig.MaxTokens,
		TopP:        b.LLMConfig.TopP,
	})
	if err != nil {
		log.Printf("[agent] generation failed for %s: %v", b.Name, err)
		text = fmt.Sprintf("Error: %v. This is a placeholder response from %s.", err, b.Name)
	}

	b.history = append(b.history, Message{
		Type:      pc.MessageType,
		Context:   pc,
		Response:  text,
		Timestamp: b.now(),
	})

	return text
}

func (b *Base) systemPrompt() string {
	description := b.Persona.Description
	if description == "" {
		description = "an AI assistant"
	}
	sys := fmt.Sprintf("You are %s, %s.", b.Name, description)
	if len(b.Persona.Traits) > 0 {
		sys += " Your traits are: " + strings.Join(b.Persona.Traits, ", ")
	}
	return sys
}

// Messages returns history entries, optionally filtered by type.
func (b *Base) Messages(messageType string) []Message {
	if messageType == "" {
		out := make([]Message, len(b.history))
		copy(out, b.history)
		return out
	}
	var out []Message
	for _, msg := range b.history {
		if msg.Type == messageType {
			out = append(out, msg)
		}
	}
	return out
}

// LastMessage returns the most recent history entry of the given type
// (any type when empty), or nil.
func (b *Base) LastMessage(messageType string) *Message {
	msgs := b.Messages(messageType)
	if len(msgs) == 0 {
		return nil
	}
	return &msgs[len(msgs)-1]
}

// ResetHistory clears the agent's message history.
func (b *Base) ResetHistory() {
	b.history = nil
	log.Printf("[agent] reset message history for %s", b.Name)
}

// SetState stores a free-form state value.
func (b *Base) SetState(key string, value any) {
	b.state[key] = value
}

// State returns a previously stored state value.
func (b *Base) State(key string) (any, bool) {
	v, ok := b.state[key]
	return v, ok
}
