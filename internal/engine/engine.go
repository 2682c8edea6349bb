// Package engine orchestrates a debate session: it owns the turn
// state machine, composes the moderator and debaters, accumulates the
// transcript, and persists the finished session.
package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stellarlinkco/rostrum/internal/agent"
	"github.com/stellarlinkco/rostrum/internal/config"
	"github.com/stellarlinkco/rostrum/internal/llm"
	"github.com/stellarlinkco/rostrum/internal/prompt"
	"github.com/stellarlinkco/rostrum/internal/search"
)

// Debate statuses. Error is absorbing: a session that hits it cannot
// be resumed.
const (
	StatusInitialized = "initialized"
	StatusReady       = "ready"
	StatusInProgress  = "in_progress"
	StatusCompleted   = "completed"
	StatusError       = "error"
)

// Options configure an Engine. Zero-value fields get working defaults
// so tests can inject only what they fake.
type Options struct {
	Config  *config.Config
	LLM     llm.Client
	Search  search.Client
	Prompts *prompt.Store
	Store   *Store

	// Now stamps transcript entries and the saved session.
	Now func() time.Time
}

// Engine runs one debate session from setup to persistence. It is not
// safe for concurrent use; a session is strictly sequential because
// each generation step depends on the transcript state left by the
// previous one.
type Engine struct {
	opts Options
	now  func() time.Time

	id       string
	status   string
	topic    string
	rules    agent.Rules
	current  int
	maxTurns int

	moderator  *agent.Moderator
	debaters   []*agent.Debater
	transcript []TranscriptEntry
}

// Status is a point-in-time snapshot of a session.
type Status struct {
	ID               string   `json:"id"`
	Topic            string   `json:"topic"`
	Status           string   `json:"status"`
	CurrentTurn      int      `json:"current_turn"`
	MaxTurns         int      `json:"max_turns"`
	Debaters         []string `json:"debaters"`
	Moderator        string   `json:"moderator"`
	TranscriptLength int      `json:"transcript_length"`
}

func New(opts Options) *Engine {
	if opts.Config == nil {
		opts.Config = config.DefaultConfig()
	}
	if opts.LLM == nil {
		opts.LLM = llm.NewClient(opts.Config)
	}
	if opts.Search == nil {
		opts.Search = search.NewClient(opts.Config)
	}
	if opts.Prompts == nil {
		opts.Prompts = prompt.NewStore()
		if dir := opts.Config.Debate.TemplateDir; dir != "" {
			if err := opts.Prompts.LoadDir(dir); err != nil {
				log.Printf("[engine] template dir %s: %v", dir, err)
			}
		}
	}
	if opts.Store == nil {
		opts.Store = NewStore(config.DebatesDir())
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	e := &Engine{
		opts:     opts,
		now:      opts.Now,
		id:       uuid.NewString(),
		status:   StatusInitialized,
		maxTurns: opts.Config.Debate.Turns,
	}
	log.Printf("[engine] initialized debate session %s", e.id)
	return e
}

// ID returns the session identifier.
func (e *Engine) ID() string { return e.id }

// Setup builds the moderator and the debater roster and moves the
// session to ready. A debater persona without a stance alternates
// for/against by roster position. Failure is terminal for the session.
func (e *Engine) Setup(topic string, debaterPersonas []agent.Persona, moderatorPersona agent.Persona, rules *agent.Rules) error {
	if strings.TrimSpace(topic) == "" {
		e.status = StatusError
		return fmt.Errorf("setup debate: empty topic")
	}
	if len(debaterPersonas) < 2 {
		e.status = StatusError
		return fmt.Errorf("setup debate: need at least 2 debaters, got %d", len(debaterPersonas))
	}

	e.topic = topic

	if rules == nil {
		rules = &agent.Rules{
			Format:               config.DefaultFormat,
			RoundTime:            config.DefaultRoundTime,
			MaxRounds:            e.maxTurns,
			ScoringCriteria:      []string{"clarity", "evidence", "persuasiveness"},
			InterruptionsAllowed: false,
		}
	}
	e.rules = *rules
	if e.rules.MaxRounds > 0 {
		e.maxTurns = e.rules.MaxRounds
	} else {
		e.rules.MaxRounds = e.maxTurns
	}

	llmCfg := agent.LLMConfig{
		Model:       e.opts.Config.Agent.Model,
		Temperature: e.opts.Config.Agent.Temperature,
		MaxTokens:   e.opts.Config.Agent.MaxTokens,
		TopP:        e.opts.Config.Agent.TopP,
	}
	deps := agent.Deps{LLM: e.opts.LLM, Prompts: e.opts.Prompts}

	if moderatorPersona.Name == "" {
		moderatorPersona.Name = "Moderator"
	}
	e.moderator = agent.NewModerator(moderatorPersona, e.opts.Config.Debate.FactChecking, e.opts.Search, llmCfg, deps)

	e.debaters = e.debaters[:0]
	roster := make([]agent.DebaterInfo, 0, len(debaterPersonas))
	for i, p := range debaterPersonas {
		stance := p.Stance
		if stance == "" {
			if i%2 == 0 {
				stance = "for"
			} else {
				stance = "against"
			}
		}
		if p.Name == "" {
			p.Name = fmt.Sprintf("Debater %d", i+1)
		}
		d := agent.NewDebater(p, stance, llmCfg, deps)
		e.debaters = append(e.debaters, d)
		roster = append(roster, agent.DebaterInfo{
			Name:        d.Name,
			Stance:      d.Stance,
			StanceLabel: d.StanceLabel(),
		})
	}

	e.moderator.SetDebateConfig(topic, roster, e.rules)

	e.status = StatusReady
	log.Printf("[engine] set up debate on topic %q with %d debaters", topic, len(e.debaters))
	return nil
}

// Start opens the session: moderator introduction, then one opening
// statement per debater, each evaluated immediately at turn 0.
func (e *Engine) Start(ctx context.Context) error {
	if e.status != StatusReady {
		return fmt.Errorf("cannot start debate: status is %s", e.status)
	}

	e.status = StatusInProgress
	e.current = 0

	introduction := e.moderator.Introduction(ctx)
	e.addToTranscript("moderator", introduction, agent.TypeIntroduction)

	for _, d := range e.debaters {
		opening := d.OpeningStatement(ctx, e.topic)
		e.addToTranscript(d.Name, opening, agent.TypeOpeningStatement)
		e.moderator.EvaluateArgument(ctx, d.Name, opening, 0)
	}

	log.Printf("[engine] started debate on topic %q", e.topic)
	return nil
}

// RunTurn advances the debate one turn: each debater argues or rebuts,
// is evaluated, optionally fact-checked, and handed over; the turn
// closes with a moderator summary. At the turn limit it delegates to
// End. A failed turn reports (false, message) and leaves the session
// in progress.
func (e *Engine) RunTurn(ctx context.Context) (bool, string) {
	if e.status != StatusInProgress {
		return false, fmt.Sprintf("cannot run turn: debate status is %s", e.status)
	}
	if e.current >= e.maxTurns {
		return e.End(ctx)
	}

	e.current++
	log.Printf("[engine] starting debate turn %d/%d", e.current, e.maxTurns)

	for i, d := range e.debaters {
		opponents := e.opponentArguments(d.Name)

		var text, messageType string
		if e.current == 1 || len(opponents) == 0 {
			text = d.Argument(ctx, e.topic, e.current, e.transcriptSummary())
			messageType = agent.TypeArgument
		} else {
			text = d.Rebuttal(ctx, e.topic, e.current, opponents)
			messageType = agent.TypeRebuttal
		}
		e.addToTranscript(d.Name, text, messageType)

		e.moderator.EvaluateArgument(ctx, d.Name, text, e.current)

		if e.moderator.FactChecking() {
			if factCheck := e.moderator.GenerateFactCheck(ctx, text, e.current); factCheck != "" {
				e.addToTranscript("moderator", factCheck, agent.TypeFactCheck)
				log.Printf("[engine] added fact check for argument by %s", d.Name)
			}
		}

		if i < len(e.debaters)-1 {
			next := e.debaters[i+1]
			transition := e.moderator.Transition(ctx, d.Name, next.Name, e.current, e.maxTurns)
			e.addToTranscript("moderator", transition, agent.TypeTransition)
		}
	}

	summary := e.moderator.Summary(ctx, e.current, e.transcriptSummary())
	e.addToTranscript("moderator", summary, agent.TypeSummary)

	if e.current >= e.maxTurns {
		return e.End(ctx)
	}
	return true, fmt.Sprintf("Completed turn %d/%d", e.current, e.maxTurns)
}

// End closes the session: one evaluated closing statement per debater,
// the moderator's conclusion, final results, and persistence. Valid
// from in_progress or ready; callers may invoke it early to skip
// remaining turns.
func (e *Engine) End(ctx context.Context) (bool, string) {
	if e.status != StatusInProgress && e.status != StatusReady {
		return false, fmt.Sprintf("cannot end debate: status is %s", e.status)
	}

	for _, d := range e.debaters {
		closing := d.ClosingStatement(ctx, e.topic, e.current)
		e.addToTranscript(d.Name, closing, agent.TypeClosingStatement)
		e.moderator.EvaluateArgument(ctx, d.Name, closing, e.current)
	}

	conclusion := e.moderator.Conclusion(ctx)
	e.addToTranscript("moderator", conclusion, agent.TypeConclusion)

	results := e.moderator.Results()

	// A save failure is surfaced but does not lose the in-memory
	// session or block completion.
	saveNote := ""
	if _, err := e.opts.Store.Save(e.Session()); err != nil {
		log.Printf("[engine] save failed: %v", err)
		saveNote = fmt.Sprintf(" (save failed: %v)", err)
	}

	e.status = StatusCompleted
	log.Printf("[engine] ended debate on topic %q, winner: %s", e.topic, results.Winner)
	return true, fmt.Sprintf("Debate completed. Winner: %s%s", results.Winner, saveNote)
}

// EndEarly terminates an in-progress debate before the turn limit.
func (e *Engine) EndEarly(ctx context.Context) (bool, string) {
	log.Printf("[engine] ending debate early at turn %d/%d", e.current, e.maxTurns)
	return e.End(ctx)
}

func (e *Engine) addToTranscript(speaker, content, messageType string) {
	e.transcript = append(e.transcript, TranscriptEntry{
		Speaker:   speaker,
		Content:   content,
		Type:      messageType,
		Turn:      e.current,
		Timestamp: e.now().Format(time.RFC3339),
	})
}

// opponentArguments selects up to the 3 most recent transcript entries
// from other debaters, restricted to the current and previous turn and
// to substantive types.
func (e *Engine) opponentArguments(debaterName string) []agent.OpponentArgument {
	var recent []agent.OpponentArgument
	for _, entry := range e.transcript {
		if entry.Speaker == debaterName || entry.Speaker == "moderator" {
			continue
		}
		if entry.Turn != e.current && entry.Turn != e.current-1 {
			continue
		}
		switch entry.Type {
		case agent.TypeArgument, agent.TypeRebuttal, agent.TypeOpeningStatement:
		default:
			continue
		}
		recent = append(recent, agent.OpponentArgument{
			Speaker: entry.Speaker,
			Content: entry.Content,
			Type:    entry.Type,
			Turn:    entry.Turn,
		})
	}
	if len(recent) > 3 {
		recent = recent[len(recent)-3:]
	}
	return recent
}

// transcriptSummary is a cheap counting overview of the transcript,
// with participants listed in first-appearance order.
func (e *Engine) transcriptSummary() string {
	typeCounts := make(map[string]int)
	seen := make(map[string]bool)
	var participants []string

	for _, entry := range e.transcript {
		typeCounts[entry.Type]++
		if !seen[entry.Speaker] {
			seen[entry.Speaker] = true
			participants = append(participants, entry.Speaker)
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Debate on topic: %s. ", e.topic)
	fmt.Fprintf(&sb, "Current turn: %d of %d. ", e.current, e.maxTurns)
	fmt.Fprintf(&sb, "Participants: %s. ", strings.Join(participants, ", "))
	if n := typeCounts[agent.TypeArgument]; n > 0 {
		fmt.Fprintf(&sb, "%d arguments, ", n)
	}
	if n := typeCounts[agent.TypeRebuttal]; n > 0 {
		fmt.Fprintf(&sb, "%d rebuttals, ", n)
	}
	if n := typeCounts[agent.TypeSummary]; n > 0 {
		fmt.Fprintf(&sb, "%d summaries. ", n)
	}
	return strings.TrimRight(sb.String(), " ")
}

// Transcript returns transcript entries, optionally filtered by
// speaker and/or message type. Empty filters match everything.
func (e *Engine) Transcript(speaker, messageType string) []TranscriptEntry {
	var out []TranscriptEntry
	for _, entry := range e.transcript {
		if speaker != "" && entry.Speaker != speaker {
			continue
		}
		if messageType != "" && entry.Type != messageType {
			continue
		}
		out = append(out, entry)
	}
	return out
}

// Results returns the final standings; an error before completion.
func (e *Engine) Results() (agent.Results, error) {
	if e.status != StatusCompleted {
		return agent.Results{}, fmt.Errorf("debate has not been completed: status is %s", e.status)
	}
	return e.moderator.Results(), nil
}

// Status snapshots the session state.
func (e *Engine) Status() Status {
	names := make([]string, 0, len(e.debaters))
	for _, d := range e.debaters {
		names = append(names, d.Name)
	}
	moderatorName := ""
	if e.moderator != nil {
		moderatorName = e.moderator.Name
	}
	return Status{
		ID:               e.id,
		Topic:            e.topic,
		Status:           e.status,
		CurrentTurn:      e.current,
		MaxTurns:         e.maxTurns,
		Debaters:         names,
		Moderator:        moderatorName,
		TranscriptLength: len(e.transcript),
	}
}

// Session assembles the persisted session document from the current
// in-memory state.
func (e *Engine) Session() *Session {
	var results *agent.Results
	if e.moderator != nil {
		r := e.moderator.Results()
		results = &r
	}
	debaters := make([]DebaterRecord, 0, len(e.debaters))
	for _, d := range e.debaters {
		debaters = append(debaters, DebaterRecord{
			Name:        d.Name,
			Stance:      d.Stance,
			DebateStyle: d.DebateStyle,
			Stats:       d.Stats(),
		})
	}
	return &Session{
		ID:         e.id,
		Topic:      e.topic,
		Rules:      e.rules,
		Status:     e.status,
		Turns:      e.current,
		MaxTurns:   e.maxTurns,
		Timestamp:  e.now().Format(time.RFC3339),
		Transcript: e.transcript,
		Results:    results,
		Debaters:   debaters,
	}
}
