package agent

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/elliotchance/orderedmap/v3"
	"github.com/stellarlinkco/rostrum/internal/prompt"
	"github.com/stellarlinkco/rostrum/internal/search"
)

// Message types a moderator produces.
const (
	TypeIntroduction = "introduction"
	TypeTransition   = "transition"
	TypeSummary      = "summary"
	TypeConclusion   = "conclusion"
	TypeFactCheck    = "fact_check"
	TypeIntervention = "intervention"
)

// Rules configure one debate. Serialized field names are part of the
// saved-session contract.
type Rules struct {
	Format               string   `json:"format"`
	RoundTime            int      `json:"round_time"`
	MaxRounds            int      `json:"max_rounds"`
	ScoringCriteria      []string `json:"scoring_criteria"`
	InterruptionsAllowed bool     `json:"interruptions_allowed"`
}

// DebaterInfo is the moderator's view of one roster entry.
type DebaterInfo struct {
	Name        string `json:"name"`
	Stance      string `json:"stance"`
	StanceLabel string `json:"stance_description"`
}

// SpeakerScore is one speaker's evaluation list plus running total.
type SpeakerScore struct {
	Arguments []Evaluation `json:"arguments"`
	Total     float64      `json:"total"`
}

// FactCheckRecord is one fact-check attempt and its lookup payload.
type FactCheckRecord struct {
	Statement string           `json:"statement"`
	Turn      int              `json:"turn"`
	Results   search.FactCheck `json:"results"`
}

// Ranking is one entry of the final standings.
type Ranking struct {
	Name               string  `json:"name"`
	Score              float64 `json:"score"`
	ArgumentsEvaluated int     `json:"arguments_evaluated"`
}

// Results are the final debate standings.
type Results struct {
	Topic       string    `json:"topic"`
	Winner      string    `json:"winner"`
	WinnerScore float64   `json:"winner_score"`
	Rankings    []Ranking `json:"rankings"`
}

// Moderator introduces, transitions, summarizes, scores, fact-checks,
// and concludes a debate. It owns the speaker score table.
type Moderator struct {
	Base

	ModerationStyle string

	factChecking bool
	search       search.Client

	topic    string
	rules    Rules
	debaters []DebaterInfo

	// scores is insertion-ordered: the documented winner tie-break is
	// "first debater added to the table".
	scores     *orderedmap.OrderedMap[string, *SpeakerScore]
	factChecks []FactCheckRecord

	rng *rand.Rand
}

func NewModerator(p Persona, factChecking bool, searchClient search.Client, cfg LLMConfig, deps Deps) *Moderator {
	style := p.ModerationStyle
	if style == "" {
		style = "neutral"
	}
	if factChecking && (searchClient == nil || !searchClient.Configured()) {
		log.Printf("[agent] fact checking requested but search is not configured, disabling")
		factChecking = false
	}
	return &Moderator{
		Base:            newBase("moderator", p, cfg, deps),
		ModerationStyle: style,
		factChecking:    factChecking,
		search:          searchClient,
		scores:          orderedmap.NewOrderedMap[string, *SpeakerScore](),
		rng:             rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// FactChecking reports whether fact-checking is active.
func (m *Moderator) FactChecking() bool {
	return m.factChecking
}

// SetDebateConfig fixes the topic, roster, and rules, and initializes
// the score table in roster order.
func (m *Moderator) SetDebateConfig(topic string, debaters []DebaterInfo, rules Rules) {
	m.topic = topic
	m.debaters = debaters
	m.rules = rules

	m.scores = orderedmap.NewOrderedMap[string, *SpeakerScore]()
	for i, d := range debaters {
		name := d.Name
		if name == "" {
			name = fmt.Sprintf("Debater %d", i+1)
		}
		m.scores.Set(name, &SpeakerScore{})
	}
	log.Printf("[agent] set debate configuration for moderator %s (%d debaters)", m.Name, len(debaters))
}

func (m *Moderator) moderationContext(messageType string) prompt.Context {
	return prompt.Context{
		MessageType:     messageType,
		Topic:           m.topic,
		ModerationStyle: m.ModerationStyle,
	}
}

// Introduction opens the debate.
func (m *Moderator) Introduction(ctx context.Context) string {
	pc := m.moderationContext(TypeIntroduction)
	for _, d := range m.debaters {
		pc.Debaters = append(pc.Debaters, d.Name)
	}
	pc.Rules = renderRules(m.rules)
	return m.GenerateMessage(ctx, pc)
}

// Transition hands the floor from one debater to the next.
func (m *Moderator) Transition(ctx context.Context, currentSpeaker, nextSpeaker string, turn, totalTurns int) string {
	pc := m.moderationContext(TypeTransition)
	pc.CurrentSpeaker = currentSpeaker
	pc.NextSpeaker = nextSpeaker
	pc.TurnNumber = turn
	pc.TotalTurns = totalTurns
	return m.GenerateMessage(ctx, pc)
}

// Summary recaps a finished turn from the transcript overview.
func (m *Moderator) Summary(ctx context.Context, turn int, transcriptSummary string) string {
	pc := m.moderationContext(TypeSummary)
	pc.TurnNumber = turn
	pc.TranscriptSummary = transcriptSummary
	return m.GenerateMessage(ctx, pc)
}

// Conclusion closes the debate, naming the winner and the scores.
func (m *Moderator) Conclusion(ctx context.Context) string {
	results := m.Results()

	var lines []string
	for name, score := range m.scores.AllFromFront() {
		lines = append(lines, fmt.Sprintf("- %s: %.1f out of 10", name, score.Total))
	}

	pc := m.moderationContext(TypeConclusion)
	pc.ScoreText = strings.Join(lines, "\n")
	pc.Winner = results.Winner
	pc.WinnerScore = results.WinnerScore
	return m.GenerateMessage(ctx, pc)
}

// Intervention addresses problematic behavior mid-debate.
func (m *Moderator) Intervention(ctx context.Context, issue string) string {
	pc := m.moderationContext(TypeIntervention)
	pc.Issue = issue
	return m.GenerateMessage(ctx, pc)
}

// GenerateFactCheck fact-checks a statement. It returns an empty
// string when fact-checking is disabled or no search capability is
// configured; the debate proceeds either way.
func (m *Moderator) GenerateFactCheck(ctx context.Context, statement string, turn int) string {
	if !m.factChecking || m.search == nil || !m.search.Configured() {
		return ""
	}

	result := m.search.FactCheckStatement(ctx, statement)

	m.factChecks = append(m.factChecks, FactCheckRecord{
		Statement: statement,
		Turn:      turn,
		Results:   result,
	})

	if result.Err != "" && len(result.Sources) == 0 {
		log.Printf("[agent] fact check error: %s", result.Err)
		return fmt.Sprintf("I attempted to fact check this statement, but encountered an error: %s", result.Err)
	}
	if len(result.Sources) == 0 {
		return "I attempted to fact check this statement, but couldn't find relevant information."
	}

	var sb strings.Builder
	for _, src := range result.Sources {
		fmt.Fprintf(&sb, "Source: %s\nURL: %s\nContent: %s\n\n", src.Title, src.URL, src.Content)
	}

	pc := m.moderationContext(TypeFactCheck)
	pc.Statement = statement
	pc.TurnNumber = turn
	pc.Sources = strings.TrimRight(sb.String(), "\n")
	pc.NumSources = len(result.Sources)
	return m.GenerateMessage(ctx, pc)
}

// ResearchContext builds sourced background material for a topic, or
// an empty string when search is not configured.
func (m *Moderator) ResearchContext(ctx context.Context, topic string) string {
	if m.search == nil || !m.search.Configured() {
		log.Printf("[agent] search not configured, cannot generate research context")
		return ""
	}
	return m.search.ResearchContext(ctx, topic, 3)
}

// FactChecks returns the fact-check log.
func (m *Moderator) FactChecks() []FactCheckRecord {
	out := make([]FactCheckRecord, len(m.factChecks))
	copy(out, m.factChecks)
	return out
}

// SpeakerScores returns a snapshot of the score table in insertion
// order.
func (m *Moderator) SpeakerScores() map[string]SpeakerScore {
	out := make(map[string]SpeakerScore, m.scores.Len())
	for name, score := range m.scores.AllFromFront() {
		out[name] = *score
	}
	return out
}

// Results determines the winner and the ranked standings. Exact score
// ties resolve to the speaker inserted into the table first; rankings
// are sorted descending by total with stable order for ties.
func (m *Moderator) Results() Results {
	var (
		winner      string
		winnerScore float64
		first       = true
	)
	rankings := make([]Ranking, 0, m.scores.Len())

	for name, score := range m.scores.AllFromFront() {
		if first || score.Total > winnerScore {
			winner = name
			winnerScore = score.Total
			first = false
		}
		rankings = append(rankings, Ranking{
			Name:               name,
			Score:              score.Total,
			ArgumentsEvaluated: len(score.Arguments),
		})
	}

	sort.SliceStable(rankings, func(i, j int) bool {
		return rankings[i].Score > rankings[j].Score
	})

	return Results{
		Topic:       m.topic,
		Winner:      winner,
		WinnerScore: winnerScore,
		Rankings:    rankings,
	}
}

func renderRules(r Rules) string {
	format := r.Format
	if format == "" {
		format = "structured"
	}
	interruptions := "not allowed"
	if r.InterruptionsAllowed {
		interruptions = "allowed"
	}
	criteria := "clarity, evidence, persuasiveness"
	if len(r.ScoringCriteria) > 0 {
		criteria = strings.Join(r.ScoringCriteria, ", ")
	}
	return fmt.Sprintf("%s format, %d rounds, %ds per round, scored on %s, interruptions %s",
		format, r.MaxRounds, r.RoundTime, criteria, interruptions)
}
