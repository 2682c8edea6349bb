package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/stellarlinkco/rostrum/internal/prompt"
)

// Message types a debater produces.
const (
	TypeOpeningStatement = "opening_statement"
	TypeArgument         = "argument"
	TypeRebuttal         = "rebuttal"
	TypeClosingStatement = "closing_statement"
)

// stanceLabels maps stance tags to the phrasing used in prompts.
// Unknown stances pass through verbatim.
var stanceLabels = map[string]string{
	"for":     "in favor of",
	"against": "opposed to",
	"neutral": "neutral on",
	"pro":     "in favor of",
	"con":     "opposed to",
}

// ArgumentRecord is one argument a debater has made.
type ArgumentRecord struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	Topic   string `json:"topic"`
	Turn    int    `json:"turn,omitempty"`
}

// OpponentArgument is an opposing transcript entry a debater rebuts.
type OpponentArgument struct {
	Speaker string `json:"speaker"`
	Content string `json:"content"`
	Type    string `json:"type,omitempty"`
	Turn    int    `json:"turn"`
}

// DebaterStats summarizes a debater's activity for the session record.
type DebaterStats struct {
	Name            string `json:"name"`
	Stance          string `json:"stance"`
	DebateStyle     string `json:"debate_style"`
	ArgumentsCount  int    `json:"arguments_count"`
	RebuttalsCount  int    `json:"rebuttals_count"`
	PointsAddressed int    `json:"points_addressed"`
}

// Debater is an agent with an assigned stance on the debate topic.
type Debater struct {
	Base

	Stance      string
	DebateStyle string

	// currentTopic is pinned on the first generation call and never
	// changes afterwards, even if callers pass a different topic.
	currentTopic string

	argumentsMade []ArgumentRecord
	addressed     []OpponentArgument
}

func NewDebater(p Persona, stance string, cfg LLMConfig, deps Deps) *Debater {
	if stance == "" {
		stance = p.Stance
	}
	style := p.DebateStyle
	if style == "" {
		style = "logical"
	}
	return &Debater{
		Base:        newBase("debater", p, cfg, deps),
		Stance:      stance,
		DebateStyle: style,
	}
}

// StanceLabel returns a human-readable phrasing of the stance.
func (d *Debater) StanceLabel() string {
	if label, ok := stanceLabels[strings.ToLower(d.Stance)]; ok {
		return label
	}
	return d.Stance
}

// Topic returns the pinned topic, or empty before the first call.
func (d *Debater) Topic() string {
	return d.currentTopic
}

func (d *Debater) pinTopic(topic string) string {
	if d.currentTopic == "" {
		d.currentTopic = topic
	}
	return d.currentTopic
}

func (d *Debater) debateContext(messageType, topic string, turn int) prompt.Context {
	return prompt.Context{
		MessageType: messageType,
		Topic:       topic,
		ExactTopic:  fmt.Sprintf("EXACT DEBATE TOPIC: '%s'", topic),
		Stance:      d.Stance,
		StanceLabel: d.StanceLabel(),
		DebateStyle: d.DebateStyle,
		TurnNumber:  turn,
	}
}

// OpeningStatement pins the topic and produces the debater's opening.
func (d *Debater) OpeningStatement(ctx context.Context, topic string) string {
	topic = d.pinTopic(topic)

	statement := d.GenerateMessage(ctx, d.debateContext(TypeOpeningStatement, topic, 1))

	d.argumentsMade = append(d.argumentsMade, ArgumentRecord{
		Type:    "opening",
		Content: statement,
		Topic:   topic,
	})
	return statement
}

// Argument produces a general argument, used on turn 1 or whenever no
// opponent arguments are available to rebut.
func (d *Debater) Argument(ctx context.Context, topic string, turn int, transcriptSummary string) string {
	topic = d.pinTopic(topic)

	pc := d.debateContext(TypeArgument, topic, turn)
	pc.TranscriptSummary = transcriptSummary

	argument := d.GenerateMessage(ctx, pc)

	d.argumentsMade = append(d.argumentsMade, ArgumentRecord{
		Type:    TypeArgument,
		Content: argument,
		Topic:   topic,
		Turn:    turn,
	})
	return argument
}

// Rebuttal addresses the supplied opponent arguments and records each
// of them with speaker and turn attribution.
func (d *Debater) Rebuttal(ctx context.Context, topic string, turn int, opponents []OpponentArgument) string {
	topic = d.pinTopic(topic)

	pc := d.debateContext(TypeRebuttal, topic, turn)
	pc.OpponentArguments = renderOpponentArguments(opponents)

	rebuttal := d.GenerateMessage(ctx, pc)

	d.argumentsMade = append(d.argumentsMade, ArgumentRecord{
		Type:    TypeRebuttal,
		Content: rebuttal,
		Topic:   topic,
		Turn:    turn,
	})
	for _, arg := range opponents {
		speaker := arg.Speaker
		if speaker == "" {
			speaker = "Unknown"
		}
		d.addressed = append(d.addressed, OpponentArgument{
			Speaker: speaker,
			Content: arg.Content,
			Turn:    turn,
		})
	}
	return rebuttal
}

// ClosingStatement produces the debater's closing, carrying its full
// argument history and the opposing points it addressed.
func (d *Debater) ClosingStatement(ctx context.Context, topic string, turn int) string {
	topic = d.pinTopic(topic)

	pc := d.debateContext(TypeClosingStatement, topic, turn)
	pc.ArgumentsMade = renderArgumentsMade(d.argumentsMade)
	pc.PointsAddressed = renderPointsAddressed(d.addressed)

	statement := d.GenerateMessage(ctx, pc)

	d.argumentsMade = append(d.argumentsMade, ArgumentRecord{
		Type:    "closing",
		Content: statement,
		Topic:   topic,
		Turn:    turn,
	})
	return statement
}

// ArgumentsMade returns the debater's argument records in order.
func (d *Debater) ArgumentsMade() []ArgumentRecord {
	out := make([]ArgumentRecord, len(d.argumentsMade))
	copy(out, d.argumentsMade)
	return out
}

// PointsAddressed returns the opponent arguments this debater rebutted.
func (d *Debater) PointsAddressed() []OpponentArgument {
	out := make([]OpponentArgument, len(d.addressed))
	copy(out, d.addressed)
	return out
}

// Stats summarizes the debater's activity.
func (d *Debater) Stats() DebaterStats {
	rebuttals := 0
	for _, a := range d.argumentsMade {
		if a.Type == TypeRebuttal {
			rebuttals++
		}
	}
	return DebaterStats{
		Name:            d.Name,
		Stance:          d.Stance,
		DebateStyle:     d.DebateStyle,
		ArgumentsCount:  len(d.argumentsMade),
		RebuttalsCount:  rebuttals,
		PointsAddressed: len(d.addressed),
	}
}

func renderOpponentArguments(opponents []OpponentArgument) string {
	if len(opponents) == 0 {
		return "(none)"
	}
	var sb strings.Builder
	for i, arg := range opponents {
		speaker := arg.Speaker
		if speaker == "" {
			speaker = "Unknown"
		}
		fmt.Fprintf(&sb, "%d. %s (turn %d): %s\n", i+1, speaker, arg.Turn, arg.Content)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func renderArgumentsMade(args []ArgumentRecord) string {
	if len(args) == 0 {
		return "(none)"
	}
	var sb strings.Builder
	for _, a := range args {
		fmt.Fprintf(&sb, "- [%s] %s\n", a.Type, a.Content)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func renderPointsAddressed(points []OpponentArgument) string {
	if len(points) == 0 {
		return "(none)"
	}
	var sb strings.Builder
	for _, p := range points {
		fmt.Fprintf(&sb, "- %s (turn %d): %s\n", p.Speaker, p.Turn, p.Content)
	}
	return strings.TrimRight(sb.String(), "\n")
}
