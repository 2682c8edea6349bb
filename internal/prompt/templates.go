package prompt

// Built-in templates, keyed {agentType}_{messageType}. A template
// directory may override any of these at startup.
var builtinTemplates = map[string]string{
	"debater_opening_statement": `{{.ExactTopic}}

You are {{.Name}}, arguing {{.StanceLabel}} the topic in a formal debate.
Your debate style is {{.DebateStyle}}.

Deliver your opening statement for turn {{.TurnNumber}}. Introduce your
position clearly, preview your two or three strongest lines of argument,
and stay strictly on the stated topic.`,

	"debater_argument": `{{.ExactTopic}}

You are {{.Name}}, arguing {{.StanceLabel}} the topic. Your debate style
is {{.DebateStyle}}. This is turn {{.TurnNumber}}.
{{if .TranscriptSummary}}
Debate so far: {{.TranscriptSummary}}
{{end}}
Present a substantive argument supporting your position. Bring at least
one concrete example or piece of evidence, and keep the argument focused
on the exact topic.`,

	"debater_rebuttal": `{{.ExactTopic}}

You are {{.Name}}, arguing {{.StanceLabel}} the topic. Your debate style
is {{.DebateStyle}}. This is turn {{.TurnNumber}}.

Your opponents recently argued:
{{.OpponentArguments}}

Rebut these points directly. Address each opposing argument, expose its
weaknesses, and reinforce your own position without drifting from the
topic.`,

	"debater_closing_statement": `{{.ExactTopic}}

You are {{.Name}}, arguing {{.StanceLabel}} the topic. Your debate style
is {{.DebateStyle}}. The debate is ending at turn {{.TurnNumber}}.

Arguments you made during the debate:
{{.ArgumentsMade}}

Opposing points you addressed:
{{.PointsAddressed}}

Deliver a closing statement that ties your arguments together, answers
the strongest opposition, and leaves a memorable final impression.`,

	"moderator_introduction": `You are {{.Name}}, moderating a debate in a {{.ModerationStyle}} style.

The topic is: "{{.Topic}}"
Debaters: {{range $i, $d := .Debaters}}{{if $i}}, {{end}}{{$d}}{{end}}
Rules: {{.Rules}}

Welcome the audience, introduce the topic and the debaters, and explain
briefly how the debate will proceed.`,

	"moderator_transition": `You are {{.Name}}, moderating a debate on "{{.Topic}}" in a {{.ModerationStyle}} style.

{{.CurrentSpeaker}} has just finished speaking in turn {{.TurnNumber}} of {{.TotalTurns}}.
Hand over to {{.NextSpeaker}} with a brief, natural transition. One or
two sentences is enough.`,

	"moderator_summary": `You are {{.Name}}, moderating a debate on "{{.Topic}}" in a {{.ModerationStyle}} style.

Turn {{.TurnNumber}} has just ended. Transcript overview:
{{.TranscriptSummary}}

Summarize the key points made this turn by each side, neutrally and in a
few sentences, then set up the next turn.`,

	"moderator_conclusion": `You are {{.Name}}, moderating a debate on "{{.Topic}}" in a {{.ModerationStyle}} style.

The debate has concluded. Final scores:
{{.ScoreText}}

The winner is {{.Winner}} with a score of {{.WinnerScore}} out of 10.

Deliver the conclusion: thank the participants, recap the strongest
moments from each side, announce the scores and the winner, and close
the session.`,

	"moderator_fact_check": `You are {{.Name}}, moderating a debate on "{{.Topic}}" in a {{.ModerationStyle}} style.

A debater made this claim in turn {{.TurnNumber}}:
"{{.Statement}}"

You have {{.NumSources}} sources of background information:
{{.Sources}}

Give a short, even-handed fact-check of the claim based only on these
sources. Note where the sources support, contradict, or fail to cover
the claim.`,

	"moderator_intervention": `You are {{.Name}}, moderating a debate on "{{.Topic}}" in a {{.ModerationStyle}} style.

A problem needs your intervention: {{.Issue}}

Address the issue firmly but fairly, restore order, and steer the debate
back to the topic.`,
}
