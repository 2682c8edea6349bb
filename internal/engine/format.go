package engine

import (
	"fmt"
	"strings"
)

// Rendering formats for transcripts and session summaries.
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
)

// FormatTranscript renders a transcript for display or export.
func FormatTranscript(transcript []TranscriptEntry, format string) string {
	if len(transcript) == 0 {
		return "No transcript available."
	}

	var blocks []string
	for _, entry := range transcript {
		speaker := entry.Speaker
		if speaker == "" {
			speaker = "Unknown"
		}
		label := speaker
		if speaker == "moderator" {
			label = speaker + " (Moderator)"
		}

		switch format {
		case FormatMarkdown:
			blocks = append(blocks, fmt.Sprintf("**%s:**", label), entry.Content, "---")
		default:
			blocks = append(blocks, label+":", entry.Content, strings.Repeat("-", 40))
		}
	}
	return strings.Join(blocks, "\n\n")
}

// FormatSession renders a session summary: topic, status, turn
// progress, roster, scores, and winner.
func FormatSession(sess *Session, format string) string {
	if sess == nil {
		return "No summary available."
	}

	status := titleCase(strings.ReplaceAll(sess.Status, "_", " "))

	var lines []string
	switch format {
	case FormatMarkdown:
		lines = append(lines,
			fmt.Sprintf("# Debate Summary: %s", sess.Topic),
			fmt.Sprintf("**Status:** %s", status),
			fmt.Sprintf("**Turns:** %d/%d", sess.Turns, sess.MaxTurns),
			"",
			"## Debaters",
		)
		for _, d := range sess.Debaters {
			lines = append(lines, fmt.Sprintf("- **%s** (%s)", d.Name, d.Stance))
		}
		if sess.Results != nil && len(sess.Results.Rankings) > 0 {
			lines = append(lines, "", "## Scores", "| Debater | Score |", "| ------- | ----- |")
			for _, r := range sess.Results.Rankings {
				lines = append(lines, fmt.Sprintf("| %s | %.1f |", r.Name, r.Score))
			}
			if sess.Results.Winner != "" {
				lines = append(lines, "", fmt.Sprintf("**Winner:** %s", sess.Results.Winner))
			}
		}
	default:
		lines = append(lines,
			fmt.Sprintf("Debate Summary: %s", sess.Topic),
			fmt.Sprintf("Status: %s", status),
			fmt.Sprintf("Turns: %d/%d", sess.Turns, sess.MaxTurns),
			"",
			"Debaters:",
		)
		for _, d := range sess.Debaters {
			lines = append(lines, fmt.Sprintf("- %s (%s)", d.Name, d.Stance))
		}
		if sess.Results != nil && len(sess.Results.Rankings) > 0 {
			lines = append(lines, "", "Scores:")
			for _, r := range sess.Results.Rankings {
				lines = append(lines, fmt.Sprintf("%s: %.1f", r.Name, r.Score))
			}
			if sess.Results.Winner != "" {
				lines = append(lines, "", fmt.Sprintf("Winner: %s", sess.Results.Winner))
			}
		}
	}
	return strings.Join(lines, "\n")
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
