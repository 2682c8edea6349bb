package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
)

const wellFormedEval = `{
  "criteria": {
    "clarity": {"score": 8, "explanation": "clear"},
    "evidence": {"score": 7.5, "explanation": "solid"},
    "reasoning": {"score": 9, "explanation": "sound"},
    "persuasiveness": {"score": 6, "explanation": "decent"},
    "relevance": {"score": 8, "explanation": "on topic"}
  },
  "strengths": ["tight structure", "good sourcing"],
  "weaknesses": ["a bit long"],
  "overall_score": 7.7,
  "reasoning": "a strong showing"
}`

func newEvalModerator(t *testing.T, client *fakeLLM) *Moderator {
	t.Helper()
	m := newTestModerator(t, client, nil, false)
	m.SetDebateConfig("carbon taxes", []DebaterInfo{{Name: "Ada"}, {Name: "Ben"}}, Rules{})
	return m
}

func checkEvalRanges(t *testing.T, ev Evaluation) {
	t.Helper()
	if ev.Score < 1 || ev.Score > 10 {
		t.Errorf("score %v out of range", ev.Score)
	}
	if len(ev.CriteriaScores) != 5 {
		t.Errorf("criteria count = %d, want 5", len(ev.CriteriaScores))
	}
	for name, v := range ev.CriteriaScores {
		if v < 1 || v > 10 {
			t.Errorf("criterion %s = %v out of range", name, v)
		}
	}
	if len(ev.Strengths) == 0 || len(ev.Weaknesses) == 0 || ev.Reasoning == "" {
		t.Errorf("incomplete evaluation: %+v", ev)
	}
}

func TestEvaluateArgument_WellFormed(t *testing.T) {
	fake := &fakeLLM{responses: []string{wellFormedEval}}
	m := newEvalModerator(t, fake)

	ev := m.EvaluateArgument(context.Background(), "Ada", "my argument", 2)
	checkEvalRanges(t, ev)
	if ev.Speaker != "Ada" || ev.Turn != 2 {
		t.Errorf("attribution = %s/%d", ev.Speaker, ev.Turn)
	}
	if ev.Score != 7.7 {
		t.Errorf("score = %v, want 7.7", ev.Score)
	}
	if ev.CriteriaScores["evidence"] != 7.5 {
		t.Errorf("evidence = %v", ev.CriteriaScores["evidence"])
	}
	if ev.Reasoning != "a strong showing" {
		t.Errorf("reasoning = %q", ev.Reasoning)
	}

	// Evaluation prompt carries topic, speaker, and the argument.
	req := fake.lastRequest(t)
	for _, want := range []string{"carbon taxes", "Ada", "turn 2", "my argument"} {
		if !strings.Contains(req.Prompt, want) {
			t.Errorf("eval prompt missing %q", want)
		}
	}
}

func TestEvaluateArgument_FencedAndProse(t *testing.T) {
	fake := &fakeLLM{responses: []string{"Here is my evaluation:\n```json\n" + wellFormedEval + "\n```\nHope that helps!"}}
	m := newEvalModerator(t, fake)

	ev := m.EvaluateArgument(context.Background(), "Ada", "arg", 1)
	if ev.Score != 7.7 {
		t.Errorf("score = %v, want 7.7 from fenced payload", ev.Score)
	}
}

func TestEvaluateArgument_NumericStringsAndClamping(t *testing.T) {
	fake := &fakeLLM{responses: []string{`{
		"criteria": {
			"clarity": {"score": "8.5"},
			"evidence": {"score": " 7 "},
			"reasoning": {"score": 14},
			"persuasiveness": {"score": -2},
			"relevance": {"score": "high"}
		},
		"overall_score": "9.25"
	}`}}
	m := newEvalModerator(t, fake)

	ev := m.EvaluateArgument(context.Background(), "Ada", "arg", 1)
	if ev.CriteriaScores["clarity"] != 8.5 {
		t.Errorf("clarity = %v, want numeric-string coercion", ev.CriteriaScores["clarity"])
	}
	if ev.CriteriaScores["evidence"] != 7.0 {
		t.Errorf("evidence = %v", ev.CriteriaScores["evidence"])
	}
	if ev.CriteriaScores["reasoning"] != 10.0 {
		t.Errorf("reasoning = %v, want clamp to 10", ev.CriteriaScores["reasoning"])
	}
	if ev.CriteriaScores["persuasiveness"] != 1.0 {
		t.Errorf("persuasiveness = %v, want clamp to 1", ev.CriteriaScores["persuasiveness"])
	}
	if ev.CriteriaScores["relevance"] != 7.0 {
		t.Errorf("relevance = %v, want 7.0 default for non-numeric", ev.CriteriaScores["relevance"])
	}
	if ev.Score != 9.3 {
		t.Errorf("score = %v, want 9.3 (rounded to one decimal)", ev.Score)
	}
	if ev.Strengths[0] != "Good argumentation" || ev.Weaknesses[0] != "Could be improved" {
		t.Errorf("missing default strengths/weaknesses: %+v", ev)
	}
	if ev.Reasoning != "This is an automated evaluation." {
		t.Errorf("reasoning = %q", ev.Reasoning)
	}
}

func TestEvaluateArgument_MissingOverallUsesCriteriaMean(t *testing.T) {
	fake := &fakeLLM{responses: []string{`{
		"criteria": {
			"clarity": {"score": 6},
			"evidence": {"score": 6},
			"reasoning": {"score": 6},
			"persuasiveness": {"score": 8},
			"relevance": {"score": 8}
		}
	}`}}
	m := newEvalModerator(t, fake)

	ev := m.EvaluateArgument(context.Background(), "Ada", "arg", 1)
	if ev.Score != 6.8 {
		t.Errorf("score = %v, want criteria mean 6.8", ev.Score)
	}
}

func TestEvaluateArgument_SyntheticFallbacks(t *testing.T) {
	cases := []struct {
		name string
		fake *fakeLLM
	}{
		{"service error", &fakeLLM{err: errors.New("down")}},
		{"no json", &fakeLLM{responses: []string{"I think the argument was fine."}}},
		{"invalid json", &fakeLLM{responses: []string{"{not json}"}}},
		{"criteria not object", &fakeLLM{responses: []string{`{"criteria": "great", "overall_score": 8}`}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := newEvalModerator(t, tc.fake)
			ev := m.EvaluateArgument(context.Background(), "Ada", "arg", 1)
			checkEvalRanges(t, ev)
			if ev.Score < 5.0 || ev.Score > 9.5 {
				t.Errorf("synthetic score %v outside [5.0, 9.5]", ev.Score)
			}
			for name, v := range ev.CriteriaScores {
				if v < 4.0 || v > 9.5 {
					t.Errorf("synthetic criterion %s = %v outside [4.0, 9.5]", name, v)
				}
			}
			if len(ev.Strengths) != 3 || len(ev.Weaknesses) != 2 {
				t.Errorf("synthetic strengths/weaknesses = %d/%d, want 3/2", len(ev.Strengths), len(ev.Weaknesses))
			}
			if !strings.Contains(ev.Reasoning, "Ada") {
				t.Errorf("synthetic reasoning should name the speaker: %q", ev.Reasoning)
			}
		})
	}
}

func TestRecordEvaluation_RunningTotal(t *testing.T) {
	m := newEvalModerator(t, &fakeLLM{})

	m.recordEvaluation("Ada", Evaluation{Score: 8.0})
	m.recordEvaluation("Ada", Evaluation{Score: 7.0})
	entry, _ := m.scores.Get("Ada")
	if entry.Total != 7.5 {
		t.Errorf("total = %v, want mean 7.5", entry.Total)
	}
	if len(entry.Arguments) != 2 {
		t.Errorf("arguments = %d", len(entry.Arguments))
	}

	// An unknown speaker is dropped without disturbing the table.
	m.recordEvaluation("Zed", Evaluation{Score: 9.9})
	if m.scores.Len() != 2 {
		t.Errorf("score table grew unexpectedly")
	}
}

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"a": 1}`, `{"a": 1}`},
		{"surrounding prose", `Sure! {"a": 1} done.`, `{"a": 1}`},
		{"fenced", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"fence without close", "```\n{\"a\": 1}", `{"a": 1}`},
		{"no braces", "no json here", ""},
		{"unbalanced", `{"a": `, ""},
	}
	for _, tc := range cases {
		if got := extractJSON(tc.in); got != tc.want {
			t.Errorf("%s: extractJSON = %q, want %q", tc.name, got, tc.want)
		}
	}
}
