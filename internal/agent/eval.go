package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"math/rand"
	"regexp"
	"strconv"
	"strings"

	"github.com/stellarlinkco/rostrum/internal/llm"
	"github.com/tidwall/gjson"
)

// Evaluation is the moderator's scored assessment of one utterance.
// Score and all criteria are always valid numbers in [1,10]: a
// malformed upstream value is corrected or replaced, never stored.
type Evaluation struct {
	Speaker        string             `json:"speaker"`
	Turn           int                `json:"turn"`
	Score          float64            `json:"score"`
	CriteriaScores map[string]float64 `json:"criteria_scores"`
	Strengths      []string           `json:"strengths"`
	Weaknesses     []string           `json:"weaknesses"`
	Reasoning      string             `json:"reasoning"`
}

const (
	defaultCriterionScore = 7.0
	defaultSpeakerTotal   = 7.5

	evalTemperature = 0.2
	evalMaxTokens   = 1000
)

var criteriaNames = []string{"clarity", "evidence", "reasoning", "persuasiveness", "relevance"}

const evalSystemPrompt = "You are an expert debate evaluator who analyzes arguments based on clarity, evidence, reasoning, persuasiveness, and relevance. Always respond with numeric scores between 1-10."

const evalPromptFormat = `You are an expert debate evaluator assessing an argument in a debate on the topic: "%s"
Please evaluate the following argument made by %s in turn %d of the debate.

ARGUMENT:
%s

EVALUATION CRITERIA:
- Clarity (1-10): How clear and understandable the argument is
- Evidence (1-10): The quality and relevance of evidence and examples provided
- Reasoning (1-10): The logical coherence and soundness of reasoning
- Persuasiveness (1-10): How convincing and compelling the overall argument is
- Relevance (1-10): How relevant the argument is to the debate topic

For each criterion, provide a score from 1-10 (MUST be a numeric value) and a
brief explanation. Then provide 2-3 key strengths, 1-2 key weaknesses, an
overall score from 1-10, and a brief reasoning for the overall evaluation.

Your response must be in the following JSON format:
{
  "criteria": {
    "clarity": {"score": <score>, "explanation": "<explanation>"},
    "evidence": {"score": <score>, "explanation": "<explanation>"},
    "reasoning": {"score": <score>, "explanation": "<explanation>"},
    "persuasiveness": {"score": <score>, "explanation": "<explanation>"},
    "relevance": {"score": <score>, "explanation": "<explanation>"}
  },
  "strengths": ["<strength1>", "<strength2>"],
  "weaknesses": ["<weakness1>"],
  "overall_score": <overall_score>,
  "reasoning": "<reasoning>"
}

IMPORTANT: All scores MUST be numeric values between 1 and 10, not strings.`

// EvaluateArgument scores one utterance. It is total: every failure
// path (service error, unparseable or structurally invalid response)
// falls back to a synthetic evaluation, so downstream scoring never
// sees a missing or zero score. The result is stored in the speaker's
// score list and the running total recomputed.
func (m *Moderator) EvaluateArgument(ctx context.Context, speaker, argument string, turn int) Evaluation {
	evaluation := m.requestEvaluation(ctx, speaker, argument, turn)

	// Last-line guard: never store a non-positive or non-numeric score.
	if evaluation.Score <= 0 || math.IsNaN(evaluation.Score) {
		log.Printf("[agent] invalid evaluation score %v for %s, using synthetic", evaluation.Score, speaker)
		evaluation = m.syntheticEvaluation(speaker, turn)
	}

	m.recordEvaluation(speaker, evaluation)
	return evaluation
}

func (m *Moderator) requestEvaluation(ctx context.Context, speaker, argument string, turn int) Evaluation {
	response, err := m.deps.LLM.Complete(ctx, llm.Request{
		System:      evalSystemPrompt,
		Prompt:      fmt.Sprintf(evalPromptFormat, m.topic, speaker, turn, argument),
		Model:       m.LLMConfig.Model,
		Temperature: evalTemperature,
		MaxTokens:   evalMaxTokens,
		TopP:        m.LLMConfig.TopP,
	})
	if err != nil {
		log.Printf("[agent] evaluation request failed for %s: %v", speaker, err)
		return m.syntheticEvaluation(speaker, turn)
	}

	raw := extractJSON(response)
	if raw == "" {
		log.Printf("[agent] failed to parse evaluation response for %s, using synthetic", speaker)
		return m.syntheticEvaluation(speaker, turn)
	}

	parsed := gjson.Parse(raw)
	if !parsed.Get("criteria").IsObject() {
		log.Printf("[agent] evaluation response for %s has no criteria object, using synthetic", speaker)
		return m.syntheticEvaluation(speaker, turn)
	}

	criteriaScores := make(map[string]float64, len(criteriaNames))
	for _, name := range criteriaNames {
		value := parsed.Get("criteria." + name + ".score")
		score, ok := coerceScore(value)
		if !ok {
			log.Printf("[agent] invalid %s score for %s, using default", name, speaker)
			score = defaultCriterionScore
		}
		criteriaScores[name] = round1(clampScore(score))
	}

	overall, ok := coerceScore(parsed.Get("overall_score"))
	if !ok {
		sum := 0.0
		for _, v := range criteriaScores {
			sum += v
		}
		overall = sum / float64(len(criteriaScores))
	}
	overall = round1(clampScore(overall))

	strengths := stringList(parsed.Get("strengths"))
	if len(strengths) == 0 {
		strengths = []string{"Good argumentation"}
	}
	weaknesses := stringList(parsed.Get("weaknesses"))
	if len(weaknesses) == 0 {
		weaknesses = []string{"Could be improved"}
	}
	reasoning := parsed.Get("reasoning").String()
	if reasoning == "" {
		reasoning = "This is an automated evaluation."
	}

	log.Printf("[agent] evaluated argument by %s with score %.1f", speaker, overall)
	return Evaluation{
		Speaker:        speaker,
		Turn:           turn,
		Score:          overall,
		CriteriaScores: criteriaScores,
		Strengths:      strengths,
		Weaknesses:     weaknesses,
		Reasoning:      reasoning,
	}
}

// recordEvaluation appends the evaluation and recomputes the speaker's
// running total as the mean of all positive numeric scores; with no
// valid scores the total is 7.5. Update failures are swallowed so a
// scoring hiccup cannot leave a speaker at zero.
func (m *Moderator) recordEvaluation(speaker string, evaluation Evaluation) {
	entry, ok := m.scores.Get(speaker)
	if !ok {
		log.Printf("[agent] speaker %s not in score table, evaluation not recorded", speaker)
		return
	}

	entry.Arguments = append(entry.Arguments, evaluation)

	sum := 0.0
	count := 0
	for _, arg := range entry.Arguments {
		if arg.Score > 0 && !math.IsNaN(arg.Score) {
			sum += arg.Score
			count++
		}
	}
	if count > 0 {
		entry.Total = round1(sum / float64(count))
	} else {
		entry.Total = defaultSpeakerTotal
	}
}

var syntheticStrengths = []string{
	"Clear argumentation",
	"Good use of evidence",
	"Well-structured points",
	"Effectively addresses counterarguments",
	"Strong opening statement",
	"Uses persuasive language",
	"Appeals to both emotions and logic",
	"Provides strong examples",
	"Clear stance on the topic",
	"Connects well with audience",
}

var syntheticWeaknesses = []string{
	"Could be more concise",
	"More specific examples needed",
	"Some logical fallacies present",
	"Counterarguments not fully addressed",
	"Overreliance on emotional appeals",
	"Sources could be stronger",
	"Occasional repetition of points",
	"Some tangential arguments",
	"Connection to topic sometimes unclear",
	"Conclusion could be stronger",
}

var syntheticReasonings = []string{
	"This evaluation is based on %s's argument structure and evidence presentation.",
	"The evaluation considers the persuasive techniques and logical flow of %s's arguments.",
	"This assessment reflects the clarity, evidence, and persuasiveness of %s's presented argument.",
	"The scoring is based on how effectively %s addressed the debate topic and opponents' points.",
	"This evaluation assesses the strength of reasoning and evidence in %s's presentation.",
}

// syntheticEvaluation produces a randomized but well-formed fallback
// record when real scoring is unavailable or unparseable.
func (m *Moderator) syntheticEvaluation(speaker string, turn int) Evaluation {
	criteriaScores := make(map[string]float64, len(criteriaNames))
	for _, name := range criteriaNames {
		criteriaScores[name] = round1(4.0 + m.rng.Float64()*5.5)
	}

	return Evaluation{
		Speaker:        speaker,
		Turn:           turn,
		Score:          round1(5.0 + m.rng.Float64()*4.5),
		CriteriaScores: criteriaScores,
		Strengths:      sampleStrings(m.rng, syntheticStrengths, 3),
		Weaknesses:     sampleStrings(m.rng, syntheticWeaknesses, 2),
		Reasoning:      fmt.Sprintf(syntheticReasonings[m.rng.Intn(len(syntheticReasonings))], speaker),
	}
}

func sampleStrings(rng *rand.Rand, pool []string, n int) []string {
	if n > len(pool) {
		n = len(pool)
	}
	out := make([]string, 0, n)
	for _, idx := range rng.Perm(len(pool))[:n] {
		out = append(out, pool[idx])
	}
	return out
}

// coerceScore accepts numeric or numeric-string values.
func coerceScore(value gjson.Result) (float64, bool) {
	switch value.Type {
	case gjson.Number:
		return value.Float(), true
	case gjson.String:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value.Str), 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func stringList(value gjson.Result) []string {
	if !value.IsArray() {
		return nil
	}
	var out []string
	for _, item := range value.Array() {
		if s := item.String(); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func clampScore(v float64) float64 {
	return math.Min(math.Max(v, 1.0), 10.0)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// extractJSON pulls an embedded JSON object out of a free-text blob:
// strip code fences, cut from the first '{' to the last '}', and try a
// strict parse; on failure retry with a regex extraction of the
// outermost-brace span. Returns "" when nothing parses.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "```") {
		lines := strings.Split(s, "\n")
		if len(lines) > 1 {
			if strings.TrimSpace(lines[len(lines)-1]) == "```" {
				lines = lines[1 : len(lines)-1]
			} else {
				lines = lines[1:]
			}
			s = strings.Join(lines, "\n")
		}
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return ""
	}
	candidate := s[start : end+1]
	if json.Valid([]byte(candidate)) {
		return candidate
	}

	if match := jsonObjectPattern.FindString(s); match != "" && json.Valid([]byte(match)) {
		return match
	}
	return ""
}
