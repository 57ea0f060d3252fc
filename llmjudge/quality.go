package llmjudge

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/datar-psa/mtdetect/api"
)

// QualityOptions configures the translation Quality scorer
type QualityOptions struct {
	// Name is reported in Score.Name (default "TranslationQuality")
	Name string
	// UseSource shows the source sentence to the judge
	UseSource bool
	// FreeForm asks for chain-of-thought text ending in "SCORE: X"
	// instead of a structured JSON answer
	FreeForm bool
}

// Quality returns a judge that rates a translation against its reference
// on a 0-100 scale, reported normalized to [0,1]. It is both a per-record
// Scorer and a batch Regressor.
func Quality(llm api.LLMGenerator, opts QualityOptions) *QualityJudge {
	if opts.Name == "" {
		opts.Name = "TranslationQuality"
	}
	return &QualityJudge{llm: llm, opts: opts}
}

// QualityJudge is the scorer returned by Quality.
type QualityJudge struct {
	llm  api.LLMGenerator
	opts QualityOptions
}

var (
	_ api.Scorer    = (*QualityJudge)(nil)
	_ api.Regressor = (*QualityJudge)(nil)
)

const qualityPromptTemplate = `You are evaluating the quality of a machine translation.
%s
Reference Translation: %s
Candidate Translation: %s

Compare the candidate with the reference. Consider meaning preservation,
fluency and terminology; ignore differences in wording that keep the meaning.

Rate the candidate from 0 to 100, where:
- 0 = unrelated or meaningless
- 50 = the main idea survives with serious errors
- 100 = as good as the reference`

const freeFormSuffix = `

Think step by step, then end your response with: "SCORE: X" where X is a number from 0 to 100.`

var qualitySchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"reasoning": map[string]interface{}{"type": "string"},
		"score": map[string]interface{}{
			"type":    "number",
			"minimum": 0,
			"maximum": 100,
		},
	},
	"required": []string{"reasoning", "score"},
}

func (s *QualityJudge) Score(ctx context.Context, in api.ScoreInputs) api.Score {
	result := api.Score{
		Name:     s.opts.Name,
		Metadata: make(map[string]any),
	}

	if in.Expected == "" {
		result.Error = api.ErrNoExpectedValue
		result.Score = 0
		return result
	}

	if s.llm == nil {
		result.Error = fmt.Errorf("LLM generator is required")
		result.Score = 0
		return result
	}

	source := ""
	if s.opts.UseSource && in.Input != "" {
		source = "\nSource Sentence: " + in.Input
	}
	prompt := fmt.Sprintf(qualityPromptTemplate, source, in.Expected, in.Output)

	var (
		score     float64
		reasoning string
	)
	if s.opts.FreeForm {
		response, err := s.llm.Generate(ctx, prompt+freeFormSuffix)
		if err != nil {
			result.Error = fmt.Errorf("%w: %v", api.ErrLLMGenerationFailed, err)
			return result
		}
		result.Metadata["raw_response"] = response
		score, reasoning, err = extractScore(response)
		if err != nil {
			result.Error = fmt.Errorf("failed to extract score: %w", err)
			return result
		}
	} else {
		response, err := s.llm.StructuredGenerate(ctx, prompt, qualitySchema)
		if err != nil {
			result.Error = fmt.Errorf("%w: %v", api.ErrLLMGenerationFailed, err)
			return result
		}
		score, reasoning, err = parseStructured(response)
		if err != nil {
			result.Error = err
			return result
		}
	}

	// Normalize score from 0-100 to 0-1
	result.Score = score / 100
	result.Metadata["raw_score"] = score
	result.Metadata["reasoning"] = reasoning
	return result
}

// Predict implements api.Regressor by judging each input in turn. The
// first failure aborts the batch.
func (s *QualityJudge) Predict(ctx context.Context, inputs []api.ScoreInputs) ([]float64, error) {
	out := make([]float64, len(inputs))
	for i, in := range inputs {
		res := s.Score(ctx, in)
		if res.Error != nil {
			return nil, fmt.Errorf("input %d: %w", i, res.Error)
		}
		out[i] = res.Score
	}
	return out, nil
}

func parseStructured(response map[string]interface{}) (float64, string, error) {
	raw, ok := response["score"]
	if !ok {
		return 0, "", fmt.Errorf("score missing from response")
	}
	var score float64
	switch v := raw.(type) {
	case float64:
		score = v
	case int:
		score = float64(v)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, "", fmt.Errorf("invalid score value: %w", err)
		}
		score = f
	default:
		return 0, "", fmt.Errorf("score has type %T", raw)
	}
	if math.IsNaN(score) || score < 0 || score > 100 {
		return 0, "", fmt.Errorf("score out of range: %v", score)
	}
	reasoning, _ := response["reasoning"].(string)
	return score, reasoning, nil
}

var scoreRegex = regexp.MustCompile(`SCORE:\s*(\d+(?:\.\d+)?)`)

// extractScore extracts the score from the LLM response
// Returns the score (0-100), reasoning, and any error
func extractScore(response string) (float64, string, error) {
	matches := scoreRegex.FindStringSubmatch(response)

	if len(matches) < 2 {
		return 0, "", fmt.Errorf("could not find SCORE pattern in response")
	}

	score, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, "", fmt.Errorf("invalid score value: %w", err)
	}

	if score < 0 || score > 100 {
		return 0, "", fmt.Errorf("score out of range: %v", score)
	}

	// Extract reasoning (everything before the SCORE line)
	scoreIndex := strings.Index(response, matches[0])
	reasoning := strings.TrimSpace(response[:scoreIndex])

	return score, reasoning, nil
}
