// Argus - Real-Time Security Log Monitoring and Analysis
// Copyright 2026 Argus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argus-monitor/argus

// Package analysis scores parsed events. The dispatcher calls an
// external AI scorer with timeout, retry, and a circuit breaker; when
// that path is exhausted the deterministic rule-based scorer takes over,
// so every event always ends up with a complete verdict.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/argus-monitor/argus/internal/models"
)

// Scorer produces a severity verdict for one event.
type Scorer interface {
	Score(ctx context.Context, ev *models.ParsedEvent) (*models.AnalysisResult, error)
}

const scoringSystemPrompt = `You are a security log analyst. Given one log event, respond with ONLY a JSON object, no prose and no code fences:
{"severity": <integer 1-10>, "explanation": "<one or two sentences>", "recommendations": ["<action>", ...]}
Severity 1-3 is routine, 4-6 notable, 7-8 serious, 9-10 critical. Recommendations are concrete operator actions, most urgent first.`

// aiScorer calls an OpenAI-compatible chat completion endpoint.
type aiScorer struct {
	client openai.Client
	model  string
}

// AIConfig configures the external scoring client.
type AIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// NewAIScorer builds the external scorer.
func NewAIScorer(cfg AIConfig) Scorer {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &aiScorer{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

// scoringVerdict is the wire shape the model is instructed to return.
type scoringVerdict struct {
	Severity        int      `json:"severity"`
	Explanation     string   `json:"explanation"`
	Recommendations []string `json:"recommendations"`
}

func (s *aiScorer) Score(ctx context.Context, ev *models.ParsedEvent) (*models.AnalysisResult, error) {
	prompt := fmt.Sprintf("Source: %s\nCategory: %s\nTimestamp: %s\nMessage: %s",
		ev.Source, ev.Category, ev.Timestamp.Format("2006-01-02T15:04:05Z07:00"), ev.Message)

	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: s.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(scoringSystemPrompt),
			openai.UserMessage(prompt),
		},
		MaxCompletionTokens: openai.Int(512),
		Temperature:         openai.Float(0),
	})
	if err != nil {
		return nil, fmt.Errorf("scoring call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("scoring call: empty response")
	}

	verdict, err := parseVerdict(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	if verdict.Explanation == "" {
		return nil, errors.New("scoring call: verdict missing explanation")
	}

	return models.NewAnalysisResult(ev.ID, verdict.Severity, verdict.Explanation,
		verdict.Recommendations, models.OriginAI), nil
}

// parseVerdict decodes the model output, tolerating stray code fences
// despite the prompt forbidding them.
func parseVerdict(content string) (*scoringVerdict, error) {
	content = strings.TrimSpace(content)
	if cut, ok := strings.CutPrefix(content, "```json"); ok {
		content = cut
	} else if cut, ok := strings.CutPrefix(content, "```"); ok {
		content = cut
	}
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")

	var v scoringVerdict
	if err := json.Unmarshal([]byte(content), &v); err != nil {
		return nil, fmt.Errorf("scoring call: malformed verdict: %w", err)
	}
	return &v, nil
}
