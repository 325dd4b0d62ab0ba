package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"Alora/pkg/backend"
	"Alora/pkg/errors"
)

const summaryPrompt = `You are an interview coach. Read the mock interview transcript and reply with a single JSON object:
{"title": string, "overall_summary": string,
 "scorecard": {"communication": 1-5, "structure": 1-5, "technical_depth": 1-5, "behavioral_examples": 1-5, "problem_solving": 1-5, "confidence": 1-5},
 "strengths": [string], "improvements": [string], "next_steps": [string],
 "red_flags": [string], "follow_up_questions": [string], "role_alignment": string, "key_quotes": [string]}
Judge only the candidate ("user") lines. Keep the title under 80 characters.`

// Summarizer produces interview feedback through any OpenAI-compatible chat endpoint.
type Summarizer struct {
	client *openai.Client
	model  string
	logger *logrus.Logger
}

func NewSummarizer(apiKey, baseURL, model string, logger *logrus.Logger) *Summarizer {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Summarizer{client: openai.NewClientWithConfig(cfg), model: model, logger: logger}
}

func (s *Summarizer) Summarize(ctx context.Context, sessionID string, req backend.SummaryRequest) (*backend.Summary, error) {
	log := s.logger.WithFields(logrus.Fields{"session_id": sessionID, "turns": req.TurnsTotal})

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: summaryPrompt},
			{Role: openai.ChatMessageRoleUser, Content: renderTranscript(req)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		Temperature:    0.2,
	})
	if err != nil {
		log.WithError(err).Error("summary completion failed")
		return nil, errors.WrapCode(err, errors.CodeExternal, "summary generation failed")
	}
	if len(resp.Choices) == 0 {
		return nil, errors.WithCode(errors.CodeExternal, "summary generation returned no choices")
	}

	content := stripFence(resp.Choices[0].Message.Content)
	var sum backend.Summary
	if err := json.Unmarshal([]byte(content), &sum); err != nil {
		log.WithError(err).Warn("summary is not valid JSON")
		return nil, errors.WrapCode(err, errors.CodeExternal, "summary generation returned malformed JSON")
	}
	sum.SessionMeta = backend.SessionMeta{
		EndedBy:               req.EndedBy,
		TargetDurationSeconds: req.TargetDurationSeconds,
		ActualDurationSeconds: req.ActualDurationSeconds,
		TurnsTotal:            req.TurnsTotal,
		TurnsUser:             req.TurnsUser,
		TurnsAI:               req.TurnsAI,
	}
	log.WithField("tokens", resp.Usage.TotalTokens).Debug("summary generated")
	return &sum, nil
}

func renderTranscript(req backend.SummaryRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ended by: %s. Target duration: %ds. Actual duration: %ds.\n\n",
		req.EndedBy, req.TargetDurationSeconds, req.ActualDurationSeconds)
	for _, e := range req.Transcript {
		fmt.Fprintf(&b, "%s: %s\n", e.Role, e.Text)
	}
	return b.String()
}

// stripFence tolerates models that wrap JSON in a markdown code fence.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
