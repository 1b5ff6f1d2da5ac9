// Package oracle is the LLM-backed scoring collaborator: it grades
// submissions, assesses trainee questions, plays the supervisor in chat,
// writes final reports, and generates exercises from matter documents.
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"chambers/internal/model"
	"chambers/internal/oracle/prompts"
)

const (
	gradingTimeout    = 90 * time.Second
	assessmentTimeout = 30 * time.Second
	generationTimeout = 5 * time.Minute
)

// Client wraps an OpenAI-compatible API client. Grading, reports, and
// generation use the main model; question assessment and chat replies use
// the cheaper fast model.
type Client struct {
	api       *openai.Client
	model     string
	fastModel string
}

// New creates a new oracle client.
func New(baseURL, apiKey, modelName, fastModelName string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if fastModelName == "" {
		fastModelName = modelName
	}
	return &Client{
		api:       openai.NewClientWithConfig(config),
		model:     modelName,
		fastModel: fastModelName,
	}
}

// Ping verifies the API is reachable and the configured model responds.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	_, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		Messages:  []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: "ping"}},
		MaxTokens: 1,
	})
	if err != nil {
		return fmt.Errorf("LLM ping: %w", err)
	}
	return nil
}

// GradeSubmission grades one trainee submission against the step's ideal
// output and the exercise rubric.
func (c *Client) GradeSubmission(ctx context.Context, step model.ExerciseStep, rubric model.GradingRubric, submission string) (*model.GradeOutcome, error) {
	if step.IdealOutput == nil {
		return nil, fmt.Errorf("step %s has no ideal output to grade against", step.ID)
	}

	ctx, cancel := context.WithTimeout(ctx, gradingTimeout)
	defer cancel()

	raw, err := c.completeJSON(ctx, c.model, prompts.GradingSystem, prompts.GradingUser(step, rubric, submission), 0.3)
	if err != nil {
		return nil, fmt.Errorf("grading API call: %w", err)
	}

	var outcome model.GradeOutcome
	if err := unmarshalResponse(raw, &outcome); err != nil {
		return nil, fmt.Errorf("parse grading response: %w", err)
	}
	return &outcome, nil
}

// AssessQuestion rates a trainee question as useful or not-useful.
func (c *Client) AssessQuestion(ctx context.Context, question, exerciseContext, stepContext, relevanceGuidance string, priorQuestions []string) (*model.QuestionAssessment, error) {
	ctx, cancel := context.WithTimeout(ctx, assessmentTimeout)
	defer cancel()

	user := prompts.QuestionAssessmentUser(question, exerciseContext, stepContext, relevanceGuidance, priorQuestions)
	raw, err := c.completeJSON(ctx, c.fastModel, prompts.QuestionAssessmentSystem, user, 0.1)
	if err != nil {
		return nil, fmt.Errorf("question assessment API call: %w", err)
	}

	var assessment model.QuestionAssessment
	if err := unmarshalResponse(raw, &assessment); err != nil {
		return nil, fmt.Errorf("parse question assessment: %w", err)
	}
	if assessment.Rating != model.RatingUseful && assessment.Rating != model.RatingNotUseful {
		return nil, fmt.Errorf("question assessment returned unknown rating %q", assessment.Rating)
	}
	return &assessment, nil
}

// ChatResponse produces the supervisor's in-character reply to a trainee
// message. Plain text, no JSON contract.
func (c *Client) ChatResponse(ctx context.Context, rubric model.GradingRubric, step model.ExerciseStep, history []model.ChatMessage, message string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, assessmentTimeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.fastModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompts.ChatResponderSystem(rubric, step)},
			{Role: openai.ChatMessageRoleUser, Content: prompts.ChatResponderUser(history, message)},
		},
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("chat API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("LLM returned no choices for chat")
	}
	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return "", errors.New("LLM returned an empty chat reply")
	}
	return reply, nil
}

// Summarize writes the narrative portion of the final report from the
// graded step summaries and the question tally.
func (c *Client) Summarize(ctx context.Context, exerciseTitle string, steps []model.GradedStepSummary, quality model.QuestionQuality) (*model.FinalNarrative, error) {
	ctx, cancel := context.WithTimeout(ctx, gradingTimeout)
	defer cancel()

	raw, err := c.completeJSON(ctx, c.model, prompts.FinalReportSystem, prompts.FinalReportUser(exerciseTitle, steps, quality), 0.3)
	if err != nil {
		return nil, fmt.Errorf("final report API call: %w", err)
	}

	var narrative model.FinalNarrative
	if err := unmarshalResponse(raw, &narrative); err != nil {
		return nil, fmt.Errorf("parse final report: %w", err)
	}
	return &narrative, nil
}

// GenerateExercise turns uploaded matter documents into a full exercise:
// steps, rubric, and narrative briefing.
func (c *Client) GenerateExercise(ctx context.Context, title, matterType string, estimatedMinutes int, docs []model.UploadedDocument) (*model.GeneratedExercise, error) {
	ctx, cancel := context.WithTimeout(ctx, generationTimeout)
	defer cancel()

	system := prompts.GenerationSystem(estimatedMinutes)
	user := prompts.GenerationUser(title, matterType, docs)
	raw, err := c.completeJSON(ctx, c.model, system, user, 0.5)
	if err != nil {
		return nil, fmt.Errorf("generation API call: %w", err)
	}

	var generated model.GeneratedExercise
	if err := unmarshalResponse(raw, &generated); err != nil {
		return nil, fmt.Errorf("parse generated exercise: %w", err)
	}
	if len(generated.Steps) == 0 {
		return nil, errors.New("generation produced no steps")
	}
	return &generated, nil
}

// completeJSON runs a single system+user chat completion with the JSON
// response format and returns the raw content.
func (c *Client) completeJSON(ctx context.Context, modelName, system, user string, temperature float32) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: modelName,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: temperature,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("LLM returned no choices")
	}
	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "model", modelName, "raw", raw)
	return raw, nil
}

// unmarshalResponse parses a model response as JSON, tolerating markdown
// fences and prose around the object. Some models ignore the JSON response
// format, so the first balanced object in the text is extracted as a
// fallback.
func unmarshalResponse(raw string, v any) error {
	cleaned := ExtractJSON(raw)
	if cleaned == "" {
		return fmt.Errorf("no JSON object in response (raw: %s)", truncate(raw, 200))
	}
	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		return fmt.Errorf("%w (raw: %s)", err, truncate(raw, 200))
	}
	return nil
}

// ExtractJSON returns the first balanced top-level JSON object in text, or
// "" when none exists. Braces inside strings are ignored.
func ExtractJSON(text string) string {
	text = strings.TrimSpace(text)
	if fenced, ok := strings.CutPrefix(text, "```json"); ok {
		text = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(fenced), "```"))
	} else if fenced, ok := strings.CutPrefix(text, "```"); ok {
		text = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(fenced), "```"))
	}

	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
