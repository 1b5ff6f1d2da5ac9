// Package engine implements the session state machine: the finite-state
// workflow that gates step advancement, grades each submission exactly once,
// orchestrates concurrent scoring-oracle calls, and aggregates per-step
// outcomes into a final score.
package engine

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"chambers/internal/apperr"
	"chambers/internal/model"
)

const (
	// readAcknowledgement is stored as the submission for read steps when
	// the trainee sends none.
	readAcknowledgement = "[Acknowledged]"
	// readFeedback is the fixed grade feedback for read steps.
	readFeedback = "Read step completed."
)

// SessionStore is the persistence contract the engine requires: whole-
// document reads and whole-document compare-and-swap writes.
type SessionStore interface {
	// GetSession returns nil, nil when the session does not exist.
	GetSession(id string) (*model.Session, error)
	// SaveSession persists the document whole, failing with
	// apperr.ErrConflict when a concurrent writer won the version race.
	SaveSession(sess *model.Session, ownerID int64) error
}

// ExerciseSource provides read access to the exercise catalog.
type ExerciseSource interface {
	// GetExercise returns nil, nil when the exercise does not exist.
	GetExercise(id string) (*model.Exercise, error)
}

// Oracle is the external grading/assessment collaborator. Every call may
// fail or time out; the engine never commits partial results.
type Oracle interface {
	GradeSubmission(ctx context.Context, step model.ExerciseStep, rubric model.GradingRubric, submission string) (*model.GradeOutcome, error)
	ChatResponse(ctx context.Context, rubric model.GradingRubric, step model.ExerciseStep, history []model.ChatMessage, message string) (string, error)
	AssessQuestion(ctx context.Context, question, exerciseContext, stepContext, relevanceGuidance string, priorQuestions []string) (*model.QuestionAssessment, error)
	Summarize(ctx context.Context, exerciseTitle string, steps []model.GradedStepSummary, quality model.QuestionQuality) (*model.FinalNarrative, error)
}

// Engine drives session lifecycles. Operations against different sessions
// are independent; operations against one session are expected to be
// serialized by the caller, with the store's version check catching races.
type Engine struct {
	sessions  SessionStore
	exercises ExerciseSource
	oracle    Oracle
	now       func() time.Time
}

// New creates an Engine.
func New(sessions SessionStore, exercises ExerciseSource, oracle Oracle) *Engine {
	return &Engine{
		sessions:  sessions,
		exercises: exercises,
		oracle:    oracle,
		now:       time.Now,
	}
}

// CreateSession starts a new session against a ready exercise, with the
// cursor at step 0 and one empty step result per exercise step.
func (e *Engine) CreateSession(ctx context.Context, exerciseID, traineeName string, ownerID int64) (*model.Session, error) {
	ex, err := e.exercises.GetExercise(exerciseID)
	if err != nil {
		return nil, fmt.Errorf("load exercise: %w", err)
	}
	if ex == nil {
		return nil, fmt.Errorf("exercise %s: %w", exerciseID, apperr.ErrNotFound)
	}
	if ex.Status != model.ExerciseReady {
		return nil, fmt.Errorf("exercise %s is %s, not ready: %w", exerciseID, ex.Status, apperr.ErrInvalidState)
	}

	if traineeName == "" {
		traineeName = "Trainee"
	}

	now := e.now()
	sess := &model.Session{
		ID:               uuid.NewString(),
		ExerciseID:       exerciseID,
		TraineeName:      traineeName,
		CurrentStepIndex: 0,
		Status:           model.SessionInProgress,
		StepResults:      make([]model.StepResult, 0, len(ex.Steps)),
		ChatHistory:      []model.ChatMessage{},
		QuestionScores:   []model.QuestionScore{},
		StartedAt:        now,
		LastActivityAt:   now,
	}
	for _, step := range ex.Steps {
		sess.StepResults = append(sess.StepResults, model.StepResult{StepID: step.ID})
	}

	if err := e.sessions.SaveSession(sess, ownerID); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return sess, nil
}

// SubmitResult is the outcome of a SubmitStep call.
type SubmitResult struct {
	StepResult model.StepResult
	StepIndex  int
	IsLastStep bool
}

// SubmitStep grades a submission against the identified step and records the
// result. Read steps are graded locally without an oracle call. The cursor
// advances only when the submitted step is the current frontier; earlier
// steps may be resubmitted, overwriting their grade in place without moving
// the cursor.
func (e *Engine) SubmitStep(ctx context.Context, sessionID, stepID, submission string) (*SubmitResult, error) {
	sess, ex, err := e.loadInProgress(sessionID)
	if err != nil {
		return nil, err
	}

	step, stepIndex := ex.StepByID(stepID)
	if step == nil {
		return nil, fmt.Errorf("step %s: %w", stepID, apperr.ErrNotFound)
	}
	result := sess.ResultFor(stepID)
	if result == nil {
		return nil, fmt.Errorf("step result for %s: %w", stepID, apperr.ErrNotFound)
	}

	now := e.now()
	if step.Type == model.StepRead {
		if submission == "" {
			submission = readAcknowledgement
		}
		result.Submission = &submission
		result.Grade = &model.StepGrade{
			Score:          step.MaxScore,
			MaxScore:       step.MaxScore,
			Feedback:       readFeedback,
			Strengths:      []string{},
			Improvements:   []string{},
			CriticalIssues: []string{},
		}
		result.SubmittedAt = &now
	} else {
		if strings.TrimSpace(submission) == "" {
			return nil, fmt.Errorf("submission cannot be empty: %w", apperr.ErrInvalidInput)
		}
		if ex.Rubric == nil {
			return nil, fmt.Errorf("exercise %s: %w", ex.ID, apperr.ErrRubricMissing)
		}

		outcome, err := e.oracle.GradeSubmission(ctx, *step, *ex.Rubric, submission)
		if err != nil {
			// The step result is untouched; the trainee is free to retry.
			return nil, apperr.Collaborator("grading", err)
		}

		result.Submission = &submission
		result.Grade = &model.StepGrade{
			Score:          clampScore(outcome.Score, step.MaxScore),
			MaxScore:       step.MaxScore,
			Feedback:       outcome.Feedback,
			Strengths:      outcome.Strengths,
			Improvements:   outcome.Improvements,
			CriticalIssues: outcome.CriticalIssues,
		}
		result.SubmittedAt = &now
	}

	// Only grading the frontier step moves the cursor. Resubmitting an
	// earlier step never moves it, forward or backward.
	if sess.CurrentStepIndex == stepIndex {
		sess.CurrentStepIndex = min(stepIndex+1, len(ex.Steps)-1)
	}
	sess.LastActivityAt = now

	if err := e.sessions.SaveSession(sess, 0); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return &SubmitResult{
		StepResult: *result,
		StepIndex:  stepIndex,
		IsLastStep: stepIndex == len(ex.Steps)-1,
	}, nil
}

// AskResult is the outcome of a successful AskQuestion call.
type AskResult struct {
	Question model.ChatMessage
	Reply    model.ChatMessage
	Score    model.QuestionScore
}

// AskQuestion obtains a supervisor reply and a question-quality assessment
// from the oracle concurrently, then commits the trainee question, the
// reply, and the score together. If either oracle call fails nothing is
// persisted: the transcript never shows a question without its quality
// score.
func (e *Engine) AskQuestion(ctx context.Context, sessionID, stepID, message string) (*AskResult, error) {
	sess, ex, err := e.loadInProgress(sessionID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("message cannot be empty: %w", apperr.ErrInvalidInput)
	}
	if ex.Rubric == nil {
		return nil, fmt.Errorf("exercise %s: %w", ex.ID, apperr.ErrRubricMissing)
	}

	// Questions attach to the named step, falling back to the frontier.
	step, _ := ex.StepByID(stepID)
	if step == nil {
		if sess.CurrentStepIndex >= len(ex.Steps) {
			return nil, fmt.Errorf("step %s: %w", stepID, apperr.ErrNotFound)
		}
		step = &ex.Steps[sess.CurrentStepIndex]
	}

	// Prior questions and transcript exclude the one being asked now.
	priorQuestions := sess.TraineeQuestions()
	priorTranscript := sess.ChatHistory

	exerciseContext := fmt.Sprintf("%s - %s: %s", ex.Title, ex.MatterType, ex.Description)
	stepContext := fmt.Sprintf("%s: %s", step.Title, step.Instruction)

	var (
		reply      string
		assessment *model.QuestionAssessment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		reply, err = e.oracle.ChatResponse(gctx, *ex.Rubric, *step, priorTranscript, message)
		return err
	})
	g.Go(func() error {
		var err error
		assessment, err = e.oracle.AssessQuestion(gctx, message, exerciseContext, stepContext,
			ex.Rubric.QuestionRelevanceGuidance, priorQuestions)
		return err
	})
	if err := g.Wait(); err != nil {
		// Nothing was appended or saved; the question dies with this call.
		return nil, apperr.Collaborator("question handling", err)
	}

	question := model.ChatMessage{
		ID:        uuid.NewString(),
		Role:      model.RoleTrainee,
		Content:   message,
		StepID:    step.ID,
		Timestamp: e.now(),
	}
	supervisorMsg := model.ChatMessage{
		ID:        uuid.NewString(),
		Role:      model.RoleSupervisor,
		Content:   reply,
		StepID:    step.ID,
		Timestamp: e.now(),
	}
	score := model.QuestionScore{
		MessageID: question.ID,
		Rating:    assessment.Rating,
		Reasoning: assessment.Reasoning,
	}

	sess.ChatHistory = append(sess.ChatHistory, question, supervisorMsg)
	sess.QuestionScores = append(sess.QuestionScores, score)
	sess.LastActivityAt = e.now()

	if err := e.sessions.SaveSession(sess, 0); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return &AskResult{Question: question, Reply: supervisorMsg, Score: score}, nil
}

// CompleteSession aggregates whatever step results exist into a final score
// and moves the session to its terminal completed state. On any failure the
// session remains in progress, untouched.
func (e *Engine) CompleteSession(ctx context.Context, sessionID string) (*model.FinalScore, error) {
	sess, ex, err := e.loadInProgress(sessionID)
	if err != nil {
		return nil, err
	}

	final, err := e.buildFinalScore(ctx, sess, ex)
	if err != nil {
		return nil, err
	}

	now := e.now()
	sess.FinalScore = final
	sess.Status = model.SessionCompleted
	sess.CompletedAt = &now
	sess.LastActivityAt = now

	if err := e.sessions.SaveSession(sess, 0); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return final, nil
}

// NavigateTo validates a view change to the given step index. Indices beyond
// the frontier are locked.
func (e *Engine) NavigateTo(sess *model.Session, ex *model.Exercise, stepIndex int) error {
	if stepIndex < 0 || stepIndex >= len(ex.Steps) {
		return fmt.Errorf("step index %d out of range: %w", stepIndex, apperr.ErrInvalidInput)
	}
	if stepIndex > sess.CurrentStepIndex {
		return fmt.Errorf("step %d is beyond the current frontier: %w", stepIndex, apperr.ErrInvalidState)
	}
	return nil
}

// loadInProgress loads a session and its exercise, requiring the session to
// be in progress.
func (e *Engine) loadInProgress(sessionID string) (*model.Session, *model.Exercise, error) {
	sess, err := e.sessions.GetSession(sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("load session: %w", err)
	}
	if sess == nil {
		return nil, nil, fmt.Errorf("session %s: %w", sessionID, apperr.ErrNotFound)
	}
	if sess.Status != model.SessionInProgress {
		return nil, nil, fmt.Errorf("session %s is %s: %w", sessionID, sess.Status, apperr.ErrInvalidState)
	}

	ex, err := e.exercises.GetExercise(sess.ExerciseID)
	if err != nil {
		return nil, nil, fmt.Errorf("load exercise: %w", err)
	}
	if ex == nil {
		return nil, nil, fmt.Errorf("exercise %s: %w", sess.ExerciseID, apperr.ErrNotFound)
	}
	return sess, ex, nil
}

// clampScore bounds a raw oracle score to [0, max] and rounds it to an
// integer. The oracle's output is never trusted as bounded.
func clampScore(raw float64, max int) int {
	score := math.Round(raw)
	if score < 0 {
		score = 0
	}
	if score > float64(max) {
		score = float64(max)
	}
	return int(score)
}
