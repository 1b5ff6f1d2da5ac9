// Package catalog manages the exercise lifecycle: draft exercises accumulate
// documents, generation produces steps/rubric/narrative and flips the
// exercise to ready, and sessions may only be created against ready
// exercises.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"chambers/internal/apperr"
	"chambers/internal/model"
)

// Store is the persistence the catalog requires.
type Store interface {
	GetExercise(id string) (*model.Exercise, error)
	SaveExercise(ex *model.Exercise, ownerID int64) error
	ListExercises() ([]*model.Exercise, error)
}

// Generator produces exercise content from uploaded matter documents. It is
// an external collaborator and may fail.
type Generator interface {
	GenerateExercise(ctx context.Context, title, matterType string, estimatedMinutes int, docs []model.UploadedDocument) (*model.GeneratedExercise, error)
}

// Service owns supervisor-facing catalog operations.
type Service struct {
	store Store
	gen   Generator
	now   func() time.Time
}

// NewService creates a catalog Service.
func NewService(store Store, gen Generator) *Service {
	return &Service{store: store, gen: gen, now: time.Now}
}

// CreateParams are the supervisor-supplied fields of a new draft exercise.
type CreateParams struct {
	Title                    string
	Description              string
	MatterType               string
	Difficulty               model.Difficulty
	EstimatedDurationMinutes int
}

// Create allocates a new draft exercise with no documents or steps and a
// zero-value rubric.
func (s *Service) Create(ctx context.Context, p CreateParams, ownerID int64) (*model.Exercise, error) {
	if strings.TrimSpace(p.Title) == "" {
		return nil, fmt.Errorf("title cannot be empty: %w", apperr.ErrInvalidInput)
	}
	if p.Difficulty == "" {
		p.Difficulty = model.DifficultyJunior
	}
	if p.EstimatedDurationMinutes <= 0 {
		p.EstimatedDurationMinutes = 480
	}

	now := s.now()
	ex := &model.Exercise{
		ID:                       uuid.NewString(),
		Title:                    p.Title,
		Description:              p.Description,
		MatterType:               p.MatterType,
		Difficulty:               p.Difficulty,
		EstimatedDurationMinutes: p.EstimatedDurationMinutes,
		Documents:                []model.UploadedDocument{},
		Steps:                    []model.ExerciseStep{},
		Rubric:                   &model.GradingRubric{KeyIssues: []string{}, CriticalErrors: []string{}, QualityMarkers: []string{}},
		Status:                   model.ExerciseDraft,
		CreatedAt:                now,
		UpdatedAt:                now,
	}
	if err := s.store.SaveExercise(ex, ownerID); err != nil {
		return nil, fmt.Errorf("save exercise: %w", err)
	}
	return ex, nil
}

// Get returns an exercise by id.
func (s *Service) Get(ctx context.Context, id string) (*model.Exercise, error) {
	ex, err := s.store.GetExercise(id)
	if err != nil {
		return nil, fmt.Errorf("load exercise: %w", err)
	}
	if ex == nil {
		return nil, fmt.Errorf("exercise %s: %w", id, apperr.ErrNotFound)
	}
	return ex, nil
}

// List returns all exercises.
func (s *Service) List(ctx context.Context) ([]*model.Exercise, error) {
	return s.store.ListExercises()
}

// Update replaces an exercise's editable fields. Edits are permitted in any
// status; the identity, creation timestamp, and status are immutable here.
// Only generation moves the status.
func (s *Service) Update(ctx context.Context, updated *model.Exercise) (*model.Exercise, error) {
	current, err := s.Get(ctx, updated.ID)
	if err != nil {
		return nil, err
	}

	updated.CreatedAt = current.CreatedAt
	updated.Status = current.Status
	updated.UpdatedAt = s.now()

	if err := s.store.SaveExercise(updated, 0); err != nil {
		return nil, fmt.Errorf("save exercise: %w", err)
	}
	return updated, nil
}

// AttachDocument appends an uploaded document to an exercise. The document's
// text has already been extracted by the caller.
func (s *Service) AttachDocument(ctx context.Context, exerciseID string, doc model.UploadedDocument) (*model.UploadedDocument, error) {
	ex, err := s.Get(ctx, exerciseID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(doc.ExtractedText) == "" {
		return nil, fmt.Errorf("document has no extracted text: %w", apperr.ErrInvalidInput)
	}

	doc.ID = uuid.NewString()
	doc.ExerciseID = exerciseID
	doc.UploadedAt = s.now()
	if doc.Role == "" {
		doc.Role = model.DocReference
	}
	if doc.Label == "" {
		doc.Label = doc.Filename
	}

	ex.Documents = append(ex.Documents, doc)
	ex.UpdatedAt = s.now()
	if err := s.store.SaveExercise(ex, 0); err != nil {
		return nil, fmt.Errorf("save exercise: %w", err)
	}
	return &doc, nil
}

// Generate runs the external content generator against an exercise's
// documents. The exercise flips to generating before the call; on success
// steps, rubric, and narrative are replaced wholesale and it becomes ready;
// on failure it rolls back to draft with no partial step data.
func (s *Service) Generate(ctx context.Context, exerciseID string) (*model.Exercise, error) {
	ex, err := s.Get(ctx, exerciseID)
	if err != nil {
		return nil, err
	}
	if len(ex.Documents) == 0 {
		return nil, fmt.Errorf("upload at least one document before generating: %w", apperr.ErrInvalidInput)
	}

	ex.Status = model.ExerciseGenerating
	ex.UpdatedAt = s.now()
	if err := s.store.SaveExercise(ex, 0); err != nil {
		return nil, fmt.Errorf("save exercise: %w", err)
	}

	result, err := s.gen.GenerateExercise(ctx, ex.Title, ex.MatterType, ex.EstimatedDurationMinutes, ex.Documents)
	if err != nil {
		slog.Error("exercise generation failed", "exercise_id", exerciseID, "error", err)
		ex.Status = model.ExerciseDraft
		ex.UpdatedAt = s.now()
		if saveErr := s.store.SaveExercise(ex, 0); saveErr != nil {
			return nil, fmt.Errorf("roll back to draft: %w", saveErr)
		}
		return nil, apperr.Collaborator("exercise generation", err)
	}

	rubric := result.Rubric
	ex.Steps = result.Steps
	ex.Rubric = &rubric
	ex.Narrative = result.Narrative
	ex.Status = model.ExerciseReady
	ex.UpdatedAt = s.now()
	if err := s.store.SaveExercise(ex, 0); err != nil {
		return nil, fmt.Errorf("save exercise: %w", err)
	}
	slog.Info("exercise generated", "exercise_id", exerciseID, "steps", len(ex.Steps))
	return ex, nil
}
