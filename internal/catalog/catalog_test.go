package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"chambers/internal/apperr"
	"chambers/internal/model"
)

type memStore struct {
	exercises map[string]*model.Exercise
}

func newMemStore() *memStore {
	return &memStore{exercises: map[string]*model.Exercise{}}
}

func (m *memStore) GetExercise(id string) (*model.Exercise, error) {
	ex, ok := m.exercises[id]
	if !ok {
		return nil, nil
	}
	cp := *ex
	return &cp, nil
}

func (m *memStore) SaveExercise(ex *model.Exercise, _ int64) error {
	cp := *ex
	m.exercises[ex.ID] = &cp
	return nil
}

func (m *memStore) ListExercises() ([]*model.Exercise, error) {
	var out []*model.Exercise
	for _, ex := range m.exercises {
		cp := *ex
		out = append(out, &cp)
	}
	return out, nil
}

type stubGenerator struct {
	result *model.GeneratedExercise
	err    error

	// statusDuringCall records the stored exercise status observed while the
	// generator runs.
	statusDuringCall model.ExerciseStatus
	store            *memStore
	exerciseID       string
}

func (g *stubGenerator) GenerateExercise(_ context.Context, _, _ string, _ int, _ []model.UploadedDocument) (*model.GeneratedExercise, error) {
	if g.store != nil {
		if ex := g.store.exercises[g.exerciseID]; ex != nil {
			g.statusDuringCall = ex.Status
		}
	}
	return g.result, g.err
}

func newTestService(store *memStore, gen *stubGenerator) *Service {
	s := NewService(store, gen)
	s.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }
	return s
}

func TestCreateDefaults(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, &stubGenerator{})

	ex, err := svc.Create(context.Background(), CreateParams{Title: "Lease Review"}, 7)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if ex.Status != model.ExerciseDraft {
		t.Errorf("status = %s, want draft", ex.Status)
	}
	if ex.Difficulty != model.DifficultyJunior {
		t.Errorf("difficulty = %s, want junior", ex.Difficulty)
	}
	if ex.EstimatedDurationMinutes != 480 {
		t.Errorf("duration = %d, want 480", ex.EstimatedDurationMinutes)
	}
	if ex.ID == "" {
		t.Error("expected generated id")
	}
	if len(ex.Steps) != 0 || len(ex.Documents) != 0 {
		t.Error("new draft should have no steps or documents")
	}

	if _, err := svc.Create(context.Background(), CreateParams{Title: "  "}, 7); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for blank title, got %v", err)
	}
}

func TestGetMissing(t *testing.T) {
	svc := newTestService(newMemStore(), &stubGenerator{})
	if _, err := svc.Get(context.Background(), "nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdatePreservesStatusAndCreation(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, &stubGenerator{})

	ex, err := svc.Create(context.Background(), CreateParams{Title: "Lease Review"}, 7)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	created := ex.CreatedAt
	store.exercises[ex.ID].Status = model.ExerciseReady

	edited := *ex
	edited.Title = "Lease Review v2"
	edited.Status = model.ExerciseDraft // callers cannot demote status
	edited.CreatedAt = time.Time{}

	updated, err := svc.Update(context.Background(), &edited)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Title != "Lease Review v2" {
		t.Errorf("title = %q", updated.Title)
	}
	if updated.Status != model.ExerciseReady {
		t.Errorf("status = %s, want ready preserved", updated.Status)
	}
	if !updated.CreatedAt.Equal(created) {
		t.Errorf("created at changed: %v != %v", updated.CreatedAt, created)
	}
}

func TestAttachDocument(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, &stubGenerator{})
	ex, _ := svc.Create(context.Background(), CreateParams{Title: "Lease Review"}, 7)

	doc, err := svc.AttachDocument(context.Background(), ex.ID, model.UploadedDocument{
		Filename:      "heads-of-terms.docx",
		ExtractedText: "The landlord proposes...",
	})
	if err != nil {
		t.Fatalf("AttachDocument: %v", err)
	}
	if doc.ID == "" || doc.ExerciseID != ex.ID {
		t.Errorf("document identity not set: %+v", doc)
	}
	if doc.Role != model.DocReference {
		t.Errorf("role = %s, want reference default", doc.Role)
	}
	if doc.Label != "heads-of-terms.docx" {
		t.Errorf("label = %q, want filename default", doc.Label)
	}

	stored, _ := svc.Get(context.Background(), ex.ID)
	if len(stored.Documents) != 1 {
		t.Fatalf("expected 1 stored document, got %d", len(stored.Documents))
	}

	_, err = svc.AttachDocument(context.Background(), ex.ID, model.UploadedDocument{Filename: "empty.pdf"})
	if !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for empty text, got %v", err)
	}
}

func TestGenerateLifecycle(t *testing.T) {
	store := newMemStore()
	ideal := "model answer"
	gen := &stubGenerator{
		result: &model.GeneratedExercise{
			Steps: []model.ExerciseStep{
				{ID: "step-1", Order: 0, Title: "Read the brief", Type: model.StepRead},
				{ID: "step-2", Order: 1, Title: "Draft", Type: model.StepDraft, IdealOutput: &ideal, MaxScore: 20},
			},
			Rubric:    model.GradingRubric{OverallApproach: "methodical"},
			Narrative: "# Briefing",
		},
		store: store,
	}
	svc := newTestService(store, gen)

	ex, _ := svc.Create(context.Background(), CreateParams{Title: "Lease Review"}, 7)
	gen.exerciseID = ex.ID

	// No documents yet.
	if _, err := svc.Generate(context.Background(), ex.ID); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput without documents, got %v", err)
	}

	if _, err := svc.AttachDocument(context.Background(), ex.ID, model.UploadedDocument{
		Filename: "brief.pdf", ExtractedText: "facts",
	}); err != nil {
		t.Fatalf("AttachDocument: %v", err)
	}

	got, err := svc.Generate(context.Background(), ex.ID)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if gen.statusDuringCall != model.ExerciseGenerating {
		t.Errorf("status during generation = %s, want generating persisted first", gen.statusDuringCall)
	}
	if got.Status != model.ExerciseReady {
		t.Errorf("status = %s, want ready", got.Status)
	}
	if len(got.Steps) != 2 || got.Rubric == nil || got.Rubric.OverallApproach != "methodical" {
		t.Errorf("generated content not applied: %+v", got)
	}
	if got.Narrative != "# Briefing" {
		t.Errorf("narrative = %q", got.Narrative)
	}
}

func TestGenerateRollsBackOnFailure(t *testing.T) {
	store := newMemStore()
	gen := &stubGenerator{err: errors.New("model overloaded"), store: store}
	svc := newTestService(store, gen)

	ex, _ := svc.Create(context.Background(), CreateParams{Title: "Lease Review"}, 7)
	gen.exerciseID = ex.ID
	if _, err := svc.AttachDocument(context.Background(), ex.ID, model.UploadedDocument{
		Filename: "brief.pdf", ExtractedText: "facts",
	}); err != nil {
		t.Fatalf("AttachDocument: %v", err)
	}

	_, err := svc.Generate(context.Background(), ex.ID)
	if !apperr.IsCollaborator(err) {
		t.Fatalf("expected collaborator error, got %v", err)
	}

	stored, _ := svc.Get(context.Background(), ex.ID)
	if stored.Status != model.ExerciseDraft {
		t.Errorf("status = %s, want draft after rollback", stored.Status)
	}
	if len(stored.Steps) != 0 {
		t.Errorf("partial steps persisted: %d", len(stored.Steps))
	}
	// The uploaded document survives the failed attempt.
	if len(stored.Documents) != 1 {
		t.Errorf("documents lost in rollback: %d", len(stored.Documents))
	}
}
