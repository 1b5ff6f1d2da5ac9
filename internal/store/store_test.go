package store

import (
	"errors"
	"testing"
	"time"

	"chambers/internal/apperr"
	"chambers/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func saveTestExercise(t *testing.T, s *Store, id, title string, status model.ExerciseStatus) *model.Exercise {
	t.Helper()
	ideal := "model answer for " + title
	ex := &model.Exercise{
		ID:         id,
		Title:      title,
		MatterType: "corporate",
		Status:     status,
		Steps: []model.ExerciseStep{
			{ID: id + "-s1", Order: 0, Title: "Draft", Type: model.StepDraft, IdealOutput: &ideal, MaxScore: 20},
		},
		Rubric: &model.GradingRubric{OverallApproach: "methodical"},
	}
	if err := s.SaveExercise(ex, 7); err != nil {
		t.Fatalf("saveTestExercise: %v", err)
	}
	return ex
}

func TestExerciseCRUD(t *testing.T) {
	s := newTestStore(t)

	// Missing exercise is nil, nil.
	ex, err := s.GetExercise("nope")
	if err != nil {
		t.Fatalf("GetExercise: %v", err)
	}
	if ex != nil {
		t.Fatalf("expected nil for missing exercise, got %+v", ex)
	}

	saveTestExercise(t, s, "ex-1", "Share Purchase", model.ExerciseDraft)

	got, err := s.GetExercise("ex-1")
	if err != nil {
		t.Fatalf("GetExercise: %v", err)
	}
	if got.Title != "Share Purchase" {
		t.Errorf("title = %q, want Share Purchase", got.Title)
	}
	if got.Rubric == nil || got.Rubric.OverallApproach != "methodical" {
		t.Errorf("rubric did not round-trip: %+v", got.Rubric)
	}
	if len(got.Steps) != 1 || got.Steps[0].IdealOutput == nil {
		t.Errorf("steps did not round-trip: %+v", got.Steps)
	}

	// Upsert replaces the document.
	got.Status = model.ExerciseReady
	if err := s.SaveExercise(got, 99); err != nil {
		t.Fatalf("SaveExercise update: %v", err)
	}
	got, _ = s.GetExercise("ex-1")
	if got.Status != model.ExerciseReady {
		t.Errorf("status = %s, want ready", got.Status)
	}

	// Owner is fixed at first insert; the update above must not change it.
	owner, err := s.ExerciseOwner("ex-1")
	if err != nil {
		t.Fatalf("ExerciseOwner: %v", err)
	}
	if owner != 7 {
		t.Errorf("owner = %d, want 7", owner)
	}
	if _, err := s.ExerciseOwner("nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	saveTestExercise(t, s, "ex-2", "Lease Review", model.ExerciseDraft)
	list, err := s.ListExercises()
	if err != nil {
		t.Fatalf("ListExercises: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 exercises, got %d", len(list))
	}

	if err := s.DeleteExercise("ex-2"); err != nil {
		t.Fatalf("DeleteExercise: %v", err)
	}
	list, _ = s.ListExercises()
	if len(list) != 1 {
		t.Errorf("expected 1 exercise after delete, got %d", len(list))
	}
}

func TestSessionSaveIsCompareAndSwap(t *testing.T) {
	s := newTestStore(t)
	saveTestExercise(t, s, "ex-1", "Share Purchase", model.ExerciseReady)

	sess := &model.Session{
		ID:          "sess-1",
		ExerciseID:  "ex-1",
		TraineeName: "Alex",
		Status:      model.SessionInProgress,
		StartedAt:   time.Now(),
	}
	if err := s.SaveSession(sess, 2); err != nil {
		t.Fatalf("insert session: %v", err)
	}
	if sess.Version != 1 {
		t.Fatalf("version after insert = %d, want 1", sess.Version)
	}

	// Two readers load the same version.
	a, err := s.GetSession("sess-1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	b, _ := s.GetSession("sess-1")
	if a.Version != 1 || b.Version != 1 {
		t.Fatalf("loaded versions %d/%d, want 1/1", a.Version, b.Version)
	}

	// First writer wins and advances the version.
	a.TraineeName = "Alex Writer A"
	if err := s.SaveSession(a, 0); err != nil {
		t.Fatalf("save from A: %v", err)
	}
	if a.Version != 2 {
		t.Errorf("A's version = %d, want 2", a.Version)
	}

	// The stale writer loses with ErrConflict and the winner's data stays.
	b.TraineeName = "Alex Writer B"
	if err := s.SaveSession(b, 0); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected ErrConflict for stale save, got %v", err)
	}
	got, _ := s.GetSession("sess-1")
	if got.TraineeName != "Alex Writer A" {
		t.Errorf("stale writer overwrote data: %q", got.TraineeName)
	}
	if got.Version != 2 {
		t.Errorf("stored version = %d, want 2", got.Version)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	s := newTestStore(t)
	saveTestExercise(t, s, "ex-1", "Share Purchase", model.ExerciseReady)

	submission := "my advice"
	now := time.Now().UTC().Truncate(time.Second)
	sess := &model.Session{
		ID:               "sess-1",
		ExerciseID:       "ex-1",
		TraineeName:      "Alex",
		CurrentStepIndex: 1,
		Status:           model.SessionInProgress,
		StepResults: []model.StepResult{
			{StepID: "ex-1-s1", Submission: &submission, Grade: &model.StepGrade{Score: 15, MaxScore: 20}},
		},
		ChatHistory: []model.ChatMessage{
			{ID: "m1", Role: model.RoleTrainee, Content: "Is the deadline firm?", StepID: "ex-1-s1", Timestamp: now},
		},
		QuestionScores: []model.QuestionScore{
			{MessageID: "m1", Rating: model.RatingUseful, Reasoning: "relevant"},
		},
		StartedAt: now,
	}
	if err := s.SaveSession(sess, 2); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	got, err := s.GetSession("sess-1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.CurrentStepIndex != 1 {
		t.Errorf("cursor = %d, want 1", got.CurrentStepIndex)
	}
	if r := got.ResultFor("ex-1-s1"); r == nil || r.Grade == nil || r.Grade.Score != 15 {
		t.Errorf("step result did not round-trip: %+v", r)
	}
	if len(got.ChatHistory) != 1 || got.QuestionScores[0].Rating != model.RatingUseful {
		t.Errorf("transcript did not round-trip")
	}

	owner, err := s.SessionOwner("sess-1")
	if err != nil {
		t.Fatalf("SessionOwner: %v", err)
	}
	if owner != 2 {
		t.Errorf("owner = %d, want 2", owner)
	}

	// Missing session is nil, nil.
	missing, err := s.GetSession("nope")
	if err != nil || missing != nil {
		t.Errorf("expected nil, nil for missing session, got %v, %v", missing, err)
	}
}

func TestUserCRUD(t *testing.T) {
	s := newTestStore(t)

	count, err := s.UserCount()
	if err != nil {
		t.Fatalf("UserCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 users, got %d", count)
	}

	id, err := s.CreateUser(model.User{
		Username:     "asolicitor",
		DisplayName:  "A. Solicitor",
		PasswordHash: "hash",
		Role:         model.UserRoleSupervisor,
		Active:       true,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	u, err := s.GetUserByUsername("asolicitor")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if u == nil || u.ID != id || u.Role != model.UserRoleSupervisor {
		t.Fatalf("unexpected user %+v", u)
	}

	byID, err := s.GetUserByID(id)
	if err != nil || byID == nil || byID.Username != "asolicitor" {
		t.Fatalf("GetUserByID: %v, %+v", err, byID)
	}

	// Unknown lookups are nil, nil.
	if u, err := s.GetUserByUsername("ghost"); err != nil || u != nil {
		t.Errorf("expected nil, nil for unknown username, got %v, %v", u, err)
	}

	if err := s.ToggleUserActive(id); err != nil {
		t.Fatalf("ToggleUserActive: %v", err)
	}
	u, _ = s.GetUserByID(id)
	if u.Active {
		t.Error("expected user to be inactive after toggle")
	}

	users, err := s.ListUsers()
	if err != nil || len(users) != 1 {
		t.Fatalf("ListUsers: %v, %d users", err, len(users))
	}
}

func TestAuthSessions(t *testing.T) {
	s := newTestStore(t)
	id, err := s.CreateUser(model.User{Username: "u", PasswordHash: "h", Role: model.UserRoleTrainee, Active: true})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	token, err := s.CreateAuthSession(id)
	if err != nil {
		t.Fatalf("CreateAuthSession: %v", err)
	}
	if token == "" {
		t.Fatal("empty token")
	}

	sess, err := s.GetAuthSession(token)
	if err != nil {
		t.Fatalf("GetAuthSession: %v", err)
	}
	if sess == nil || sess.UserID != id {
		t.Fatalf("unexpected auth session %+v", sess)
	}

	if sess, err := s.GetAuthSession("bogus"); err != nil || sess != nil {
		t.Errorf("expected nil, nil for unknown token, got %v, %v", sess, err)
	}

	if err := s.DeleteAuthSession(token); err != nil {
		t.Fatalf("DeleteAuthSession: %v", err)
	}
	if sess, _ := s.GetAuthSession(token); sess != nil {
		t.Error("auth session survived deletion")
	}
}

func TestImportedFileHash(t *testing.T) {
	s := newTestStore(t)

	hash, err := s.GetImportedFileHash("seed.json")
	if err != nil {
		t.Fatalf("GetImportedFileHash: %v", err)
	}
	if hash != "" {
		t.Fatalf("expected empty hash for unknown file, got %q", hash)
	}

	if err := s.SetImportedFileHash("seed.json", "abc"); err != nil {
		t.Fatalf("SetImportedFileHash: %v", err)
	}
	hash, _ = s.GetImportedFileHash("seed.json")
	if hash != "abc" {
		t.Errorf("hash = %q, want abc", hash)
	}

	// Re-recording replaces the hash.
	if err := s.SetImportedFileHash("seed.json", "def"); err != nil {
		t.Fatalf("SetImportedFileHash update: %v", err)
	}
	hash, _ = s.GetImportedFileHash("seed.json")
	if hash != "def" {
		t.Errorf("hash = %q, want def", hash)
	}
}

func TestExportAllSessions(t *testing.T) {
	s := newTestStore(t)
	saveTestExercise(t, s, "ex-1", "Share Purchase", model.ExerciseReady)

	submission := "my advice"
	sess := &model.Session{
		ID:          "sess-1",
		ExerciseID:  "ex-1",
		TraineeName: "Alex",
		Status:      model.SessionCompleted,
		StepResults: []model.StepResult{
			{StepID: "ex-1-s1", Submission: &submission, Grade: &model.StepGrade{Score: 15, MaxScore: 20}},
		},
		ChatHistory: []model.ChatMessage{
			{ID: "m1", Role: model.RoleTrainee, Content: "q"},
			{ID: "m2", Role: model.RoleSupervisor, Content: "a"},
		},
		FinalScore: &model.FinalScore{Overall: 75},
		StartedAt:  time.Now(),
	}
	if err := s.SaveSession(sess, 2); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	reports, err := s.ExportAllSessions()
	if err != nil {
		t.Fatalf("ExportAllSessions: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("expected 1 report, got %d", len(reports))
	}
	r := reports[0]
	if r.ExerciseTitle != "Share Purchase" {
		t.Errorf("exercise title = %q", r.ExerciseTitle)
	}
	if r.QuestionsAsked != 1 {
		t.Errorf("questions asked = %d, want 1", r.QuestionsAsked)
	}
	if len(r.Steps) != 1 || r.Steps[0].Title != "Draft" || r.Steps[0].MaxScore != 20 {
		t.Errorf("step report did not join exercise data: %+v", r.Steps)
	}
	if r.FinalScore == nil || r.FinalScore.Overall != 75 {
		t.Errorf("final score missing from report")
	}
}
