package engine

import (
	"testing"

	"chambers/internal/model"
)

func TestOverallScore(t *testing.T) {
	tests := []struct {
		name   string
		graded []model.GradedStepSummary
		want   int
	}{
		{"no graded steps", nil, 0},
		{"zero total weight", []model.GradedStepSummary{
			{Score: 0, MaxScore: 0},
		}, 0},
		{"perfect", []model.GradedStepSummary{
			{Score: 20, MaxScore: 20},
			{Score: 10, MaxScore: 10},
		}, 100},
		{"three quarters", []model.GradedStepSummary{
			{Score: 15, MaxScore: 20},
		}, 75},
		{"rounds", []model.GradedStepSummary{
			{Score: 1, MaxScore: 3},
		}, 33},
		{"rounds up", []model.GradedStepSummary{
			{Score: 2, MaxScore: 3},
		}, 67},
		{"zero-weight steps ignored in ratio", []model.GradedStepSummary{
			{Score: 0, MaxScore: 0},
			{Score: 10, MaxScore: 20},
		}, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := overallScore(tt.graded); got != tt.want {
				t.Errorf("overallScore() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestQuestionQuality(t *testing.T) {
	tests := []struct {
		name      string
		scores    []model.QuestionScore
		useful    int
		notUseful int
		ratio     float64
	}{
		{"no questions defaults to 1.0", nil, 0, 0, 1.0},
		{"all useful", []model.QuestionScore{
			{Rating: model.RatingUseful},
			{Rating: model.RatingUseful},
		}, 2, 0, 1.0},
		{"all not useful", []model.QuestionScore{
			{Rating: model.RatingNotUseful},
		}, 0, 1, 0},
		{"mixed", []model.QuestionScore{
			{Rating: model.RatingUseful},
			{Rating: model.RatingNotUseful},
			{Rating: model.RatingUseful},
			{Rating: model.RatingUseful},
		}, 3, 1, 0.75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := questionQuality(tt.scores)
			if got.Useful != tt.useful || got.NotUseful != tt.notUseful {
				t.Errorf("tally = %d/%d, want %d/%d", got.Useful, got.NotUseful, tt.useful, tt.notUseful)
			}
			if got.Ratio != tt.ratio {
				t.Errorf("ratio = %v, want %v", got.Ratio, tt.ratio)
			}
		})
	}
}

func TestGradedStepSummariesSkipsUngraded(t *testing.T) {
	ex := &model.Exercise{
		Steps: []model.ExerciseStep{
			{ID: "a", Title: "First"},
			{ID: "b", Title: "Second"},
		},
	}
	sess := &model.Session{
		StepResults: []model.StepResult{
			{StepID: "a", Grade: &model.StepGrade{Score: 5, MaxScore: 10, Feedback: "ok"}},
			{StepID: "b"},
		},
	}

	graded := gradedStepSummaries(sess, ex)
	if len(graded) != 1 {
		t.Fatalf("expected 1 graded summary, got %d", len(graded))
	}
	if graded[0].Title != "First" {
		t.Errorf("title = %q, want First", graded[0].Title)
	}
	if graded[0].Score != 5 || graded[0].MaxScore != 10 {
		t.Errorf("scores = %d/%d, want 5/10", graded[0].Score, graded[0].MaxScore)
	}
}
