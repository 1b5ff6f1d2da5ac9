package store

import (
	"fmt"

	"chambers/internal/model"
)

// ExportAllSessions builds export-ready reports from every stored session,
// joining step results to their exercise steps for titles and weights.
func (s *Store) ExportAllSessions() ([]model.SessionReport, error) {
	sessions, err := s.ListSessions()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	// Exercises are shared between sessions; load each once.
	exercises := make(map[string]*model.Exercise)

	var reports []model.SessionReport
	for _, sess := range sessions {
		ex, ok := exercises[sess.ExerciseID]
		if !ok {
			ex, err = s.GetExercise(sess.ExerciseID)
			if err != nil {
				return nil, fmt.Errorf("get exercise %s: %w", sess.ExerciseID, err)
			}
			exercises[sess.ExerciseID] = ex
		}

		report := model.SessionReport{
			SessionID:   sess.ID,
			ExerciseID:  sess.ExerciseID,
			TraineeName: sess.TraineeName,
			Status:      sess.Status,
			StartedAt:   sess.StartedAt,
			CompletedAt: sess.CompletedAt,
			FinalScore:  sess.FinalScore,
		}
		if ex != nil {
			report.ExerciseTitle = ex.Title
		}

		for _, r := range sess.StepResults {
			sr := model.StepReport{
				StepID:     r.StepID,
				Submission: r.Submission,
				Grade:      r.Grade,
			}
			if ex != nil {
				if step, _ := ex.StepByID(r.StepID); step != nil {
					sr.Title = step.Title
					sr.Type = step.Type
					sr.MaxScore = step.MaxScore
				}
			}
			report.Steps = append(report.Steps, sr)
		}

		for _, m := range sess.ChatHistory {
			if m.Role == model.RoleTrainee {
				report.QuestionsAsked++
			}
		}

		reports = append(reports, report)
	}

	return reports, nil
}
