package model

import "time"

// TrainingExport is the top-level JSON structure for session result export.
type TrainingExport struct {
	CohortID    string          `json:"cohort_id"`
	Programme   string          `json:"programme"`
	Date        string          `json:"date"`
	NumSessions int             `json:"num_sessions"`
	Results     []SessionReport `json:"results"`
}

// SessionReport holds one session's outcome for export.
type SessionReport struct {
	SessionID     string       `json:"session_id"`
	ExerciseID    string       `json:"exercise_id"`
	ExerciseTitle string       `json:"exercise_title"`
	TraineeName   string       `json:"trainee_name"`
	Status        SessionStatus `json:"status"`
	StartedAt     time.Time    `json:"started_at"`
	CompletedAt   *time.Time   `json:"completed_at,omitempty"`
	Steps         []StepReport `json:"steps"`
	QuestionsAsked int         `json:"questions_asked"`
	FinalScore    *FinalScore  `json:"final_score,omitempty"`
}

// StepReport holds per-step data for export.
type StepReport struct {
	StepID     string     `json:"step_id"`
	Title      string     `json:"title"`
	Type       StepType   `json:"type"`
	MaxScore   int        `json:"max_score"`
	Submission *string    `json:"submission"`
	Grade      *StepGrade `json:"grade"`
}
