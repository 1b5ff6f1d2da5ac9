package model

import (
	"context"
	"time"
)

// UserRole represents a user's access level (distinct from ChatRole which is
// the role of a transcript message).
type UserRole string

const (
	// UserRoleTrainee is a trainee user working through sessions.
	UserRoleTrainee UserRole = "trainee"
	// UserRoleSupervisor is a supervising solicitor who authors exercises.
	UserRoleSupervisor UserRole = "supervisor"
	// UserRoleAdmin is an admin user.
	UserRoleAdmin UserRole = "admin"
)

// User represents a system user.
type User struct {
	ID           int64
	Username     string
	DisplayName  string
	PasswordHash string
	Role         UserRole
	Active       bool
	CreatedAt    time.Time
}

// AuthSession represents an authentication session.
type AuthSession struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

// StepType classifies the kind of work a step asks for.
type StepType string

const (
	StepRead     StepType = "read"
	StepDraft    StepType = "draft"
	StepEmail    StepType = "email"
	StepReview   StepType = "review"
	StepIdentify StepType = "identify"
	StepAdvise   StepType = "advise"
)

// DocumentRole describes why a document was attached to an exercise.
type DocumentRole string

const (
	DocInstruction    DocumentRole = "instruction"
	DocSourceMaterial DocumentRole = "source-material"
	DocIdealOutput    DocumentRole = "ideal-output"
	DocCorrespondence DocumentRole = "correspondence"
	DocFeedback       DocumentRole = "feedback"
	DocReference      DocumentRole = "reference"
)

// ExerciseStatus is the catalog lifecycle state of an exercise.
type ExerciseStatus string

const (
	ExerciseDraft      ExerciseStatus = "draft"
	ExerciseGenerating ExerciseStatus = "generating"
	ExerciseReady      ExerciseStatus = "ready"
)

// Difficulty is the seniority level an exercise targets.
type Difficulty string

const (
	DifficultyJunior Difficulty = "junior"
	DifficultyMid    Difficulty = "mid"
	DifficultySenior Difficulty = "senior"
)

// SessionStatus is the lifecycle state of a training session.
type SessionStatus string

const (
	SessionInProgress SessionStatus = "in-progress"
	SessionCompleted  SessionStatus = "completed"
	SessionAbandoned  SessionStatus = "abandoned"
)

// ChatRole is the author of a transcript message.
type ChatRole string

const (
	RoleTrainee    ChatRole = "trainee"
	RoleSupervisor ChatRole = "supervisor"
)

// QuestionRating is the oracle's verdict on a trainee question.
type QuestionRating string

const (
	RatingUseful    QuestionRating = "useful"
	RatingNotUseful QuestionRating = "not-useful"
)

// UploadedDocument is a matter document attached to an exercise. Text
// extraction happens outside this system; callers supply ExtractedText.
type UploadedDocument struct {
	ID            string       `json:"id"`
	ExerciseID    string       `json:"exerciseId"`
	Filename      string       `json:"filename"`
	MimeType      string       `json:"mimeType"`
	Role          DocumentRole `json:"role"`
	Label         string       `json:"label"`
	ExtractedText string       `json:"extractedText"`
	UploadedAt    time.Time    `json:"uploadedAt"`
}

// ExerciseStep is one unit of work in an exercise. Steps are immutable once
// the owning exercise is ready. Order is dense and 0-indexed. Read steps
// carry no ideal output and a MaxScore of 0.
type ExerciseStep struct {
	ID               string   `json:"id"`
	Order            int      `json:"order"`
	Title            string   `json:"title"`
	Instruction      string   `json:"instruction"`
	Type             StepType `json:"type"`
	VisibleDocuments []string `json:"visibleDocuments"`
	IdealOutput      *string  `json:"idealOutput"`
	GradingCriteria  []string `json:"gradingCriteria"`
	MaxScore         int      `json:"maxScore"`
}

// GradingRubric is free-text grading guidance consumed only by the scoring
// oracle. It is never shown to trainees.
type GradingRubric struct {
	OverallApproach           string   `json:"overallApproach"`
	KeyIssues                 []string `json:"keyIssues"`
	CriticalErrors            []string `json:"criticalErrors"`
	QualityMarkers            []string `json:"qualityMarkers"`
	QuestionRelevanceGuidance string   `json:"questionRelevanceGuidance"`
}

// Exercise is a supervisor-authored training template.
type Exercise struct {
	ID                       string             `json:"id"`
	Title                    string             `json:"title"`
	Description              string             `json:"description"`
	MatterType               string             `json:"matterType"`
	Difficulty               Difficulty         `json:"difficulty"`
	EstimatedDurationMinutes int                `json:"estimatedDurationMinutes"`
	Documents                []UploadedDocument `json:"documents"`
	Steps                    []ExerciseStep     `json:"steps"`
	Rubric                   *GradingRubric     `json:"rubric"`
	Narrative                string             `json:"narrative"`
	Status                   ExerciseStatus     `json:"status"`
	CreatedAt                time.Time          `json:"createdAt"`
	UpdatedAt                time.Time          `json:"updatedAt"`
}

// StepByID returns the step with the given id and its index, or nil and -1.
func (e *Exercise) StepByID(stepID string) (*ExerciseStep, int) {
	for i := range e.Steps {
		if e.Steps[i].ID == stepID {
			return &e.Steps[i], i
		}
	}
	return nil, -1
}

// StepGrade is the oracle's (or, for read steps, a synthesized) grade for a
// single step submission.
type StepGrade struct {
	Score          int      `json:"score"`
	MaxScore       int      `json:"maxScore"`
	Feedback       string   `json:"feedback"`
	Strengths      []string `json:"strengths"`
	Improvements   []string `json:"improvements"`
	CriticalIssues []string `json:"criticalIssues"`
}

// StepResult tracks a trainee's progress on one step. A non-nil Grade is the
// sole definition of "step completed". Results reference steps by stable id,
// never by list position.
type StepResult struct {
	StepID      string     `json:"stepId"`
	Submission  *string    `json:"submission"`
	Grade       *StepGrade `json:"grade"`
	SubmittedAt *time.Time `json:"submittedAt"`
}

// ChatMessage is one entry in a session's append-only transcript.
type ChatMessage struct {
	ID        string    `json:"id"`
	Role      ChatRole  `json:"role"`
	Content   string    `json:"content"`
	StepID    string    `json:"stepId"`
	Timestamp time.Time `json:"timestamp"`
}

// QuestionScore is the oracle's usefulness verdict for one trainee message.
type QuestionScore struct {
	MessageID string         `json:"messageId"`
	Rating    QuestionRating `json:"rating"`
	Reasoning string         `json:"reasoning"`
}

// StepScore is a per-step score line in the final report.
type StepScore struct {
	StepID   string `json:"stepId"`
	Score    int    `json:"score"`
	MaxScore int    `json:"maxScore"`
}

// QuestionQuality tallies the usefulness of all questions asked. Ratio is
// 1.0 when no questions were asked.
type QuestionQuality struct {
	Useful    int     `json:"useful"`
	NotUseful int     `json:"notUseful"`
	Ratio     float64 `json:"ratio"`
}

// FinalScore is the one-time aggregate report produced when a session
// completes. Immutable thereafter.
type FinalScore struct {
	Overall             int             `json:"overall"`
	StepScores          []StepScore     `json:"stepScores"`
	QuestionQuality     QuestionQuality `json:"questionQuality"`
	Strengths           []string        `json:"strengths"`
	AreasForDevelopment []string        `json:"areasForDevelopment"`
	OverallFeedback     string          `json:"overallFeedback"`
}

// Session is one trainee's attempt at an exercise. Version backs the store's
// compare-and-swap save and is not part of the document itself.
type Session struct {
	ID               string          `json:"id"`
	ExerciseID       string          `json:"exerciseId"`
	TraineeName      string          `json:"traineeName"`
	CurrentStepIndex int             `json:"currentStepIndex"`
	Status           SessionStatus   `json:"status"`
	StepResults      []StepResult    `json:"stepResults"`
	ChatHistory      []ChatMessage   `json:"chatHistory"`
	QuestionScores   []QuestionScore `json:"questionScores"`
	FinalScore       *FinalScore     `json:"finalScore"`
	StartedAt        time.Time       `json:"startedAt"`
	LastActivityAt   time.Time       `json:"lastActivityAt"`
	CompletedAt      *time.Time      `json:"completedAt"`

	Version int64 `json:"-"`
}

// ResultFor returns the step result for the given step id, or nil.
func (s *Session) ResultFor(stepID string) *StepResult {
	for i := range s.StepResults {
		if s.StepResults[i].StepID == stepID {
			return &s.StepResults[i]
		}
	}
	return nil
}

// TraineeQuestions returns the contents of all trainee messages in
// transcript order.
func (s *Session) TraineeQuestions() []string {
	var qs []string
	for _, m := range s.ChatHistory {
		if m.Role == RoleTrainee {
			qs = append(qs, m.Content)
		}
	}
	return qs
}

// GradeOutcome is the oracle's raw grading verdict. Score is unclamped; the
// engine bounds it before storing.
type GradeOutcome struct {
	Score          float64  `json:"score"`
	Feedback       string   `json:"feedback"`
	Strengths      []string `json:"strengths"`
	Improvements   []string `json:"improvements"`
	CriticalIssues []string `json:"criticalIssues"`
}

// QuestionAssessment is the oracle's verdict on a single trainee question.
type QuestionAssessment struct {
	Rating    QuestionRating `json:"rating"`
	Reasoning string         `json:"reasoning"`
}

// GradedStepSummary is the per-step input to the final report call.
type GradedStepSummary struct {
	StepID   string `json:"stepId"`
	Title    string `json:"title"`
	Score    int    `json:"score"`
	MaxScore int    `json:"maxScore"`
	Feedback string `json:"feedback"`
}

// FinalNarrative is the oracle's free-text portion of the final report.
type FinalNarrative struct {
	OverallFeedback     string   `json:"overallFeedback"`
	Strengths           []string `json:"strengths"`
	AreasForDevelopment []string `json:"areasForDevelopment"`
}

// GeneratedExercise is the output of the exercise generation call: the step
// list, rubric, and narrative briefing that replace an exercise's content
// wholesale on success.
type GeneratedExercise struct {
	Steps     []ExerciseStep `json:"steps"`
	Rubric    GradingRubric  `json:"rubric"`
	Narrative string         `json:"narrative"`
}
