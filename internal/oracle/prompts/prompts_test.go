package prompts

import (
	"strings"
	"testing"

	"chambers/internal/model"
)

func TestGradingUser(t *testing.T) {
	ideal := "A careful advice note covering warranties."
	step := model.ExerciseStep{
		Title:           "Draft the advice note",
		Type:            model.StepDraft,
		Instruction:     "Advise the client on the draft SPA.",
		GradingCriteria: []string{"identifies warranties", "flags the indemnity"},
		IdealOutput:     &ideal,
		MaxScore:        20,
	}
	rubric := model.GradingRubric{
		OverallApproach: "methodical",
		KeyIssues:       []string{"warranty caps"},
		CriticalErrors:  []string{"missing the indemnity"},
		QualityMarkers:  []string{"clear structure"},
	}

	prompt := GradingUser(step, rubric, "my submission text")

	for _, want := range []string{
		step.Title, step.Instruction, ideal, "my submission text",
		"identifies warranties", "warranty caps", "missing the indemnity",
		"0-20",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt should contain %q", want)
		}
	}
}

func TestGradingUserNilIdealOutput(t *testing.T) {
	step := model.ExerciseStep{Title: "Review", MaxScore: 10}
	prompt := GradingUser(step, model.GradingRubric{}, "text")
	if !strings.Contains(prompt, "--- IDEAL OUTPUT (the benchmark) ---") {
		t.Error("prompt should still carry the ideal-output section")
	}
}

func TestQuestionAssessmentUser(t *testing.T) {
	t.Run("no prior questions", func(t *testing.T) {
		prompt := QuestionAssessmentUser("Is the deadline firm?", "exercise", "step", "guidance", nil)
		if !strings.Contains(prompt, "None") {
			t.Error("prompt should state no prior questions")
		}
		if !strings.Contains(prompt, "Is the deadline firm?") {
			t.Error("prompt should contain the question")
		}
	})

	t.Run("with prior questions", func(t *testing.T) {
		prompt := QuestionAssessmentUser("New q", "exercise", "step", "guidance", []string{"Old q one", "Old q two"})
		if strings.Contains(prompt, "None") {
			t.Error("prompt should not say None when priors exist")
		}
		if !strings.Contains(prompt, "1. Old q one") || !strings.Contains(prompt, "2. Old q two") {
			t.Error("prompt should number prior questions")
		}
	})
}

func TestChatResponderSystem(t *testing.T) {
	rubric := model.GradingRubric{OverallApproach: "methodical", KeyIssues: []string{"warranty caps"}}
	step := model.ExerciseStep{Title: "Draft", Instruction: "Advise the client."}

	prompt := ChatResponderSystem(rubric, step)
	for _, want := range []string{"Draft", "Advise the client.", "methodical", "warranty caps", "Do NOT reveal the ideal output"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt should contain %q", want)
		}
	}
}

func TestChatResponderUserWindowsHistory(t *testing.T) {
	var history []model.ChatMessage
	for i := 0; i < 15; i++ {
		role := model.RoleTrainee
		if i%2 == 1 {
			role = model.RoleSupervisor
		}
		history = append(history, model.ChatMessage{Role: role, Content: "-msg-" + string(rune('a'+i))})
	}

	prompt := ChatResponderUser(history, "latest question")
	if strings.Contains(prompt, "-msg-a") {
		t.Error("oldest message should fall outside the replay window")
	}
	if !strings.Contains(prompt, "-msg-o") {
		t.Error("newest history message missing")
	}
	if !strings.Contains(prompt, "Trainee: latest question") {
		t.Error("new message missing")
	}
	if !strings.Contains(prompt, "Supervisor:") {
		t.Error("supervisor turns should be labelled")
	}
}

func TestChatResponderUserNoHistory(t *testing.T) {
	prompt := ChatResponderUser(nil, "first question")
	if strings.Contains(prompt, "Recent conversation") {
		t.Error("empty history should omit the conversation header")
	}
	if !strings.Contains(prompt, "Trainee: first question") {
		t.Error("message missing")
	}
}

func TestFinalReportUser(t *testing.T) {
	steps := []model.GradedStepSummary{
		{Title: "Draft", Score: 15, MaxScore: 20, Feedback: "decent structure"},
	}
	quality := model.QuestionQuality{Useful: 2, NotUseful: 1}

	prompt := FinalReportUser("Share Purchase Review", steps, quality)
	for _, want := range []string{"Share Purchase Review", "Draft: 15/20", "decent structure", "Questions asked: 3 total", "Useful/relevant: 2"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt should contain %q", want)
		}
	}
}

func TestGenerationPrompts(t *testing.T) {
	system := GenerationSystem(240)
	if !strings.Contains(system, "approximately 240 minutes") {
		t.Error("system prompt should carry the duration budget")
	}
	if !strings.Contains(system, `"steps"`) || !strings.Contains(system, `"rubric"`) {
		t.Error("system prompt should spell out the JSON contract")
	}

	docs := []model.UploadedDocument{
		{ID: "d1", Role: model.DocInstruction, Label: "Client brief", Filename: "brief.pdf", ExtractedText: "the facts"},
		{ID: "d2", Role: model.DocIdealOutput, Label: "Partner note", Filename: "note.docx", ExtractedText: "the answer"},
	}
	user := GenerationUser("Lease Review", "property", docs)
	for _, want := range []string{"Lease Review", "property", "Document ID: d1", "the facts", "Document ID: d2", "ideal-output"} {
		if !strings.Contains(user, want) {
			t.Errorf("user prompt should contain %q", want)
		}
	}
}
