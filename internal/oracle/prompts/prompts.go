// Package prompts builds the system and user prompts for every scoring-
// oracle call.
package prompts

import (
	"fmt"
	"strings"

	"chambers/internal/model"
)

// GradingSystem frames the grading call.
const GradingSystem = `You are a senior supervising solicitor grading a trainee's work.
Be fair but rigorous. You are comparing their submission against an ideal output produced by an experienced solicitor for the same matter.

The maximum score for this step will be provided. Your score MUST be between 0 and maxScore (inclusive). Never exceed maxScore.

Weight your assessment:
- Substantive accuracy (40%): correct identification of issues, right legal position
- Drafting quality (25%): clarity, precision, appropriate tone and register
- Completeness (20%): all key points addressed
- Practical judgment (15%): sensible prioritisation, commercial awareness

CRITICAL: Your entire response must be a single JSON object. No markdown, no headers, no commentary before or after the JSON. Start your response with { and end with }.

Required JSON format:
{"score": <number between 0 and maxScore>, "feedback": "<string>", "strengths": ["<string>"], "improvements": ["<string>"], "criticalIssues": ["<string>"]}`

// GradingUser builds the user prompt for grading one submission.
func GradingUser(step model.ExerciseStep, rubric model.GradingRubric, submission string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Step: %s\n", step.Title)
	fmt.Fprintf(&sb, "Type: %s\n", step.Type)
	fmt.Fprintf(&sb, "Maximum score: %d (your score must be 0-%d)\n", step.MaxScore, step.MaxScore)
	fmt.Fprintf(&sb, "Instruction given to trainee: %s\n\n", step.Instruction)

	sb.WriteString("Grading criteria for this step:\n")
	for i, c := range step.GradingCriteria {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, c)
	}

	fmt.Fprintf(&sb, "\nOverall approach expected: %s\n", rubric.OverallApproach)
	fmt.Fprintf(&sb, "Key issues to identify: %s\n", strings.Join(rubric.KeyIssues, ", "))
	fmt.Fprintf(&sb, "Critical errors to watch for: %s\n", strings.Join(rubric.CriticalErrors, ", "))
	fmt.Fprintf(&sb, "Quality markers: %s\n\n", strings.Join(rubric.QualityMarkers, ", "))

	idealOutput := ""
	if step.IdealOutput != nil {
		idealOutput = *step.IdealOutput
	}
	sb.WriteString("--- IDEAL OUTPUT (the benchmark) ---\n")
	sb.WriteString(idealOutput)
	sb.WriteString("\n--- END IDEAL OUTPUT ---\n\n")

	sb.WriteString("--- TRAINEE SUBMISSION ---\n")
	sb.WriteString(submission)
	sb.WriteString("\n--- END TRAINEE SUBMISSION ---\n\n")

	sb.WriteString("Grade the trainee's submission against the ideal output. Respond with JSON only - no markdown, no commentary.")
	return sb.String()
}

// QuestionAssessmentSystem frames the question-quality call.
const QuestionAssessmentSystem = `You are assessing whether a trainee solicitor's question during a simulated matter exercise is useful and relevant.

A useful question:
- Seeks clarification genuinely needed to proceed correctly
- Shows engagement with the material
- Would be appropriate to ask a supervisor in practice
- Demonstrates analytical thinking

A not-useful question:
- Asks for the answer directly
- Could be resolved by reading the available documents
- Is irrelevant to the current task
- Shows lack of effort or attention
- Repeats a question already asked

You MUST respond with valid JSON only:
{
  "rating": "useful" or "not-useful",
  "reasoning": "string"
}`

// QuestionAssessmentUser builds the user prompt for assessing one question.
func QuestionAssessmentUser(question, exerciseContext, stepContext, relevanceGuidance string, priorQuestions []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Exercise context: %s\n", exerciseContext)
	fmt.Fprintf(&sb, "Current step: %s\n", stepContext)
	fmt.Fprintf(&sb, "Relevance guidance: %s\n\n", relevanceGuidance)

	sb.WriteString("Previous questions asked by this trainee:\n")
	if len(priorQuestions) == 0 {
		sb.WriteString("None\n")
	} else {
		for i, q := range priorQuestions {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, q)
		}
	}

	fmt.Fprintf(&sb, "\nNew question from trainee:\n%q\n\nAssess this question.", question)
	return sb.String()
}

// ChatResponderSystem frames the supervisor-reply call around the current
// step and the rubric's expected approach.
func ChatResponderSystem(rubric model.GradingRubric, step model.ExerciseStep) string {
	var sb strings.Builder
	sb.WriteString("You are a supervising solicitor guiding a trainee through a matter exercise.\n")
	sb.WriteString("You should respond helpfully but not give away answers.\n\n")
	sb.WriteString("Guidelines:\n")
	sb.WriteString("- Answer clarifying questions directly\n")
	sb.WriteString("- For questions seeking the answer, redirect: \"What do you think? Consider...\"\n")
	sb.WriteString("- Give hints proportional to the quality of the question\n")
	sb.WriteString("- Stay in character as a busy but supportive supervisor\n")
	sb.WriteString("- Be concise - supervisors don't write essays in response to quick questions\n")
	sb.WriteString("- If the question reveals a misunderstanding, correct it gently\n\n")
	fmt.Fprintf(&sb, "Current step: %s\n", step.Title)
	fmt.Fprintf(&sb, "Step instruction: %s\n", step.Instruction)
	fmt.Fprintf(&sb, "Overall approach expected: %s\n", rubric.OverallApproach)
	fmt.Fprintf(&sb, "Key issues in this matter: %s\n\n", strings.Join(rubric.KeyIssues, ", "))
	sb.WriteString("Do NOT reveal the ideal output or tell the trainee what to write. Guide them toward the right approach.")
	return sb.String()
}

// chatHistoryWindow bounds how much transcript is replayed to the oracle.
const chatHistoryWindow = 10

// ChatResponderUser builds the user prompt from the recent transcript and
// the new message.
func ChatResponderUser(history []model.ChatMessage, message string) string {
	if len(history) > chatHistoryWindow {
		history = history[len(history)-chatHistoryWindow:]
	}

	var sb strings.Builder
	if len(history) > 0 {
		sb.WriteString("Recent conversation:\n")
		for _, m := range history {
			role := "Trainee"
			if m.Role == model.RoleSupervisor {
				role = "Supervisor"
			}
			fmt.Fprintf(&sb, "%s: %s\n", role, m.Content)
		}
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "Trainee: %s", message)
	return sb.String()
}

// FinalReportSystem frames the end-of-session narrative call.
const FinalReportSystem = `You are a senior partner writing an end-of-matter assessment for a trainee solicitor who completed a simulated training exercise.

Write a professional, constructive assessment. Be specific about what they did well and where they need to develop. Reference specific steps and submissions where relevant.

You MUST respond with valid JSON only:
{
  "overallFeedback": "string - 2-3 paragraph narrative assessment",
  "strengths": ["string"],
  "areasForDevelopment": ["string"]
}`

// FinalReportUser builds the user prompt summarizing graded steps and the
// question tally.
func FinalReportUser(exerciseTitle string, steps []model.GradedStepSummary, quality model.QuestionQuality) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Exercise: %s\n\n", exerciseTitle)
	sb.WriteString("Step results:\n")
	for _, s := range steps {
		fmt.Fprintf(&sb, "- %s: %d/%d\n  Feedback: %s\n", s.Title, s.Score, s.MaxScore, s.Feedback)
	}
	fmt.Fprintf(&sb, "\nQuestions asked: %d total\n", quality.Useful+quality.NotUseful)
	fmt.Fprintf(&sb, "- Useful/relevant: %d\n", quality.Useful)
	fmt.Fprintf(&sb, "- Not useful/irrelevant: %d\n\n", quality.NotUseful)
	sb.WriteString("Write the final assessment.")
	return sb.String()
}

// GenerationSystem frames the exercise-generation call.
func GenerationSystem(estimatedMinutes int) string {
	var sb strings.Builder
	sb.WriteString("You are an expert legal training designer for a UK law firm.\n")
	sb.WriteString("You create realistic, structured training exercises for trainee solicitors based on real matter documents provided by a supervising solicitor.\n\n")
	sb.WriteString("Your task: analyse the uploaded documents and generate a step-by-step training exercise that simulates working on this matter from start to finish.\n\n")
	sb.WriteString("The exercise must:\n")
	fmt.Fprintf(&sb, "- Be completable in approximately %d minutes\n", estimatedMinutes)
	sb.WriteString("- Progress logically through the matter\n")
	sb.WriteString("- Give the trainee only the documents they would realistically have at each stage\n")
	sb.WriteString("- Hold back the \"ideal output\" documents - those define the correct answer, not material for the trainee\n")
	sb.WriteString("- Include a mix of step types: reading, drafting, reviewing, emailing, advising\n")
	sb.WriteString("- Test genuine legal skills, not just copy-paste ability\n\n")
	sb.WriteString("Step types available: read, draft, email, review, identify, advise\n\n")
	sb.WriteString("You MUST respond with valid JSON only - no markdown fences, no commentary. The JSON must match this structure exactly:\n")
	sb.WriteString(`{
  "steps": [
    {
      "id": "step-1",
      "order": 0,
      "title": "string",
      "instruction": "markdown string",
      "type": "read|draft|email|review|identify|advise",
      "visibleDocuments": ["document-id-1"],
      "idealOutput": "string or null for read steps",
      "gradingCriteria": ["criterion 1", "criterion 2"],
      "maxScore": number
    }
  ],
  "rubric": {
    "overallApproach": "string",
    "keyIssues": ["issue 1"],
    "criticalErrors": ["error 1"],
    "qualityMarkers": ["marker 1"],
    "questionRelevanceGuidance": "string"
  },
  "narrative": "markdown string - the full exercise briefing document"
}`)
	return sb.String()
}

// GenerationUser builds the user prompt listing every uploaded document with
// its role and extracted text.
func GenerationUser(title, matterType string, docs []model.UploadedDocument) string {
	var sb strings.Builder
	sb.WriteString("Create a training exercise for the following matter:\n\n")
	fmt.Fprintf(&sb, "Title: %s\n", title)
	fmt.Fprintf(&sb, "Matter Type: %s\n\n", matterType)
	sb.WriteString("The supervising solicitor has uploaded the following documents:\n\n")
	for _, d := range docs {
		fmt.Fprintf(&sb, "--- Document ID: %s ---\n", d.ID)
		fmt.Fprintf(&sb, "Role: %s\n", d.Role)
		fmt.Fprintf(&sb, "Label: %s\n", d.Label)
		fmt.Fprintf(&sb, "Filename: %s\n\n", d.Filename)
		fmt.Fprintf(&sb, "Content:\n%s\n---\n\n", d.ExtractedText)
	}
	sb.WriteString("Generate the exercise steps, grading rubric, and narrative briefing document.\n")
	sb.WriteString("Remember: documents with role \"ideal-output\" should NOT be shown to the trainee - use them only to define the correct answer and grading criteria.\n")
	sb.WriteString("Documents with role \"instruction\" or \"source-material\" are what the trainee will see.")
	return sb.String()
}
