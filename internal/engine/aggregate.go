package engine

import (
	"context"
	"math"

	"chambers/internal/apperr"
	"chambers/internal/model"
)

// buildFinalScore folds the session's graded steps and question scores into
// a final report, invoking the oracle once for the narrative portion. A
// failed narrative call aborts the whole completion.
func (e *Engine) buildFinalScore(ctx context.Context, sess *model.Session, ex *model.Exercise) (*model.FinalScore, error) {
	graded := gradedStepSummaries(sess, ex)
	quality := questionQuality(sess.QuestionScores)

	narrative, err := e.oracle.Summarize(ctx, ex.Title, graded, quality)
	if err != nil {
		return nil, apperr.Collaborator("final report", err)
	}

	stepScores := make([]model.StepScore, 0, len(graded))
	for _, g := range graded {
		stepScores = append(stepScores, model.StepScore{
			StepID:   g.StepID,
			Score:    g.Score,
			MaxScore: g.MaxScore,
		})
	}

	return &model.FinalScore{
		Overall:             overallScore(graded),
		StepScores:          stepScores,
		QuestionQuality:     quality,
		Strengths:           narrative.Strengths,
		AreasForDevelopment: narrative.AreasForDevelopment,
		OverallFeedback:     narrative.OverallFeedback,
	}, nil
}

// gradedStepSummaries joins each graded step result to its exercise step for
// a human title. Ungraded steps are skipped.
func gradedStepSummaries(sess *model.Session, ex *model.Exercise) []model.GradedStepSummary {
	var graded []model.GradedStepSummary
	for _, r := range sess.StepResults {
		if r.Grade == nil {
			continue
		}
		summary := model.GradedStepSummary{
			StepID:   r.StepID,
			Score:    r.Grade.Score,
			MaxScore: r.Grade.MaxScore,
			Feedback: r.Grade.Feedback,
		}
		if step, _ := ex.StepByID(r.StepID); step != nil {
			summary.Title = step.Title
		}
		graded = append(graded, summary)
	}
	return graded
}

// overallScore is round(100 * sum(score) / sum(maxScore)), or 0 when the
// exercise carries no gradable weight.
func overallScore(graded []model.GradedStepSummary) int {
	var total, totalMax int
	for _, g := range graded {
		total += g.Score
		totalMax += g.MaxScore
	}
	if totalMax == 0 {
		return 0
	}
	return int(math.Round(float64(total) / float64(totalMax) * 100))
}

// questionQuality tallies ratings. A session with no questions asked has a
// ratio of 1.0: absence of evidence is not penalized.
func questionQuality(scores []model.QuestionScore) model.QuestionQuality {
	q := model.QuestionQuality{Ratio: 1.0}
	for _, s := range scores {
		if s.Rating == model.RatingUseful {
			q.Useful++
		} else {
			q.NotUseful++
		}
	}
	if total := q.Useful + q.NotUseful; total > 0 {
		q.Ratio = float64(q.Useful) / float64(total)
	}
	return q
}
