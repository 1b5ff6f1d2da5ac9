package model

// RedactForRole returns the view of an exercise appropriate for the given
// role. Supervisors and admins see the exercise as-is. Trainees get a copy
// with the rubric nulled, ideal-output and feedback documents removed, and
// every step stripped of its ideal output and grading criteria.
func RedactForRole(e Exercise, role UserRole) Exercise {
	if role != UserRoleTrainee {
		return e
	}
	return RedactForTrainee(e)
}

// RedactForTrainee produces the trainee view of an exercise. It never
// mutates the input.
func RedactForTrainee(e Exercise) Exercise {
	out := e
	out.Rubric = nil

	out.Documents = make([]UploadedDocument, 0, len(e.Documents))
	for _, d := range e.Documents {
		if d.Role == DocIdealOutput || d.Role == DocFeedback {
			continue
		}
		out.Documents = append(out.Documents, d)
	}

	out.Steps = make([]ExerciseStep, len(e.Steps))
	for i, s := range e.Steps {
		s.IdealOutput = nil
		s.GradingCriteria = []string{}
		out.Steps[i] = s
	}
	return out
}
