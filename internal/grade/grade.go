// Package grade scores a student's answer set against a template. The
// engine is pure: it assumes a resolved, validated template and never
// performs I/O, so concurrent grading needs no locking.
package grade

import (
	"math"

	"scangrade/internal/model"
)

// Grade evaluates a submission field by field in template order. Every
// field is always evaluated, so the report row and the displayed breakdown
// are complete even when answers are missing or wrong.
//
// A missing answer key counts as an empty answer, not an error. A field
// with no variants can never be correct, regardless of the answer.
func Grade(tpl model.Template, sub model.Submission) model.GradeResult {
	result := model.GradeResult{
		PerField:   make([]model.FieldResult, 0, len(tpl.Fields)),
		TotalCount: len(tpl.Fields),
	}

	for _, field := range tpl.Fields {
		raw := sub.Answers[field.ID]
		normalized := make([]string, len(field.Variants))
		for i, v := range field.Variants {
			normalized[i] = Normalize(v)
		}

		correct := false
		if len(normalized) > 0 {
			answer := Normalize(raw)
			for _, v := range normalized {
				if answer == v {
					correct = true
					break
				}
			}
		}
		if correct {
			result.CorrectCount++
		}

		result.PerField = append(result.PerField, model.FieldResult{
			FieldID:            field.ID,
			RawAnswer:          raw,
			NormalizedVariants: normalized,
			Correct:            correct,
		})
	}

	if result.TotalCount > 0 {
		pct := float64(result.CorrectCount) / float64(result.TotalCount) * 100
		result.Percentage = math.Round(pct*100) / 100
	}
	return result
}
