package report

import (
	"strconv"
	"time"

	"scangrade/internal/model"
)

// BaseHeaders are the fixed leading report columns; synthesized per-field
// headers follow them.
var BaseHeaders = []string{
	"Template", "Student", "Class", "Date", "Time", "Correct", "Total", "Percent",
}

// HeaderRow builds the full header row for a template.
func HeaderRow(tpl model.Template) []string {
	header := make([]string, 0, len(BaseHeaders)+len(tpl.Fields))
	header = append(header, BaseHeaders...)
	return append(header, SynthesizeHeaders(tpl)...)
}

// Row builds one report row: the base values followed by the raw submitted
// answer for each field, taken from the grading result in field order.
func Row(tpl model.Template, student model.StudentInfo, res model.GradeResult, submittedAt time.Time) []string {
	row := make([]string, 0, len(BaseHeaders)+len(res.PerField))
	row = append(row,
		tpl.DisplayName(),
		student.Name,
		student.Class,
		submittedAt.Format("2006-01-02"),
		submittedAt.Format("15:04:05"),
		strconv.Itoa(res.CorrectCount),
		strconv.Itoa(res.TotalCount),
		strconv.FormatFloat(res.Percentage, 'f', 2, 64)+"%",
	)
	for _, fr := range res.PerField {
		row = append(row, fr.RawAnswer)
	}
	return row
}
