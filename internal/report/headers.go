// Package report turns a template and a grading result into rows for a
// tabular report sink. Header synthesis and row assembly both iterate the
// template's field order, so columns stay aligned across submissions.
package report

import (
	"fmt"
	"regexp"
	"strings"

	"scangrade/internal/model"
)

// maxHeaderLen is the rune limit for a synthesized column header.
const maxHeaderLen = 30

// headerStripRE drops everything except Unicode letters, digits,
// underscore, hyphen, apostrophe and spaces. Script-agnostic on purpose:
// answer keys may be Cyrillic, Latin or mixed.
var headerStripRE = regexp.MustCompile(`[^\p{L}\p{N}_\- ']+`)

// SynthesizeHeaders derives one column header per field, in field order.
// The seed is the field's first variant (the preferred spelling), cleaned
// and truncated; fields with no usable seed fall back to "Question N".
// Exact duplicates of an earlier header get a " (N)" suffix, where N is the
// 1-based field position.
func SynthesizeHeaders(tpl model.Template) []string {
	headers := make([]string, 0, len(tpl.Fields))
	for i, f := range tpl.Fields {
		var h string
		if len(f.Variants) > 0 {
			h = cleanHeader(f.Variants[0])
		}
		if h == "" {
			h = fmt.Sprintf("Question %d", i+1)
		}
		for _, prev := range headers {
			if prev == h {
				h = fmt.Sprintf("%s (%d)", h, i+1)
				break
			}
		}
		headers = append(headers, h)
	}
	return headers
}

func cleanHeader(seed string) string {
	cleaned := headerStripRE.ReplaceAllString(seed, "")
	if r := []rune(cleaned); len(r) > maxHeaderLen {
		cleaned = string(r[:maxHeaderLen])
	}
	return strings.TrimSpace(cleaned)
}
