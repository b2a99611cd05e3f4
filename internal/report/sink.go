package report

import (
	"context"
	"errors"
)

// ErrHeaderMismatch is returned by EnsureHeader when the sink's stored
// header row differs from the wanted one and in-place rewriting is
// disabled. The row is still appended under the old header; callers report
// the mismatch alongside the grading result, never instead of it.
var ErrHeaderMismatch = errors.New("report: stored header row differs, rewrite disabled")

// Sink is the tabular store that receives report rows. Implementations are
// external adapters (Google Sheets, local .xlsx); their failures must stay
// a side-channel of grading.
//
// EnsureHeader compares the wanted header against the sink's first row and,
// when the adapter was configured to allow it, rewrites the header row in
// place. Rewriting does not migrate rows written under the old schema; that
// destructive behavior is opt-in.
type Sink interface {
	EnsureHeader(ctx context.Context, header []string) error
	Append(ctx context.Context, row []string) error
}

// CheckHeader is the shared header policy of all sinks. It returns
// (false, nil) when the stored first row already equals the wanted header,
// (true, nil) when the header should be written now, and ErrHeaderMismatch
// when a different header is stored and rewriting is disabled. An empty
// stored row is never a mismatch: a fresh sheet always gets its header.
func CheckHeader(current, want []string, allowRewrite bool) (write bool, err error) {
	if equal(current, want) {
		return false, nil
	}
	if len(current) > 0 && !allowRewrite {
		return false, ErrHeaderMismatch
	}
	return true, nil
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
