package verify

import (
	"fmt"
	"io"
)

// Summary aggregates the outcome of a whole verification run.
type Summary struct {
	// Total is the number of narinfos examined.
	Total int

	// Errors counts failed narinfo/nar_file verifications. One failed
	// combination counts once, regardless of how many individual checks
	// it failed.
	Errors int

	// Unverified counts hash comparisons that could not be attempted.
	// They are reported but don't count as failures on their own.
	Unverified int
}

// Failed reports whether the run found any error.
func (s *Summary) Failed() bool {
	return s.Errors > 0
}

func (s *Summary) write(w io.Writer) {
	if s.Errors == 0 {
		fmt.Fprintf(w, "SUCCESS: all %d narinfo(s) passed verification.\n", s.Total)

		return
	}

	fmt.Fprintf(w, "FAILURE: %d error(s) found across %d narinfo(s).\n", s.Errors, s.Total)
}

// entryReport collects the report block of a single narinfo. Blocks are
// assembled off to the side and written to the shared output in one piece,
// so concurrent workers can't interleave lines.
type entryReport struct {
	header     string
	lines      []string
	failures   int
	unverified int
}

func (r *entryReport) pass(format string, args ...any) {
	r.lines = append(r.lines, "  [PASS] "+fmt.Sprintf(format, args...))
}

// fail records one failed verification with a single reason.
func (r *entryReport) fail(format string, args ...any) {
	r.lines = append(r.lines, "  [FAIL] "+fmt.Sprintf(format, args...))
	r.failures++
}

// failAll records one failed verification with itemized reasons.
func (r *entryReport) failAll(reasons []string) {
	for _, reason := range reasons {
		r.lines = append(r.lines, "  [FAIL] "+reason)
	}

	r.failures++
}

func (r *entryReport) unverifiedLines(reasons []string) {
	for _, reason := range reasons {
		r.lines = append(r.lines, "  [UNVERIFIED] "+reason)
	}

	r.unverified += len(reasons)
}

func (r *entryReport) write(w io.Writer) {
	fmt.Fprintln(w, r.header)

	for _, line := range r.lines {
		fmt.Fprintln(w, line)
	}

	fmt.Fprintln(w)
}
