// Package diag classifies build tool output lines as warnings or errors.
//
// Two diagnostic formats are recognized: lines beginning with "warning:"
// and lines beginning with "error" or "error[CODE]:". ANSI color escape
// sequences are stripped before matching, so the classifier accepts both
// plain and colored tool output. Everything else, including the indented
// continuation lines of a multi-line diagnostic block, classifies as None;
// counting only the first line of each block keeps tallies accurate.
//
// All patterns are precompiled at package initialization and immutable.
package diag

import "regexp"

// Kind is the classification of one output line.
type Kind int

const (
	// None marks a line that is neither a warning nor an error; it is
	// passed through untouched for display.
	None Kind = iota
	// Warning marks the first line of a warning diagnostic.
	Warning
	// Error marks the first line of an error diagnostic.
	Error
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "none"
	}
}

// Record is the classification result for one output line. It is
// ephemeral: produced and consumed within one feature-set run.
type Record struct {
	Kind Kind
	Code string // short diagnostic code, e.g. "E0425", when present
	Text string // raw line, with escape sequences stripped
}

var (
	// ansiPattern matches CSI escape sequences emitted by colored tools.
	ansiPattern = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)

	// warningPattern anchors at column zero so indented continuation
	// lines do not inflate the tally.
	warningPattern = regexp.MustCompile(`^warning(\[[A-Za-z0-9_]+\])?:`)

	// errorPattern captures the bracketed diagnostic code when present.
	// The closing alternation accepts a colon or a word boundary, so
	// "errors: 3" stays unclassified while "error occurred" matches; a
	// plain \b after the bracket group would never sit between "]" and
	// ":" and the code capture would backtrack away.
	errorPattern = regexp.MustCompile(`^error(\[([A-Za-z0-9_]+)\])?(:|\b)`)
)

// StripANSI removes ANSI escape sequences from line.
func StripANSI(line string) string {
	return ansiPattern.ReplaceAllString(line, "")
}

// Classify inspects one line of tool output. It never fails: malformed or
// unrecognized input classifies as None.
func Classify(line string) Record {
	text := StripANSI(line)

	if warningPattern.MatchString(text) {
		return Record{Kind: Warning, Text: text}
	}
	if m := errorPattern.FindStringSubmatch(text); m != nil {
		return Record{Kind: Error, Code: m[2], Text: text}
	}
	return Record{Kind: None, Text: text}
}
