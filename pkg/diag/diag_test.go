package diag

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		wantKind Kind
		wantCode string
	}{
		{
			name:     "Warning",
			line:     "warning: unused variable `x`",
			wantKind: Warning,
		},
		{
			name:     "ErrorWithCode",
			line:     "error[E0425]: cannot find value `foo` in this scope",
			wantKind: Error,
			wantCode: "E0425",
		},
		{
			name:     "ErrorWithoutCode",
			line:     "error: could not compile `testdummy`",
			wantKind: Error,
		},
		{
			name:     "BareError",
			line:     "error occurred",
			wantKind: Error,
		},
		{
			name:     "PluralNotDiagnostic",
			line:     "errors: 3 emitted",
			wantKind: None,
		},
		{
			name:     "ProgressLine",
			line:     "   Compiling foo v0.1.0",
			wantKind: None,
		},
		{
			name:     "IndentedContinuation",
			line:     "  --> src/main.rs:4:9",
			wantKind: None,
		},
		{
			name:     "IndentedWarningContinuation",
			line:     "   warning: this block is indented context, not a new diagnostic",
			wantKind: None,
		},
		{
			name:     "ColoredWarning",
			line:     "\x1b[1m\x1b[33mwarning\x1b[0m\x1b[1m:\x1b[0m unused import",
			wantKind: Warning,
		},
		{
			name:     "ColoredErrorWithCode",
			line:     "\x1b[1m\x1b[31merror[E0308]\x1b[0m\x1b[1m:\x1b[0m mismatched types",
			wantKind: Error,
			wantCode: "E0308",
		},
		{
			name:     "Empty",
			line:     "",
			wantKind: None,
		},
		{
			name:     "MalformedEscape",
			line:     "\x1b[999garbage",
			wantKind: None,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Classify(tt.line)
			if rec.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", rec.Kind, tt.wantKind)
			}
			if rec.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", rec.Code, tt.wantCode)
			}
		})
	}
}

func TestStripANSI(t *testing.T) {
	in := "\x1b[1m\x1b[32m    Finished\x1b[0m dev profile"
	want := "    Finished dev profile"
	if got := StripANSI(in); got != want {
		t.Errorf("StripANSI = %q, want %q", got, want)
	}
}

func TestKindString(t *testing.T) {
	if None.String() != "none" || Warning.String() != "warning" || Error.String() != "error" {
		t.Error("Kind.String() mismatch")
	}
}
