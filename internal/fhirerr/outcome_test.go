package fhirerr

import "testing"

func TestKindHTTPStatus(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{KindUserInput, 400},
		{KindNotFound, 404},
		{KindNotSupported, 422},
		{KindUpstream, 502},
		{KindInternal, 500},
	}
	for _, tc := range cases {
		if got := tc.kind.HTTPStatus(); got != tc.want {
			t.Errorf("Kind(%d).HTTPStatus() = %d, want %d", tc.kind, got, tc.want)
		}
	}
}

func TestErrorOutcomeMapping(t *testing.T) {
	err := UserInput("_count", "must be positive, got %d", -1)
	outcome := err.Outcome()
	if !outcome.HasErrors() {
		t.Fatalf("expected outcome to carry an error issue")
	}
	if len(outcome.Issue) != 1 {
		t.Fatalf("expected 1 issue, got %d", len(outcome.Issue))
	}
	issue := outcome.Issue[0]
	if issue.Code != IssueInvalid {
		t.Errorf("Code = %q, want %q", issue.Code, IssueInvalid)
	}
	if len(issue.Expression) != 1 || issue.Expression[0] != "_count" {
		t.Errorf("Expression = %v, want [_count]", issue.Expression)
	}
}

func TestUpstreamOutcomeIsWarningNotError(t *testing.T) {
	err := Upstream("terminology provider unreachable")
	outcome := err.Outcome()
	if outcome.HasErrors() {
		t.Errorf("upstream failure outcome should be a warning, not an error issue")
	}
}

func TestInternalOutcomeIsFatal(t *testing.T) {
	err := Internal("sql build invariant violated")
	outcome := err.Outcome()
	if outcome.Issue[0].Severity != SeverityFatal {
		t.Errorf("Severity = %q, want %q", outcome.Issue[0].Severity, SeverityFatal)
	}
}
