package types

import "testing"

func TestResultStrings(t *testing.T) {
	cases := map[Result]string{
		OK:           "ok",
		Fault:        "fault",
		NotFound:     "not_found",
		Overflow:     "overflow",
		BadParameter: "bad_parameter",
		Duplicate:    "duplicate",
	}
	for res, want := range cases {
		if got := res.String(); got != want {
			t.Errorf("Result(%d).String() = %q, want %q", res, got, want)
		}
	}
}

func TestValidatePriority(t *testing.T) {
	for _, p := range []string{"idle", "low", "medium", "high", "rt1", "rt16", "rt32"} {
		if res := ValidatePriority(p); res != OK {
			t.Errorf("ValidatePriority(%q) = %s, want ok", p, res)
		}
	}

	for _, p := range []string{"", "rt0", "rt33", "rtx", "urgent"} {
		if res := ValidatePriority(p); res != Fault {
			t.Errorf("ValidatePriority(%q) = %s, want fault", p, res)
		}
	}

	if res := ValidatePriority("extremely-high"); res != Overflow {
		t.Errorf("Expected overflow for long priority, got %s", res)
	}
}

func TestParseFaultAction(t *testing.T) {
	action, ok := ParseFaultAction("restartApp")
	if !ok || action != FaultActionRestartApp {
		t.Errorf("ParseFaultAction(restartApp) = %s, %v", action, ok)
	}

	if _, ok := ParseFaultAction("detonate"); ok {
		t.Error("Unknown fault action should not parse")
	}
}

func TestProtocolError(t *testing.T) {
	err := Protocolf("invalid app name %q", "x/y")
	pv, ok := err.(*ProtocolError)
	if !ok {
		t.Fatalf("Protocolf should return *ProtocolError, got %T", err)
	}
	if pv.Reason != `invalid app name "x/y"` {
		t.Errorf("Unexpected reason %q", pv.Reason)
	}
}
