package accesscode

import "testing"

func TestGenerate(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code, err := Generate(QuizCodeLength)
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if len(code) != QuizCodeLength {
			t.Fatalf("len(%q) = %d", code, len(code))
		}
		if !Valid(code) {
			t.Fatalf("code %q uses characters outside the alphabet", code)
		}
		seen[code] = true
	}
	if len(seen) < 190 {
		t.Errorf("only %d distinct codes out of 200", len(seen))
	}
}

func TestGenerateRejectsBadLength(t *testing.T) {
	if _, err := Generate(0); err == nil {
		t.Fatal("expected error for zero length")
	}
}

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"  abc123 ":  "ABC123",
		"QZ7KPA":     "QZ7KPA",
		"\tqz7kpa\n": "QZ7KPA",
		"":           "",
	}
	for in, want := range tests {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValid(t *testing.T) {
	if Valid("") {
		t.Error("empty code should be invalid")
	}
	if Valid("ABC0") {
		t.Error("0 is not part of the alphabet")
	}
	if !Valid("ABC234") {
		t.Error("ABC234 should be valid")
	}
}
