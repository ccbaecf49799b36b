package logger

import "testing"

func TestRedactEmail(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"john.doe@example.com", "jo***@example.com"},
		{"al@example.com", "***@example.com"},
		{"a@example.com", "***@example.com"},
		{"not-an-email", "***@***"},
		{"two@at@signs", "***@***"},
	}
	for _, tc := range cases {
		if got := RedactEmail(tc.in); got != tc.want {
			t.Errorf("RedactEmail(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRedactPIIValue(t *testing.T) {
	// Address-bearing keys are always masked, whatever the value looks like.
	if got := redactPIIValue("sender", "boss@corp.example"); got != "bo***@corp.example" {
		t.Errorf("sender = %q", got)
	}
	if got := redactPIIValue("owner_email", "user@example.com"); got != "us***@example.com" {
		t.Errorf("owner_email = %q", got)
	}

	// Generic fields only have embedded addresses masked.
	got := redactPIIValue("detail", "forwarded to alice@example.com for review")
	want := "forwarded to al***@example.com for review"
	if got != want {
		t.Errorf("detail = %q, want %q", got, want)
	}

	if got := redactPIIValue("count", "42"); got != "42" {
		t.Errorf("plain value changed: %q", got)
	}
}
