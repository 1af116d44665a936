package extract

import "testing"

func TestNormalizeSender(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain number with domain", "12025550100@s.whatsapp.net", "12025550100"},
		{"c.us domain", "12025550100@c.us", "12025550100"},
		{"group domain", "group-abc@g.us", "group-abc"},
		{"lid domain", "9876@lid", "9876"},
		{"broadcast domain", "status@broadcast", "status"},
		{"scheme prefix", "whatsapp:+12025550100@c.us", "+12025550100"},
		{"optional wrapper", `Optional("12025550100@s.whatsapp.net")`, "12025550100"},
		{"single quotes", "'12025550100@s.whatsapp.net'", "12025550100"},
		{"only one suffix stripped", "weird@c.us@g.us", "weird@c.us"},
		{"unknown domain kept", "alice@example.com", "alice@example.com"},
		{"bare name", "alice", "alice"},
		{"empty collapses", "", "no sender"},
		{"whitespace collapses", "   ", "no sender"},
		{"suffix-only collapses", "@broadcast", "no sender"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeSender(tt.in); got != tt.want {
				t.Errorf("NormalizeSender(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
