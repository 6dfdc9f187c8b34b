package utils

import "testing"

func TestNormalizeKey(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"MansourYoum", "mansouryoum"},
		{"mansouryoum ", "mansouryoum"},
		{"Account Planning", "account-planning"},
		{"Objection  Handling!", "objection-handling"},
		{"  --Sales-- ", "sales"},
		{"a.b_c", "a-b-c"},
		{"2024 Playbook", "2024-playbook"},
		{"!!!", ""},
		{"", ""},
	}
	for _, c := range cases {
		if got := NormalizeKey(c.in); got != c.want {
			t.Fatalf("NormalizeKey(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizeKeyIsIdempotent(t *testing.T) {
	for _, in := range []string{"Account Planning", "jane-doe", "A  B  C"} {
		once := NormalizeKey(in)
		if twice := NormalizeKey(once); twice != once {
			t.Fatalf("NormalizeKey not idempotent for %q: %q -> %q", in, once, twice)
		}
	}
}
