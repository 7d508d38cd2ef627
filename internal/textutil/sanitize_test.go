package textutil

import "testing"

func TestSanitizeFileNameFullWidth(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Mission: Impossible", "Mission： Impossible"},
		{"AC/DC Live", "AC／DC Live"},
		{"What If...?", "What If...？"},
		{"a*b<c>d|e\"f\\g", "a＊b＜c＞d｜e＂f＼g"},
		{"  trimmed.  ", "trimmed"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := SanitizeFileName(tc.in); got != tc.want {
			t.Errorf("SanitizeFileName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFingerprintStable(t *testing.T) {
	a := Fingerprint("Show.S01E01.mkv", 1234)
	b := Fingerprint("Show.S01E01.mkv", 1234)
	if a != b {
		t.Fatalf("fingerprint not stable: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("fingerprint length = %d", len(a))
	}
	if Fingerprint("Show.S01E01.mkv", 1235) == a {
		t.Fatal("size change should alter fingerprint")
	}
	if Fingerprint("Other.mkv", 1234) == a {
		t.Fatal("name change should alter fingerprint")
	}
}
