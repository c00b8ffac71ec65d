package version

import "testing"

func TestCompareVersions(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"0.1.0", "0.1.0", 0},
		{"0.1.0", "0.2.0", -1},
		{"1.0.0", "0.9.9", 1},
		{"v1.2.3", "1.2.3", 0},
		{"1.2", "1.2.1", -1},
	}
	for _, tc := range cases {
		if got := compareVersions(tc.a, tc.b); got != tc.want {
			t.Errorf("compareVersions(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestInfoDefaultsToCurrentVersion(t *testing.T) {
	c := &Checker{}
	info := c.Info()
	if info.CurrentVersion != Version {
		t.Fatalf("got %q, want %q", info.CurrentVersion, Version)
	}
	if info.UpdateAvailable {
		t.Fatal("no check has run, no update should be reported")
	}
}
