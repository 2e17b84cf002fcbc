package module

import "testing"

func TestVersionMatches(t *testing.T) {
	cases := []struct {
		version, pattern string
		want             bool
	}{
		{"1.2.3", "1.2.3", true},
		{"1.2.3", "1.2.4", false},
		{"1.2.3", "", true},
		{"1.2.3", "*", true},
		{"1.2.3", ">=1.0.0", true},
		{"1.2.3", ">=1.2.3", true},
		{"1.2.3", ">=1.3.0", false},
		{"2.0.0", ">1.9.9", true},
		{"1.9.9", ">1.9.9", false},
		{"1.2.3", "^1.0.0", true},
		{"2.0.0", "^1.0.0", false},
		{"1.0.0", "^1.2.0", false},
		{"0.3.1", "^0.1.0", true},
		{"1.0.5", "~1.0.0", true},
		{"1.1.0", "~1.0.0", false},
		{"1.0.0", "~1.0.3", false},
		{"garbage", ">=1.0.0", false},
		{"1.2.3", ">=x.y.z", false},
	}
	for _, tc := range cases {
		if got := VersionMatches(tc.version, tc.pattern); got != tc.want {
			t.Fatalf("VersionMatches(%q, %q) = %v, want %v", tc.version, tc.pattern, got, tc.want)
		}
	}
}

func TestParseVersionShortForms(t *testing.T) {
	v, ok := parseVersion("1.2")
	if !ok || v != [3]int{1, 2, 0} {
		t.Fatalf("parseVersion(1.2) = %v, %v", v, ok)
	}
	if _, ok := parseVersion("1.2.3.4"); ok {
		t.Fatalf("four components should not parse")
	}
	if _, ok := parseVersion(""); ok {
		t.Fatalf("empty version should not parse")
	}
}
