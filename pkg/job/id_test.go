package job

import "testing"

func TestParseID(t *testing.T) {
	cases := []struct {
		raw        string
		base       string
		bracket    string
		suffix     string
		hasBracket bool
	}{
		{"123.host", "123", "", ".host", false},
		{"123[].host", "123", "", ".host", true},
		{"123[7].host", "123", "7", ".host", true},
		{"123[0-9].host", "123", "0-9", ".host", true},
		{"123", "123", "", "", false},
	}
	for _, tc := range cases {
		id, err := ParseID(tc.raw)
		if err != nil {
			t.Fatalf("ParseID(%q): %v", tc.raw, err)
		}
		if id.Base != tc.base || id.Bracket != tc.bracket || id.Suffix != tc.suffix || id.HasBracket != tc.hasBracket {
			t.Errorf("ParseID(%q) = %+v, want base=%q bracket=%q suffix=%q hasBracket=%v",
				tc.raw, id, tc.base, tc.bracket, tc.suffix, tc.hasBracket)
		}
		if id.String() != tc.raw {
			t.Errorf("ParseID(%q).String() = %q, want %q", tc.raw, id.String(), tc.raw)
		}
	}
}

func TestParseID_UnmatchedBracket(t *testing.T) {
	if _, err := ParseID("123[7.host"); err == nil {
		t.Fatal("expected error for unmatched '['")
	}
}

func TestIsJobArray(t *testing.T) {
	cases := []struct {
		raw  string
		kind ArrayKind
	}{
		{"123.host", NotArray},
		{"123[].host", Parent},
		{"123[7].host", Single},
		{"123[0-9].host", Range},
		{"123[0-9:2].host", Range},
	}
	for _, tc := range cases {
		if got := IsJobArray(tc.raw); got != tc.kind {
			t.Errorf("IsJobArray(%q) = %v, want %v", tc.raw, got, tc.kind)
		}
	}
}

func TestID_Index(t *testing.T) {
	id, err := ParseID("123[7].host")
	if err != nil {
		t.Fatal(err)
	}
	i, err := id.Index()
	if err != nil {
		t.Fatal(err)
	}
	if i != 7 {
		t.Errorf("Index() = %d, want 7", i)
	}

	parent, _ := ParseID("123[].host")
	if _, err := parent.Index(); err == nil {
		t.Error("expected error indexing a parent id")
	}
}

func TestSubjobID(t *testing.T) {
	got, err := SubjobID("123[].host", 7)
	if err != nil {
		t.Fatal(err)
	}
	if got != "123[7].host" {
		t.Errorf("SubjobID = %q, want %q", got, "123[7].host")
	}

	if _, err := SubjobID("123.host", 7); err == nil {
		t.Error("expected error for non-array parent id")
	}
}
