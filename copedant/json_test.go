package copedant

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestJSONRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "e9.json")

	orig := BuddyEmmonsE9()
	if err := SaveJSON(orig, path); err != nil {
		t.Fatalf("SaveJSON: %v", err)
	}
	loaded, err := LoadJSON(path)
	if err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}

	if loaded.Name != orig.Name {
		t.Fatalf("name %q != %q", loaded.Name, orig.Name)
	}
	if loaded.OpenStrings != orig.OpenStrings {
		t.Fatalf("open strings changed: %v != %v", loaded.OpenStrings, orig.OpenStrings)
	}
	if len(loaded.Pedals) != len(orig.Pedals) || len(loaded.Levers) != len(orig.Levers) {
		t.Fatalf("pedal/lever counts changed")
	}
	for i := range orig.Pedals {
		if loaded.Pedals[i].Name != orig.Pedals[i].Name {
			t.Fatalf("pedal %d name changed", i)
		}
		for k := range orig.Pedals[i].Changes {
			if loaded.Pedals[i].Changes[k] != orig.Pedals[i].Changes[k] {
				t.Fatalf("pedal %d change %d changed", i, k)
			}
		}
	}
}

func TestParseRejectsBadStringIndex(t *testing.T) {
	bad := `{
		"name": "Broken",
		"open_strings": [66, 63, 68, 64, 59, 56, 54, 52, 50, 47],
		"pedals": [{"name": "A", "changes": [{"string": 12, "semitones": 2}]}],
		"levers": []
	}`
	if _, err := ParseJSON([]byte(bad)); err == nil {
		t.Fatalf("expected error for out-of-range string index")
	} else if !strings.Contains(err.Error(), "string index 12") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseRejectsWrongStringCount(t *testing.T) {
	bad := `{
		"name": "Short",
		"open_strings": [66, 63, 68],
		"pedals": [],
		"levers": []
	}`
	if _, err := ParseJSON([]byte(bad)); err == nil {
		t.Fatalf("expected error for wrong open_strings length")
	}
}

func TestParseRejectsEmptyChanges(t *testing.T) {
	bad := `{
		"name": "NoChanges",
		"open_strings": [66, 63, 68, 64, 59, 56, 54, 52, 50, 47],
		"pedals": [{"name": "A", "changes": []}],
		"levers": []
	}`
	if _, err := ParseJSON([]byte(bad)); err == nil {
		t.Fatalf("expected error for empty change list")
	}
}

func TestParseRejectsMalformedJSON(t *testing.T) {
	if _, err := ParseJSON([]byte("{not json")); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestValidateRejectsTooManyPedals(t *testing.T) {
	c := BuddyEmmonsE9()
	c.Pedals = append(c.Pedals, ChangeDef{Name: "D", Changes: []Change{{String: 0, Semitones: 1}}})
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for 4 pedals")
	}
}
