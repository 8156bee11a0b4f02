package story

import (
	"testing"
)

func TestParseSuggestions_Valid(t *testing.T) {
	raw := `[
		{"kind": "PLOT", "text": "The lighthouse keeper finds a letter."},
		{"kind": "CHARACTER", "text": "A fox who speaks only in riddles."},
		{"kind": "SETTING", "text": "A town where it is always dusk."}
	]`
	got := ParseSuggestions(raw)
	want := []Suggestion{
		{KindPlot, "The lighthouse keeper finds a letter."},
		{KindCharacter, "A fox who speaks only in riddles."},
		{KindSetting, "A town where it is always dusk."},
	}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestParseSuggestions_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"invalid json", `[{"kind": "PLOT", "text": "x"`},
		{"not json", `Here are three ideas: ...`},
		{"missing text", `[{"kind": "PLOT"}]`},
		{"missing kind", `[{"text": "x"}]`},
		{"wrong text type", `[{"kind": "PLOT", "text": 42}]`},
		{"wrong kind type", `[{"kind": 1, "text": "x"}]`},
		{"unknown kind", `[{"kind": "THEME", "text": "x"}]`},
		{"lowercase kind", `[{"kind": "plot", "text": "x"}]`},
		{"object", `{"kind": "PLOT", "text": "x"}`},
		{"string", `"PLOT"`},
		{"null", `null`},
		{"empty input", ``},
		{"trailing comma", `[{"kind": "PLOT", "text": "x"},]`},
		{"element not object", `["PLOT"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseSuggestions(tt.raw)
			if got == nil {
				t.Fatal("got nil, want empty slice")
			}
			if len(got) != 0 {
				t.Fatalf("got %+v, want empty", got)
			}
		})
	}
}

func TestParseSuggestions_EmptyArray(t *testing.T) {
	got := ParseSuggestions(`[]`)
	if got == nil || len(got) != 0 {
		t.Fatalf("got %#v, want empty non-nil", got)
	}
}

func TestValidator_Lenient(t *testing.T) {
	v := Validator{Lenient: true}

	got := v.Parse(`[{"kind": "PLOT", "text": "a"},]`)
	if len(got) != 1 || got[0].Text != "a" {
		t.Fatalf("trailing comma: got %+v", got)
	}

	got = v.Parse("[{'kind': 'SETTING', 'text': 'b'}]")
	if len(got) != 1 || got[0].Kind != KindSetting {
		t.Fatalf("single quotes: got %+v", got)
	}

	// Repair never rescues a schema violation.
	if got := v.Parse(`[{"kind": "PLOT"}]`); len(got) != 0 {
		t.Fatalf("missing field: got %+v", got)
	}
}

func TestSuggestionSchema_Fresh(t *testing.T) {
	a := SuggestionSchema()
	a.Items.Required = nil
	b := SuggestionSchema()
	if len(b.Items.Required) != 2 {
		t.Fatal("SuggestionSchema returned a shared schema")
	}
}
