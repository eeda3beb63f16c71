package mailclean

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"minimal", LevelMinimal, false},
		{"Standard", LevelStandard, false},
		{" AGGRESSIVE ", LevelAggressive, false},
		{"extreme", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidLevel) {
					t.Fatalf("ParseLevel(%q) error = %v, want ErrInvalidLevel", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseLevel(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestStagesFor_EachLevelIsSuperset(t *testing.T) {
	for i := 1; i < len(Levels); i++ {
		lower, higher := StagesFor(Levels[i-1]), StagesFor(Levels[i])
		if !higher.Includes(lower) {
			t.Errorf("%s stages should include %s stages", Levels[i], Levels[i-1])
		}
		if lower.Includes(higher) {
			t.Errorf("%s stages should not include %s stages", Levels[i-1], Levels[i])
		}
	}
}

func TestStagesFor(t *testing.T) {
	minimal := StagesFor(LevelMinimal)
	if !minimal.ConvertMarkup || !minimal.FinalNormalize || minimal.RemoveSignatures {
		t.Errorf("unexpected minimal stages: %+v", minimal)
	}

	standard := StagesFor(LevelStandard)
	if !standard.RemoveBoilerplate || !standard.RemoveFingerprints || standard.StripQuotes {
		t.Errorf("unexpected standard stages: %+v", standard)
	}

	if !StagesFor(LevelAggressive).StripQuotes {
		t.Error("aggressive should strip quotes")
	}
}

func TestLevel_AtLeast(t *testing.T) {
	if !LevelAggressive.AtLeast(LevelStandard) {
		t.Error("aggressive should be at least standard")
	}
	if LevelMinimal.AtLeast(LevelStandard) {
		t.Error("minimal should not be at least standard")
	}
	if Level("bogus").AtLeast(LevelMinimal) {
		t.Error("unknown level should not compare")
	}
}

func TestLevel_TextMarshaling(t *testing.T) {
	type doc struct {
		Level Level `json:"level"`
	}

	b, err := json.Marshal(doc{Level: LevelAggressive})
	if err != nil {
		t.Fatalf("Marshal error = %v", err)
	}
	if string(b) != `{"level":"aggressive"}` {
		t.Errorf("Marshal = %s", b)
	}

	var d doc
	if err := json.Unmarshal([]byte(`{"level":"Minimal"}`), &d); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}
	if d.Level != LevelMinimal {
		t.Errorf("Unmarshal level = %q", d.Level)
	}

	if err := json.Unmarshal([]byte(`{"level":"extreme"}`), &d); !errors.Is(err, ErrInvalidLevel) {
		t.Errorf("expected ErrInvalidLevel, got %v", err)
	}
}
