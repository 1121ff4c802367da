package feedback

import (
	"strings"
	"testing"

	"integrityd/internal/score"
)

func TestForResponseRules(t *testing.T) {
	tests := []struct {
		name       string
		answer     string
		timeSpent  float64
		revisions  int
		confidence score.Confidence
		wantTypes  []Type
	}{
		{
			name:       "ordinary answer earns nothing",
			answer:     "photosynthesis",
			timeSpent:  45,
			revisions:  1,
			confidence: score.ConfidenceMedium,
			wantTypes:  nil,
		},
		{
			name:       "quick answer earns a slow-down suggestion",
			answer:     "yes",
			timeSpent:  5,
			revisions:  1,
			confidence: score.ConfidenceMedium,
			wantTypes:  []Type{TypeSuggestion},
		},
		{
			name:       "long deliberation earns encouragement",
			answer:     "a detailed answer",
			timeSpent:  400,
			revisions:  1,
			confidence: score.ConfidenceHigh,
			wantTypes:  []Type{TypeEncouragement},
		},
		{
			name:       "low confidence earns an elaboration question",
			answer:     "maybe",
			timeSpent:  20,
			revisions:  1,
			confidence: score.ConfidenceLow,
			wantTypes:  []Type{TypeQuestion},
		},
		{
			name:       "many revisions earn persistence encouragement",
			answer:     "the water cycle",
			timeSpent:  90,
			revisions:  6,
			confidence: score.ConfidenceHigh,
			wantTypes:  []Type{TypeEncouragement},
		},
		{
			name:       "slow and heavily revised answer stacks encouragements",
			answer:     "the water cycle",
			timeSpent:  400,
			revisions:  6,
			confidence: score.ConfidenceHigh,
			wantTypes:  []Type{TypeEncouragement, TypeEncouragement},
		},
		{
			name:       "long unrevised answer earns a double-check suggestion",
			answer:     "water evaporates and then condenses into clouds",
			timeSpent:  30,
			revisions:  0,
			confidence: score.ConfidenceMedium,
			wantTypes:  []Type{TypeSuggestion},
		},
		{
			name:       "rushed unrevised answer stacks rules",
			answer:     "it is because the sun heats the ocean",
			timeSpent:  5,
			revisions:  0,
			confidence: score.ConfidenceLow,
			wantTypes:  []Type{TypeSuggestion, TypeQuestion, TypeSuggestion},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ForResponse("q1", tt.answer, tt.timeSpent, tt.revisions, tt.confidence, 4)
			if len(got) != len(tt.wantTypes) {
				t.Fatalf("got %d messages, want %d: %+v", len(got), len(tt.wantTypes), got)
			}
			for i, m := range got {
				if m.Type != tt.wantTypes[i] {
					t.Errorf("message %d type = %s, want %s", i, m.Type, tt.wantTypes[i])
				}
				if m.QuestionID != "q1" {
					t.Errorf("message %d must carry the question id", i)
				}
				if m.Message == "" {
					t.Errorf("message %d has no text", i)
				}
			}
		})
	}
}

func TestGradeCalibration(t *testing.T) {
	lower := ForResponse("q1", "x", 5, 1, score.ConfidenceMedium, 3)
	upper := ForResponse("q1", "x", 5, 1, score.ConfidenceMedium, 6)
	if len(lower) != 1 || len(upper) != 1 {
		t.Fatal("expected one message per grade band")
	}
	if lower[0].Message == upper[0].Message {
		t.Error("grade bands should use different wording")
	}
}

// Hard product constraint: no template may read as an accusation.
func TestTemplatesAreNotAccusatory(t *testing.T) {
	banned := []string{"cheat", "copy", "copied", "plagiar", "suspicious", "caught", "dishonest"}

	all := []template{
		slowDownTemplate, carefulThinkingTemplate, elaborateTemplate,
		persistenceTemplate, doubleCheckTemplate,
	}
	for _, tpl := range all {
		for _, text := range []string{tpl.lower, tpl.upper} {
			lowered := strings.ToLower(text)
			for _, word := range banned {
				if strings.Contains(lowered, word) {
					t.Errorf("template %q contains banned word %q", text, word)
				}
			}
		}
	}
}
