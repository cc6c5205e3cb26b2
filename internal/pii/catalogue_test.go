package pii

import "testing"

func TestLevelsAreCumulative(t *testing.T) {
	labels := func(level Level) map[Label]bool {
		set := make(map[Label]bool)
		for _, det := range DetectorsFor(level) {
			set[det.Label] = true
		}
		return set
	}

	low, medium, high := labels(LevelLow), labels(LevelMedium), labels(LevelHigh)
	for label := range low {
		if !medium[label] {
			t.Errorf("label %s active at low but not medium", label)
		}
	}
	for label := range medium {
		if !high[label] {
			t.Errorf("label %s active at medium but not high", label)
		}
	}
	if len(low) >= len(medium) || len(medium) >= len(high) {
		t.Errorf("expected strictly growing levels, got %d/%d/%d", len(low), len(medium), len(high))
	}
}

func TestParseLevelCoercion(t *testing.T) {
	cases := map[string]Level{
		"low":     LevelLow,
		"medium":  LevelMedium,
		"high":    LevelHigh,
		"extreme": LevelLow,
		"":        LevelLow,
		"LOW":     LevelLow,
		"HIGH":    LevelHigh, // case never narrows the requested level
		"Medium":  LevelMedium,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestUnknownLevelBehavesLikeLow(t *testing.T) {
	text := "aadhaar 1234 5678 9012 email someone@example.com"
	low := Find(text, LevelLow)
	coerced := Find(text, ParseLevel("extreme"))
	if len(low) != len(coerced) {
		t.Fatalf("coerced level found %d matches, low found %d", len(coerced), len(low))
	}
	for i := range low {
		if low[i] != coerced[i] {
			t.Errorf("match %d differs: %+v vs %+v", i, low[i], coerced[i])
		}
	}
	// Email is a high-level detector and must not fire at low.
	for _, m := range low {
		if m.Label == LabelEmail {
			t.Errorf("email detected at level low")
		}
	}
}

func TestDescribeCoversAllLevels(t *testing.T) {
	for _, level := range Levels() {
		if Describe(level) == "" {
			t.Errorf("no description for level %s", level)
		}
	}
}
