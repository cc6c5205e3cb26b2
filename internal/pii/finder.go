package pii

// Find runs every detector for the level against text and returns the
// validated matches in detector order. Overlapping hits from different
// detectors are all reported; the engine redacts every one of them rather
// than guessing which label is "right". The result depends only on the
// inputs, never on prior calls.
func Find(text string, level Level) []Match {
	var matches []Match
	for _, det := range DetectorsFor(level) {
		for _, loc := range det.Pattern.FindAllStringIndex(text, -1) {
			matched := text[loc[0]:loc[1]]
			if det.Validate != nil && !det.Validate(matched) {
				continue
			}
			matches = append(matches, Match{
				Text:  matched,
				Label: det.Label,
				Mask:  det.Mask(matched),
				Start: loc[0],
				End:   loc[1],
			})
		}
	}
	return matches
}
