package pii

import (
	"regexp"
	"strings"
)

// Matching rules for the supported Indian PII formats. Aadhaar tolerates
// space/hyphen grouping; phone accepts an optional +91 prefix; the bank
// account rule deliberately over-matches digit runs and relies on its
// validator to discard short ones.
var (
	aadhaarPattern  = regexp.MustCompile(`\b(\d{4}[\s\-]?\d{4}[\s\-]?\d{4})\b`)
	panPattern      = regexp.MustCompile(`\b[A-Z]{5}[0-9]{4}[A-Z]\b`)
	passportPattern = regexp.MustCompile(`\b[A-Z][0-9]{7}\b`)
	dlPattern       = regexp.MustCompile(`\b[A-Z]{2}[\-\s]?\d{2}[\-\s]?\d{4}[\-\s]?\d{7}\b`)
	voterIDPattern  = regexp.MustCompile(`\b[A-Z]{3}[0-9]{7}\b`)
	phonePattern    = regexp.MustCompile(`(?:\+91[\s\-]?)?(?:\b[6-9]\d{9}\b)`)
	emailPattern    = regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)
	dobPattern      = regexp.MustCompile(`\b\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4}\b`)
	bankAcctPattern = regexp.MustCompile(`\b\d{9,18}\b`)
	ifscPattern     = regexp.MustCompile(`\b[A-Z]{4}0[A-Z0-9]{6}\b`)
)

var (
	detAadhaar  = Detector{Label: LabelAadhaar, Pattern: aadhaarPattern, Validate: validAadhaar, Mask: maskAadhaar}
	detPAN      = Detector{Label: LabelPAN, Pattern: panPattern, Mask: maskPAN}
	detPassport = Detector{Label: LabelPassport, Pattern: passportPattern, Mask: fixedMask("X0000000")}
	detDL       = Detector{Label: LabelDrivingLicense, Pattern: dlPattern, Mask: fixedMask("XX-00-0000-0000000")}
	detVoterID  = Detector{Label: LabelVoterID, Pattern: voterIDPattern, Mask: fixedMask("XXX0000000")}
	detPhone    = Detector{Label: LabelPhone, Pattern: phonePattern, Mask: fixedMask("XXXXXXXXXX")}
	detEmail    = Detector{Label: LabelEmail, Pattern: emailPattern, Mask: fixedMask("xxxx@xxxx.xxx")}
	detDOB      = Detector{Label: LabelDOB, Pattern: dobPattern, Mask: fixedMask("XX/XX/XXXX")}
	detBankAcct = Detector{Label: LabelBankAccount, Pattern: bankAcctPattern, Validate: validBankAccount, Mask: maskFull}
	detIFSC     = Detector{Label: LabelIFSC, Pattern: ifscPattern, Mask: fixedMask("XXXX0XXXXXX")}
)

// levelTable maps each level to its ordered detector set. Higher levels are
// built by extending the lower ones so the cumulative invariant holds by
// construction.
var levelTable = func() map[Level][]Detector {
	low := []Detector{detAadhaar, detPAN}
	medium := append(append([]Detector{}, low...), detPhone, detPassport, detDL)
	high := append(append([]Detector{}, medium...), detVoterID, detEmail, detDOB, detBankAcct, detIFSC)
	return map[Level][]Detector{
		LevelLow:    low,
		LevelMedium: medium,
		LevelHigh:   high,
	}
}()

// levelDescriptions are the human-readable summaries reported by the
// redact-info endpoint.
var levelDescriptions = map[Level]string{
	LevelLow:    "Aadhaar & PAN only",
	LevelMedium: "Aadhaar, PAN, Phone, Passport, DL",
	LevelHigh:   "All PII (Aadhaar, PAN, Phone, Passport, DL, Voter ID, Email, DOB, Bank A/C, IFSC)",
}

// ParseLevel normalizes a caller-supplied level string. Case is ignored;
// unrecognized values coerce to the narrowest level rather than failing
// the request.
func ParseLevel(s string) Level {
	switch level := Level(strings.ToLower(s)); level {
	case LevelLow, LevelMedium, LevelHigh:
		return level
	}
	return LevelLow
}

// DetectorsFor returns the ordered detector set for a level. The returned
// slice is shared and must not be mutated.
func DetectorsFor(level Level) []Detector {
	if dets, ok := levelTable[level]; ok {
		return dets
	}
	return levelTable[LevelLow]
}

// Levels returns all levels in ascending strictness order.
func Levels() []Level {
	return []Level{LevelLow, LevelMedium, LevelHigh}
}

// Describe returns the human-readable description of a level.
func Describe(level Level) string {
	return levelDescriptions[level]
}
