package pii

import "regexp"

// Label identifies a PII category targeted by the redaction engine.
type Label string

const (
	LabelAadhaar        Label = "AADHAAR"
	LabelPAN            Label = "PAN"
	LabelPassport       Label = "PASSPORT"
	LabelDrivingLicense Label = "DL"
	LabelVoterID        Label = "VOTER_ID"
	LabelPhone          Label = "PHONE"
	LabelEmail          Label = "EMAIL"
	LabelDOB            Label = "DOB"
	LabelBankAccount    Label = "BANK_ACCOUNT"
	LabelIFSC           Label = "IFSC"
)

// Detector binds a label to its matching rule, an optional validator that
// rejects false positives, and a mask generator that derives the replacement
// text rendered over redacted regions.
type Detector struct {
	Label    Label
	Pattern  *regexp.Regexp
	Validate func(match string) bool
	Mask     func(match string) string
}

// Level selects which detectors are active. Levels are cumulative: every
// detector active at a lower level is also active at every higher one.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// Match is a validated detector hit in a text blob. Start/End are byte
// offsets into the searched text.
type Match struct {
	Text  string
	Label Label
	Mask  string
	Start int
	End   int
}
