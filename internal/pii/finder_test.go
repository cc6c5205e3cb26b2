package pii

import (
	"testing"
)

func TestAadhaarValidator(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"1234 5678 9012", true},
		{"1234-5678-9012", true},
		{"123456789012", true},
		{"1234 5678 901", false},  // 11 digits
		{"1234567890123", false},  // 13 digits never even matches the rule
		{"1234 5678", false},
	}
	for _, tc := range cases {
		matches := Find(tc.text, LevelLow)
		found := false
		for _, m := range matches {
			if m.Label == LabelAadhaar {
				found = true
			}
		}
		if found != tc.want {
			t.Errorf("Find(%q) aadhaar = %v, want %v", tc.text, found, tc.want)
		}
	}
}

func TestBankAccountMinimumLength(t *testing.T) {
	// 10 digits matches the digit-run rule but fails the >= 11 validator.
	for _, m := range Find("acct 1234567890", LevelHigh) {
		if m.Label == LabelBankAccount {
			t.Errorf("10-digit run classified as bank account: %+v", m)
		}
	}
	found := false
	for _, m := range Find("acct 12345678901", LevelHigh) {
		if m.Label == LabelBankAccount {
			found = true
		}
	}
	if !found {
		t.Error("11-digit run not classified as bank account")
	}
}

func TestMaskShapes(t *testing.T) {
	cases := []struct {
		text, wantText, wantMask string
		label                    Label
		level                    Level
	}{
		{"1234 5678 9012", "1234 5678 9012", "XXXX XXXX 9012", LabelAadhaar, LevelLow},
		{"ABCDE1234F", "ABCDE1234F", "XXXXX1234X", LabelPAN, LevelLow},
		{"A1234567", "A1234567", "X0000000", LabelPassport, LevelMedium},
		{"MH02 2019 0000123", "MH02 2019 0000123", "XX-00-0000-0000000", LabelDrivingLicense, LevelMedium},
		{"call 9876543210", "9876543210", "XXXXXXXXXX", LabelPhone, LevelMedium},
		{"mail me@example.org", "me@example.org", "xxxx@xxxx.xxx", LabelEmail, LevelHigh},
		{"dob 12/03/1990", "12/03/1990", "XX/XX/XXXX", LabelDOB, LevelHigh},
		{"SBIN0001234", "SBIN0001234", "XXXX0XXXXXX", LabelIFSC, LevelHigh},
	}
	for _, tc := range cases {
		var got *Match
		for _, m := range Find(tc.text, tc.level) {
			if m.Label == tc.label {
				m := m
				got = &m
				break
			}
		}
		if got == nil {
			t.Errorf("label %s not found in %q", tc.label, tc.text)
			continue
		}
		if got.Text != tc.wantText {
			t.Errorf("%s matched %q, want %q", tc.label, got.Text, tc.wantText)
		}
		if got.Mask != tc.wantMask {
			t.Errorf("%s mask %q, want %q", tc.label, got.Mask, tc.wantMask)
		}
	}
}

func TestBankAccountMaskPreservesLength(t *testing.T) {
	for _, m := range Find("707812345678901", LevelHigh) {
		if m.Label == LabelBankAccount && len(m.Mask) != len(m.Text) {
			t.Errorf("bank account mask length %d, match length %d", len(m.Mask), len(m.Text))
		}
	}
}

func TestOverlappingDetectorsBothReported(t *testing.T) {
	// A 12-digit run is both a valid Aadhaar candidate and a bank-account
	// shaped digit run: both detectors must report it.
	matches := Find("123456789012", LevelHigh)
	var labels []Label
	for _, m := range matches {
		labels = append(labels, m.Label)
	}
	hasAadhaar, hasBank := false, false
	for _, l := range labels {
		if l == LabelAadhaar {
			hasAadhaar = true
		}
		if l == LabelBankAccount {
			hasBank = true
		}
	}
	if !hasAadhaar || !hasBank {
		t.Errorf("expected overlapping AADHAAR and BANK_ACCOUNT, got %v", labels)
	}
}

func TestFindIsDeterministic(t *testing.T) {
	text := "PAN ABCDE1234F aadhaar 1234 5678 9012 mail a@b.co phone 9876543210"
	first := Find(text, LevelHigh)
	for i := 0; i < 5; i++ {
		again := Find(text, LevelHigh)
		if len(again) != len(first) {
			t.Fatalf("run %d returned %d matches, first run %d", i, len(again), len(first))
		}
		for j := range first {
			if first[j] != again[j] {
				t.Fatalf("run %d match %d = %+v, first run %+v", i, j, again[j], first[j])
			}
		}
	}
}
