package core

import (
	"testing"
	"time"
)

// ----------------------------------------------------------------------------
// ParseNumber Tests
// ----------------------------------------------------------------------------

func TestParseNumber(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   float64
		wantOK bool
	}{
		{"positive integer", "123", 123, true},
		{"negative integer", "-456", -456, true},
		{"leading decimal point", ".99", 0.99, true},
		{"trailing decimal point", "99.", 99, true},
		{"thousands separator", "5,000", 5000, true},
		{"currency symbol", "$1,250.50", 1250.50, true},
		{"euro symbol", "€12", 12, true},
		{"accounting negative", "(12)", -12, true},
		{"scientific", "1e3", 1000, true},
		{"surrounding whitespace", "  42 ", 42, true},
		{"empty", "", 0, false},
		{"letters", "abc", 0, false},
		{"two dots", "1.2.3", 0, false},
		{"unit suffix", "25/MT", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseNumber(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ParseNumber(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("ParseNumber(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// ParseDate Tests
// ----------------------------------------------------------------------------

func TestParseDate(t *testing.T) {
	march1 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		input  string
		want   time.Time
		wantOK bool
	}{
		{"iso", "2025-03-01", march1, true},
		{"iso slashes", "2025/03/01", march1, true},
		{"day first", "01/03/2025", march1, true},
		{"day first dots", "01.03.2025", march1, true},
		{"month name", "Mar 1, 2025", march1, true},
		{"empty", "", time.Time{}, false},
		{"garbage", "next tuesday", time.Time{}, false},
		{"impossible day", "2025-02-30", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDate(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ParseDate(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("ParseDate(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// ParseBool Tests
// ----------------------------------------------------------------------------

func TestParseBool(t *testing.T) {
	tests := []struct {
		input  string
		want   bool
		wantOK bool
	}{
		{"true", true, true},
		{"on", true, true},
		{"Yes", true, true},
		{"1", true, true},
		{"false", false, true},
		{"off", false, true},
		{"", false, true},
		{"maybe", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseBool(tt.input)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseBool(%q) = (%v, %v), want (%v, %v)", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
