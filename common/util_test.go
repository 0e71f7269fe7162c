package common

import (
	"testing"
)

func TestNormalizeAddress(t *testing.T) {
	normalized, err := NormalizeAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	if err != nil {
		t.Fatal(err)
	}
	if normalized != "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48" {
		t.Fatalf("unexpected normalized address: %s", normalized)
	}

	if _, err := NormalizeAddress("nonsense"); err == nil {
		t.Fatal("expected error for malformed address")
	}
	if _, err := NormalizeAddress("0x1234"); err == nil {
		t.Fatal("expected error for short address")
	}
}

func TestParsePositiveAmount(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"100", false},
		{"999999999999999999999999999", false},
		{"0", true},
		{"-5", true},
		{"1.5", true},
		{"", true},
		{"abc", true},
	}

	for _, tt := range tests {
		_, err := ParsePositiveAmount(tt.in)
		if tt.wantErr && err == nil {
			t.Errorf("ParsePositiveAmount(%q): expected error", tt.in)
		}
		if !tt.wantErr && err != nil {
			t.Errorf("ParsePositiveAmount(%q): unexpected error: %v", tt.in, err)
		}
	}
}

func TestGetSortingCondition(t *testing.T) {
	tests := []struct {
		sort                   string
		expectedOrderBy        string
		expectedOrderDirection string
	}{
		{"created_at", "created_at", "ASC"},
		{"-created_at", "created_at", "DESC"},
		{"non_exist", "created_at", "ASC"},
		{"-non_exist", "created_at", "DESC"},
		{"last_executed", "last_executed", "ASC"},
		{"-last_executed", "last_executed", "DESC"},
	}

	for _, tt := range tests {
		orderBy, orderDirection := GetSortingCondition(tt.sort, map[string]bool{"created_at": true, "last_executed": true})

		if orderBy != tt.expectedOrderBy {
			t.Errorf("sort: %s -> orderBy: %s, expected: %s", tt.sort, orderBy, tt.expectedOrderBy)
		}

		if orderDirection != tt.expectedOrderDirection {
			t.Errorf("sort: %s -> orderDirection: %s, expected: %s", tt.sort, orderDirection, tt.expectedOrderDirection)
		}
	}
}
