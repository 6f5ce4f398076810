package cmd

import (
	"testing"

	"github.com/kozaktomas/face-attendance/internal/attendance"
)

func TestFilterRecords(t *testing.T) {
	records := []attendance.Record{
		{Name: "Jana Nováková"},
		{Name: "Petr Novák"},
		{Name: "Eva Svobodová"},
	}

	tests := []struct {
		filter string
		want   int
	}{
		{"", 3},
		{"novak", 2},
		{"NOVÁKOVÁ", 1},
		{"dvořák", 0},
	}
	for _, tc := range tests {
		t.Run(tc.filter, func(t *testing.T) {
			if got := len(filterRecords(records, tc.filter)); got != tc.want {
				t.Errorf("filterRecords(%q) returned %d records, want %d", tc.filter, got, tc.want)
			}
		})
	}
}
