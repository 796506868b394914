// internal/app/system/search/search_test.go
package search

import "testing"

func TestEmailPivotOK(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		status string
		want   bool
	}{
		{"email with active status", "user@example.com", "active", true},
		{"partial email with disabled status", "@domain", "disabled", true},
		{"uppercase status", "user@example.com", "ACTIVE", true},
		{"name query never pivots", "ada lovelace", "active", false},
		{"empty query never pivots", "", "active", false},
		{"unconstrained status never pivots", "user@example.com", "", false},
		{"status all never pivots", "user@example.com", "all", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EmailPivotOK(tt.query, tt.status); got != tt.want {
				t.Errorf("EmailPivotOK(%q, %q) = %v, want %v", tt.query, tt.status, got, tt.want)
			}
		})
	}
}
