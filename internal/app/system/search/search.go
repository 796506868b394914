// internal/app/system/search/search.go
package search

import "strings"

// EmailPivotOK reports whether a paged user search should sort by email
// instead of folded full name. Pivoting is worthwhile when the query is
// clearly an email fragment (contains '@') and the status filter pins
// the result set to a single status, which keeps the email index path
// selective.
func EmailPivotOK(query, status string) bool {
	if !strings.Contains(query, "@") {
		return false
	}
	s := strings.TrimSpace(strings.ToLower(status))
	return s == "active" || s == "disabled"
}
