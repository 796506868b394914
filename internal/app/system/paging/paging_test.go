// internal/app/system/paging/paging_test.go
package paging

import (
	"testing"
)

func TestTrimPage(t *testing.T) {
	tests := []struct {
		name     string
		rows     []int
		before   string
		after    string
		wantLen  int
		wantPrev bool
		wantNext bool
	}{
		{"first page, no extra row", []int{1, 2, 3}, "", "", 3, false, false},
		{"first page, extra row means next exists", make([]int, PageSize+1), "", "", PageSize, false, true},
		{"forward page, no extra row", []int{1, 2}, "", "cur", 2, true, false},
		{"forward page, extra row", make([]int, PageSize+1), "", "cur", PageSize, true, true},
		{"backward page, no extra row", []int{1, 2}, "cur", "", 2, false, true},
		{"backward page, extra row trims the front", make([]int, PageSize+1), "cur", "", PageSize, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := tt.rows
			res := TrimPage(&rows, tt.before, tt.after)
			if len(rows) != tt.wantLen {
				t.Errorf("trimmed length = %d, want %d", len(rows), tt.wantLen)
			}
			if res.HasPrev != tt.wantPrev || res.HasNext != tt.wantNext {
				t.Errorf("Result = %+v, want HasPrev=%v HasNext=%v", res, tt.wantPrev, tt.wantNext)
			}
		})
	}
}

func TestTrimPage_BackwardDropsOldestRow(t *testing.T) {
	rows := make([]int, 0, PageSize+1)
	for i := 0; i <= PageSize; i++ {
		rows = append(rows, i)
	}
	TrimPage(&rows, "cur", "")
	if rows[0] != 1 {
		t.Errorf("backward trim should drop the first element, got leading %d", rows[0])
	}
}

func TestConfigureKeyset_Direction(t *testing.T) {
	fwd := ConfigureKeyset("", "")
	if fwd.Direction != Forward || fwd.SortOrder != 1 || fwd.Cursor != nil {
		t.Errorf("empty cursors: got %+v, want forward ascending without cursor", fwd)
	}

	back := ConfigureKeyset("not-a-cursor", "")
	if back.Direction != Backward || back.SortOrder != -1 {
		t.Errorf("before set: got %+v, want backward descending", back)
	}
	if back.Cursor != nil {
		t.Error("undecodable cursor should be ignored")
	}
	if back.KeysetWindow("full_name_ci") != nil {
		t.Error("KeysetWindow without a cursor should be nil")
	}
}

func TestReverse(t *testing.T) {
	rows := []string{"c", "b", "a"}
	Reverse(rows)
	if rows[0] != "a" || rows[2] != "c" {
		t.Errorf("Reverse = %v, want [a b c]", rows)
	}
}
