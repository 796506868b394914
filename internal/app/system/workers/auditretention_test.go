// internal/app/system/workers/auditretention_test.go
package workers

import (
	"testing"
	"time"

	"github.com/mwhitaker/enrollhub/internal/app/store/audit"
	"github.com/mwhitaker/enrollhub/internal/testutil"
	"go.uber.org/zap"
)

func TestAuditRetention_PrunesOldEvents(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	events := audit.New(db)
	old := audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventUserCreated,
		Timestamp: time.Now().UTC().Add(-100 * 24 * time.Hour),
	}
	if err := events.Log(ctx, old); err != nil {
		t.Fatalf("failed to seed old event: %v", err)
	}
	recent := audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventUserCreated,
	}
	if err := events.Log(ctx, recent); err != nil {
		t.Fatalf("failed to seed recent event: %v", err)
	}

	w := NewAuditRetention(events, zap.NewNop(), 20*time.Millisecond, 90*24*time.Hour)
	w.Start()
	time.Sleep(120 * time.Millisecond)
	w.Stop()

	remaining, err := events.Query(ctx, audit.QueryFilter{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(remaining) != 1 {
		t.Fatalf("expected 1 surviving event, got %d", len(remaining))
	}
	if remaining[0].Timestamp.Before(time.Now().UTC().Add(-time.Hour)) {
		t.Error("the surviving event should be the recent one")
	}
}

func TestAuditRetention_StopWithoutTick(t *testing.T) {
	db := testutil.SetupTestDB(t)

	w := NewAuditRetention(audit.New(db), zap.NewNop(), time.Hour, time.Hour)
	w.Start()
	w.Stop()
}
