//go:build integration

package google

import (
	"context"
	"os"
	"testing"
	"time"

	"tally/internal/core"
)

// Integration tests require real Google Sheets credentials
// Run with: go test -tags=integration ./internal/sheets/google

func TestIntegration_EventMirrorFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	spreadsheetID := os.Getenv("GOOGLE_SPREADSHEET_ID")
	if spreadsheetID == "" {
		t.Skip("GOOGLE_SPREADSHEET_ID not set, skipping integration test")
	}
	if os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON") == "" &&
		os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE") == "" &&
		os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
		t.Skip("service account credentials not configured, skipping integration test")
	}

	ctx := context.Background()
	client, err := New(ctx, spreadsheetID, "Integration Events")
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	entityID := "it-" + now.Format("20060102150405")
	ev := core.Event{
		Type:       core.EventTransactionCreated,
		UserID:     "integration",
		EntityID:   entityID,
		OccurredAt: now,
		Transaction: &core.Transaction{
			Kind:   core.KindExpense,
			Amount: 4200,
			Note:   "integration test",
		},
	}

	ref, err := client.AppendEvent(ctx, ev)
	if err != nil {
		t.Fatalf("AppendEvent failed: %v", err)
	}
	t.Logf("Appended at %s", ref)

	rows, err := client.ListEvents(ctx, now.Year())
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	found := false
	for _, r := range rows {
		if r.EntityID == entityID {
			found = true
			if r.Amount != 4200 {
				t.Errorf("amount = %d, want 4200", r.Amount)
			}
		}
	}
	if !found {
		t.Errorf("appended row %s not found among %d rows", entityID, len(rows))
	}
}
