package google

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tally/internal/core"
)

func clearCredentialEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"GOOGLE_SERVICE_ACCOUNT_JSON", "GOOGLE_SERVICE_ACCOUNT_FILE", "GOOGLE_APPLICATION_CREDENTIALS"} {
		t.Setenv(k, "")
	}
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), "  ", "Events")
	if err == nil {
		t.Fatal("expected error for missing spreadsheet id")
	}
	if err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewSheetsService_MissingCredentials(t *testing.T) {
	clearCredentialEnv(t)

	_, err := newSheetsService(context.Background())
	if err == nil {
		t.Fatal("expected error for missing credentials")
	}
	if !strings.Contains(err.Error(), "missing service account credentials") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewSheetsService_UnreadableFile(t *testing.T) {
	clearCredentialEnv(t)
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", filepath.Join(t.TempDir(), "missing.json"))

	_, err := newSheetsService(context.Background())
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("expected read error, got: %v", err)
	}
}

func TestClient_AppendEventWithoutService(t *testing.T) {
	c := &Client{spreadsheetID: "test", sheetBase: "Events", knownSheets: map[string]bool{}}

	if _, err := c.AppendEvent(context.Background(), core.Event{}); err == nil {
		t.Fatal("expected error for untyped event")
	}

	_, err := c.AppendEvent(context.Background(), core.Event{Type: core.EventUserDeleted, OccurredAt: time.Now()})
	if err == nil || !strings.Contains(err.Error(), "not initialized") {
		t.Fatalf("expected not initialized error, got: %v", err)
	}

	if _, err := c.ListEvents(context.Background(), 2024); err == nil {
		t.Fatal("expected error listing without service")
	}
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		base string
		year int
		want string
	}{
		{"Events", 2024, "2024 Events"},
		{"  Events ", 2025, "2025 Events"},
		{"2023 Events", 2024, "2023 Events"},
		{"", 2024, ""},
		{"1800 Events", 2024, "2024 1800 Events"},
	}
	for _, tt := range tests {
		if got := yearPrefixedName(tt.base, tt.year); got != tt.want {
			t.Errorf("yearPrefixedName(%q, %d) = %q, want %q", tt.base, tt.year, got, tt.want)
		}
	}
}

func TestParseRows_SkipsHeaderAndGarbage(t *testing.T) {
	values := [][]any{
		{"Timestamp", "Type", "User", "Entity", "Kind", "Amount", "Category", "Detail"},
		{"2024-03-01T10:00:00Z", "transaction.created", "u1", "t1", "expense", float64(45000), "Food", "pho"},
		{"not a time"},
		{},
		{"2024-03-02T10:00:00Z", "enrollment.joined", "u1", "e1", "ACTIVE"},
	}

	rows := parseRows(values)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d: %+v", len(rows), rows)
	}
	if rows[0].Amount != 45000 || rows[0].Category != "Food" {
		t.Errorf("unexpected first row: %+v", rows[0])
	}
	if rows[1].Type != core.EventEnrollmentJoined {
		t.Errorf("unexpected second row: %+v", rows[1])
	}
}
