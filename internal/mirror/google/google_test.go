package google

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/mirror"
)

const (
	validClientJSON = `{"installed":{"client_id":"test","client_secret":"test","redirect_uris":["http://localhost"],"auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token"}}`
	validTokenJSON  = `{"access_token":"test","token_type":"Bearer","refresh_token":"refresh"}`
)

func TestNewMissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{})
	if err == nil {
		t.Fatal("expected error for missing spreadsheet id")
	}
	if !strings.Contains(err.Error(), "missing spreadsheet id") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewMissingOAuthClient(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "test-id"})
	if err == nil {
		t.Fatal("expected error for missing oauth client")
	}
	if !strings.Contains(err.Error(), "missing OAuth client credentials") {
		t.Errorf("expected missing client error, got: %v", err)
	}
}

func TestNewMissingOAuthToken(t *testing.T) {
	_, err := New(context.Background(), Config{
		SpreadsheetID:   "test-id",
		OAuthClientJSON: validClientJSON,
	})
	if err == nil {
		t.Fatal("expected error for missing oauth token")
	}
	if !strings.Contains(err.Error(), "missing OAuth token") {
		t.Errorf("expected missing token error, got: %v", err)
	}
}

func TestNewRejectsMalformedClientJSON(t *testing.T) {
	_, err := New(context.Background(), Config{
		SpreadsheetID:   "test-id",
		OAuthClientJSON: `not-json`,
		OAuthTokenJSON:  validTokenJSON,
	})
	if err == nil {
		t.Fatal("expected error with malformed client JSON")
	}
	if !strings.Contains(err.Error(), "parse OAuth client credentials") {
		t.Errorf("expected client parsing error, got: %v", err)
	}
}

func TestNewRejectsMalformedTokenJSON(t *testing.T) {
	_, err := New(context.Background(), Config{
		SpreadsheetID:   "test-id",
		OAuthClientJSON: validClientJSON,
		OAuthTokenJSON:  `not-json`,
	})
	if err == nil {
		t.Fatal("expected error with malformed token JSON")
	}
	if !strings.Contains(err.Error(), "parse OAuth token") {
		t.Errorf("expected token parsing error, got: %v", err)
	}
}

// Constructing the service performs no API calls, so a fully configured
// client can be built offline.
func TestNewDefaultsSheetName(t *testing.T) {
	c, err := New(context.Background(), Config{
		SpreadsheetID:   "  test-id  ",
		OAuthClientJSON: validClientJSON,
		OAuthTokenJSON:  validTokenJSON,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if c.spreadsheetID != "test-id" {
		t.Errorf("spreadsheet id not trimmed: %q", c.spreadsheetID)
	}
	if c.sheetName != "Summaries" {
		t.Errorf("expected default sheet name Summaries, got %q", c.sheetName)
	}

	c, err = New(context.Background(), Config{
		SpreadsheetID:   "test-id",
		SheetName:       " Monthly ",
		OAuthClientJSON: validClientJSON,
		OAuthTokenJSON:  validTokenJSON,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if c.sheetName != "Monthly" {
		t.Errorf("sheet name not trimmed: %q", c.sheetName)
	}
}

func TestReadCredential(t *testing.T) {
	dir := t.TempDir()
	credPath := filepath.Join(dir, "client.json")
	if err := os.WriteFile(credPath, []byte(`{"from":"file"}`), 0600); err != nil {
		t.Fatalf("write credential file: %v", err)
	}

	got, err := readCredential(` {"inline":true} `, credPath)
	if err != nil {
		t.Fatalf("readCredential failed: %v", err)
	}
	if string(got) != `{"inline":true}` {
		t.Errorf("inline JSON should win over the file, got %q", got)
	}

	got, err = readCredential("", credPath)
	if err != nil {
		t.Fatalf("readCredential failed: %v", err)
	}
	if string(got) != `{"from":"file"}` {
		t.Errorf("unexpected file contents: %q", got)
	}

	got, err = readCredential("", "")
	if err != nil || got != nil {
		t.Errorf("expected nil, nil for unconfigured credential, got %q, %v", got, err)
	}

	if _, err := readCredential("", filepath.Join(dir, "absent.json")); err == nil {
		t.Error("expected error for missing credential file")
	}
}

func TestWriteSummaryNilService(t *testing.T) {
	c := &Client{spreadsheetID: "test-id", sheetName: "Summaries"}

	_, err := c.WriteSummary(context.Background(), mirror.SummaryRow{
		Period: core.Period{Year: 2024, Month: time.January},
	})
	if err == nil {
		t.Fatal("expected error with nil service")
	}
	if !strings.Contains(err.Error(), "sheets service not initialized") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestFindPeriodRow(t *testing.T) {
	values := [][]any{
		{"Period", "Income", "Expense", "Net"},
		{"2024-01"},
		{},
		{" 2024-02 "},
		{2024},
	}

	cases := []struct {
		key  string
		want int
	}{
		{"2024-01", 2},
		{"2024-02", 4}, // hand-edited cell with whitespace
		{"2024", 5},    // non-string cell
		{"2024-03", 0},
		{"Period", 1},
	}

	for _, tc := range cases {
		if got := findPeriodRow(values, tc.key); got != tc.want {
			t.Errorf("findPeriodRow(%q) = %d, want %d", tc.key, got, tc.want)
		}
	}

	if got := findPeriodRow(nil, "2024-01"); got != 0 {
		t.Errorf("findPeriodRow on empty sheet = %d, want 0", got)
	}
}
