package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"bilancio/internal/mirror"

	"golang.org/x/oauth2"
	googleauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Config carries the Sheets coordinates and OAuth material. Values come
// from the application config; the token file is produced by oauth-init.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	OAuthClientFile string
	OAuthTokenFile  string
	OAuthClientJSON string
	OAuthTokenJSON  string
}

// Client mirrors monthly summaries into a Google Sheet, one row per
// period: Period | Income | Expense | Net.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

// Ensure interface conformance
var _ mirror.SummaryWriter = (*Client)(nil)

// New creates a Sheets client authenticated with the user's OAuth token.
func New(ctx context.Context, cfg Config) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	sheetName := strings.TrimSpace(cfg.SheetName)
	if sheetName == "" {
		sheetName = "Summaries"
	}

	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

// newSheetsService initializes a Sheets Service from the OAuth client
// credentials plus the stored user token.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	clientJSON, err := readCredential(cfg.OAuthClientJSON, cfg.OAuthClientFile)
	if err != nil {
		return nil, fmt.Errorf("oauth client credentials: %w", err)
	}
	if clientJSON == nil {
		return nil, errors.New("missing OAuth client credentials (set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE)")
	}

	tokenJSON, err := readCredential(cfg.OAuthTokenJSON, cfg.OAuthTokenFile)
	if err != nil {
		return nil, fmt.Errorf("oauth token: %w", err)
	}
	if tokenJSON == nil {
		return nil, errors.New("missing OAuth token (run oauth-init to create it)")
	}

	oauthCfg, err := googleauth.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse OAuth client credentials: %w", err)
	}

	var tok oauth2.Token
	if err := json.Unmarshal(tokenJSON, &tok); err != nil {
		return nil, fmt.Errorf("parse OAuth token: %w", err)
	}

	slog.InfoContext(ctx, "Creating Google Sheets service",
		"scope", gsheet.SpreadsheetsScope,
		"has_refresh_token", tok.RefreshToken != "")

	// The oauth2 transport wraps our pooled client, so token refreshes
	// and API calls share the same connection pool.
	authCtx := context.WithValue(ctx, oauth2.HTTPClient, newHTTPClientWithPooling())
	service, err := gsheet.NewService(ctx, goption.WithHTTPClient(oauthCfg.Client(authCtx, &tok)))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return service, nil
}

// readCredential prefers inline JSON over a file path. A nil result with
// nil error means neither source is configured.
func readCredential(inline, file string) ([]byte, error) {
	if v := strings.TrimSpace(inline); v != "" {
		return []byte(v), nil
	}
	if path := strings.TrimSpace(file); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		return data, nil
	}
	return nil, nil
}

// newHTTPClientWithPooling creates an HTTP client tuned for the Sheets API
// with connection pooling and keep-alive settings.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

// WriteSummary upserts the row for the given period. The period string in
// column A is the key: an existing row is rewritten in place, otherwise
// the row is appended below the last used one.
func (c *Client) WriteSummary(ctx context.Context, row mirror.SummaryRow) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	rng := fmt.Sprintf("%s!A:A", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to read period column of %s: %w", c.sheetName, err)
	}

	periodKey := row.Period.String()
	target := findPeriodRow(resp.Values, periodKey)
	if target == 0 {
		target = len(resp.Values) + 1
		if len(resp.Values) == 0 {
			if err := c.writeHeader(ctx); err != nil {
				return "", err
			}
			target = 2
		}
	}

	dataRange := fmt.Sprintf("%s!A%d:D%d", c.sheetName, target, target)
	vr := &gsheet.ValueRange{Values: [][]any{{
		periodKey,
		row.Income.Euros(),
		row.Expense.Euros(),
		row.Net.Euros(),
	}}}

	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, dataRange, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to update %s: %w", dataRange, err)
	}

	return dataRange, nil
}

// findPeriodRow scans the period column for the row keyed by periodKey
// and returns its 1-based sheet row, or 0 when the period has no row yet.
// Cells are compared after trimming, so hand-edited sheets still match.
func findPeriodRow(values [][]any, periodKey string) int {
	for i, r := range values {
		if len(r) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(r[0])) == periodKey {
			return i + 1
		}
	}
	return 0
}

func (c *Client) writeHeader(ctx context.Context) error {
	headerRange := fmt.Sprintf("%s!A1:D1", c.sheetName)
	vr := &gsheet.ValueRange{Values: [][]any{{"Period", "Income", "Expense", "Net"}}}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, headerRange, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to write header row of %s: %w", c.sheetName, err)
	}
	return nil
}
