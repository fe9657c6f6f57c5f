package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"gota/internal/export"
	"gota/internal/log"
	ports "gota/internal/sheets"
)

// Credentials selects how the client authenticates. A service account takes
// precedence over an OAuth client/token pair. Inline JSON wins over a file.
type Credentials struct {
	ServiceAccountJSON string
	ServiceAccountFile string
	OAuthClientJSON    string
	OAuthClientFile    string
	OAuthTokenJSON     string
	OAuthTokenFile     string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	logger        *log.Logger
}

var _ ports.Mirror = (*Client)(nil)

// New creates a Sheets client for spreadsheetID.
func New(ctx context.Context, spreadsheetID string, creds Credentials, logger *log.Logger) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, spreadsheetID, logger), nil
}

// NewWithService wraps an existing service.
func NewWithService(svc *gsheet.Service, spreadsheetID string, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Discard()
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, logger: logger.WithComponent(log.ComponentSheets)}
}

func readSecret(inline, file string) ([]byte, error) {
	inline = strings.TrimSpace(inline)
	file = strings.TrimSpace(file)
	switch {
	case inline != "":
		return []byte(inline), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}
		return b, nil
	default:
		return nil, nil
	}
}

func newSheetsService(ctx context.Context, creds Credentials) (*gsheet.Service, error) {
	saJSON, err := readSecret(creds.ServiceAccountJSON, creds.ServiceAccountFile)
	if err != nil {
		return nil, fmt.Errorf("service account: %w", err)
	}
	if saJSON != nil {
		return gsheet.NewService(ctx,
			goption.WithCredentialsJSON(saJSON),
			goption.WithScopes(gsheet.SpreadsheetsScope))
	}

	clientJSON, err := readSecret(creds.OAuthClientJSON, creds.OAuthClientFile)
	if err != nil {
		return nil, fmt.Errorf("oauth client: %w", err)
	}
	if clientJSON == nil {
		return nil, errors.New("missing credentials (set GOOGLE_SERVICE_ACCOUNT_JSON|FILE or GOOGLE_OAUTH_CLIENT_JSON|FILE)")
	}
	cfg, err := google.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}

	tokenJSON, err := readSecret(creds.OAuthTokenJSON, creds.OAuthTokenFile)
	if err != nil {
		return nil, fmt.Errorf("oauth token: %w", err)
	}
	if tokenJSON == nil {
		return nil, errors.New("missing oauth token (run oauth-init, then set GOOGLE_OAUTH_TOKEN_JSON|FILE)")
	}
	tok, err := parseToken(tokenJSON)
	if err != nil {
		return nil, err
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, newHTTPClientWithPooling())
	return gsheet.NewService(ctx, goption.WithHTTPClient(oauth2.NewClient(ctx, cfg.TokenSource(ctx, tok))))
}

func parseToken(b []byte) (*oauth2.Token, error) {
	var tok oauth2.Token
	if err := json.Unmarshal(b, &tok); err != nil {
		return nil, fmt.Errorf("parse oauth token: %w", err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, errors.New("parse oauth token: no access or refresh token")
	}
	return &tok, nil
}

// newHTTPClientWithPooling keeps connections to the Sheets API warm between
// worker batches.
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
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

// sheetID returns the numeric id of the tab titled tab.
func (c *Client) sheetID(ctx context.Context, tab string) (int64, bool, error) {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, false, fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == tab {
			return s.Properties.SheetId, true, nil
		}
	}
	return 0, false, nil
}

func (c *Client) ensureTab(ctx context.Context, tab string) error {
	_, ok, err := c.sheetID(ctx, tab)
	if err != nil || ok {
		return err
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: tab}},
	}}}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %s: %w", tab, err)
	}
	c.logger.InfoContext(ctx, "Created user tab", log.FieldSheetTab, tab)
	return nil
}

// SyncUser replaces the tab content with the header and rows.
func (c *Client) SyncUser(ctx context.Context, tab string, rows [][]string) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	if err := c.ensureTab(ctx, tab); err != nil {
		return err
	}

	all := quoteRange(tab) + "!A:H"
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, all, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", all, err)
	}

	values := make([][]any, 0, len(rows)+1)
	values = append(values, toRow(export.Header))
	for _, row := range rows {
		values = append(values, toRow(row))
	}
	rng := quoteRange(tab) + "!A1"
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}

	c.logger.DebugContext(ctx, "Mirrored user rows", log.FieldSheetTab, tab, "rows", len(rows))
	return nil
}

// DeleteUser removes the tab if it exists.
func (c *Client) DeleteUser(ctx context.Context, tab string) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	id, ok, err := c.sheetID(ctx, tab)
	if err != nil || !ok {
		return err
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		DeleteSheet: &gsheet.DeleteSheetRequest{SheetId: id, ForceSendFields: []string{"SheetId"}},
	}}}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete sheet %s: %w", tab, err)
	}
	c.logger.InfoContext(ctx, "Deleted user tab", log.FieldSheetTab, tab)
	return nil
}

// quoteRange wraps a tab title for A1 notation.
func quoteRange(tab string) string {
	return "'" + strings.ReplaceAll(tab, "'", "''") + "'"
}

func toRow(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
