package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const testClientJSON = `{"installed":{"client_id":"test","client_secret":"test","redirect_uris":["http://localhost"],"auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token"}}`

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), "  ", Credentials{}, nil)
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewSheetsService_CredentialErrors(t *testing.T) {
	tests := []struct {
		name    string
		creds   Credentials
		wantErr string
	}{
		{"nothing configured", Credentials{}, "missing credentials"},
		{"missing token", Credentials{OAuthClientJSON: testClientJSON}, "missing oauth token"},
		{"invalid client", Credentials{OAuthClientJSON: "invalid-json", OAuthTokenJSON: `{"access_token":"x"}`}, "oauth config"},
		{"invalid token", Credentials{OAuthClientJSON: testClientJSON, OAuthTokenJSON: "invalid-json"}, "oauth token"},
		{"empty token", Credentials{OAuthClientJSON: testClientJSON, OAuthTokenJSON: `{}`}, "no access or refresh token"},
		{"unreadable service account file", Credentials{ServiceAccountFile: "/nonexistent/sa.json"}, "service account"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newSheetsService(context.Background(), tt.creds)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestNewSheetsService_OAuth(t *testing.T) {
	svc, err := newSheetsService(context.Background(), Credentials{
		OAuthClientJSON: testClientJSON,
		OAuthTokenJSON:  `{"access_token":"test","token_type":"Bearer"}`,
	})
	if err != nil {
		t.Fatalf("newSheetsService: %v", err)
	}
	if svc == nil {
		t.Fatal("expected a service")
	}
}

func TestQuoteRange(t *testing.T) {
	if got := quoteRange("gota-u1"); got != "'gota-u1'" {
		t.Errorf("quoteRange = %s", got)
	}
	if got := quoteRange("it's"); got != "'it''s'" {
		t.Errorf("quoteRange = %s", got)
	}
}

// fakeSheets records the calls a Client makes against the Sheets REST API.
type fakeSheets struct {
	mu      sync.Mutex
	tabs    map[string]int64
	calls   []string
	updated [][]any
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	body, _ := io.ReadAll(r.Body)
	path := r.URL.Path
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(path, "/spreadsheets/sheet-1"):
		f.calls = append(f.calls, "get")
		var sheets []map[string]any
		for title, id := range f.tabs {
			sheets = append(sheets, map[string]any{"properties": map[string]any{"title": title, "sheetId": id}})
		}
		json.NewEncoder(w).Encode(map[string]any{"sheets": sheets})

	case r.Method == http.MethodPost && strings.HasSuffix(path, ":batchUpdate"):
		var req gsheet.BatchUpdateSpreadsheetRequest
		json.Unmarshal(body, &req)
		for _, rq := range req.Requests {
			if rq.AddSheet != nil {
				f.calls = append(f.calls, "add:"+rq.AddSheet.Properties.Title)
				f.tabs[rq.AddSheet.Properties.Title] = int64(len(f.tabs) + 10)
			}
			if rq.DeleteSheet != nil {
				f.calls = append(f.calls, "delete")
				for title, id := range f.tabs {
					if id == rq.DeleteSheet.SheetId {
						delete(f.tabs, title)
					}
				}
			}
		}
		w.Write([]byte(`{}`))

	case r.Method == http.MethodPost && strings.HasSuffix(path, ":clear"):
		f.calls = append(f.calls, "clear")
		w.Write([]byte(`{}`))

	case r.Method == http.MethodPut && strings.Contains(path, "/values/"):
		f.calls = append(f.calls, "update")
		var vr gsheet.ValueRange
		json.Unmarshal(body, &vr)
		f.updated = nil
		for _, row := range vr.Values {
			f.updated = append(f.updated, row)
		}
		w.Write([]byte(`{}`))

	default:
		http.Error(w, "unexpected "+r.Method+" "+path, http.StatusNotFound)
	}
}

func newFakeClient(t *testing.T, f *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()),
		goption.WithoutAuthentication())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return NewWithService(svc, "sheet-1", nil)
}

func TestClient_SyncUser(t *testing.T) {
	f := &fakeSheets{tabs: map[string]int64{"Existing": 0}}
	c := newFakeClient(t, f)

	rows := [][]string{{"2025-03-14", "Cena", "45000", "ARS", "Restaurantes", "Crédito", "Visa", "Sí"}}
	if err := c.SyncUser(context.Background(), "gota-u1", rows); err != nil {
		t.Fatalf("SyncUser: %v", err)
	}

	want := []string{"get", "add:gota-u1", "clear", "update"}
	if strings.Join(f.calls, ",") != strings.Join(want, ",") {
		t.Errorf("calls = %v, want %v", f.calls, want)
	}
	if len(f.updated) != 2 {
		t.Fatalf("updated %d rows, want header + 1", len(f.updated))
	}
	if f.updated[0][0] != "Fecha" || f.updated[1][1] != "Cena" {
		t.Errorf("unexpected values %v", f.updated)
	}

	f.calls = nil
	if err := c.SyncUser(context.Background(), "gota-u1", nil); err != nil {
		t.Fatalf("SyncUser: %v", err)
	}
	if f.calls[1] != "clear" {
		t.Errorf("existing tab must not be re-added: %v", f.calls)
	}
}

func TestClient_DeleteUser(t *testing.T) {
	f := &fakeSheets{tabs: map[string]int64{"gota-u1": 0, "gota-u2": 11}}
	c := newFakeClient(t, f)

	if err := c.DeleteUser(context.Background(), "gota-u1"); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if _, ok := f.tabs["gota-u1"]; ok {
		t.Error("tab with sheet id 0 should have been deleted")
	}
	if _, ok := f.tabs["gota-u2"]; !ok {
		t.Error("other tabs must survive")
	}

	f.calls = nil
	if err := c.DeleteUser(context.Background(), "gota-missing"); err != nil {
		t.Fatalf("DeleteUser on missing tab: %v", err)
	}
	if len(f.calls) != 1 {
		t.Errorf("missing tab should only be looked up, got %v", f.calls)
	}
}

func TestClient_NilService(t *testing.T) {
	c := &Client{spreadsheetID: "x"}
	if err := c.SyncUser(context.Background(), "t", nil); err == nil {
		t.Error("expected error without service")
	}
	if err := c.DeleteUser(context.Background(), "t"); err == nil {
		t.Error("expected error without service")
	}
}
