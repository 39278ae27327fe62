package sheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func newTestService(t *testing.T, handler http.HandlerFunc) *Service {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewService(option.WithEndpoint(srv.URL + "/"))
}

func TestAppendRow(t *testing.T) {
	var got struct {
		Values [][]interface{} `json:"values"`
	}
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasPrefix(r.URL.Path, "/v4/spreadsheets/sheet-1/values/"), r.URL.Path)
		assert.True(t, strings.HasSuffix(r.URL.Path, ":append"), r.URL.Path)
		assert.Equal(t, "USER_ENTERED", r.URL.Query().Get("valueInputOption"))
		assert.Equal(t, "INSERT_ROWS", r.URL.Query().Get("insertDataOption"))
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"spreadsheetId":"sheet-1"}`))
	})

	err := svc.AppendRow(context.Background(), "token-1", "sheet-1", "Registros!A1", []interface{}{"2026-01-01T00:00:00Z", "a@b.c", "alta"})
	require.NoError(t, err)
	require.Len(t, got.Values, 1)
	assert.Equal(t, []interface{}{"2026-01-01T00:00:00Z", "a@b.c", "alta"}, got.Values[0])
}

func TestAppendRowError(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"code":404,"message":"Requested entity was not found."}}`))
	})

	err := svc.AppendRow(context.Background(), "token-1", "missing", "Registros!A1", []interface{}{"x"})
	assert.Error(t, err)
}

func TestCreateSpreadsheet(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v4/spreadsheets", r.URL.Path)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		props := body["properties"].(map[string]interface{})
		assert.Equal(t, "Invoices", props["title"])
		sheet := body["sheets"].([]interface{})[0].(map[string]interface{})
		assert.Equal(t, "Registros", sheet["properties"].(map[string]interface{})["title"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"spreadsheetId":"new-sheet"}`))
	})

	id, err := svc.CreateSpreadsheet(context.Background(), "token-1", "Invoices", "Registros", []string{"Fecha", "Origen"})
	require.NoError(t, err)
	assert.Equal(t, "new-sheet", id)
}

func TestA1Range(t *testing.T) {
	assert.Equal(t, "Registros!A1", A1Range("Registros", "A1"))
	assert.Equal(t, "'My Log'!A1", A1Range("My Log", "A1"))
	assert.Equal(t, "'Bob''s'!A1", A1Range("Bob's", "A1"))
}
