package sheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"govdoc-scraper/config"
	"govdoc-scraper/logger"
	"govdoc-scraper/models"
	"govdoc-scraper/report"
)

func TestExtractSpreadsheetID(t *testing.T) {
	tests := []struct {
		url, want string
	}{
		{"https://docs.google.com/spreadsheets/d/abc123/edit", "abc123"},
		{"https://docs.google.com/spreadsheets/d/abc123/edit?usp=sharing", "abc123"},
		{"https://docs.google.com/spreadsheets/d/abc123#gid=0", "abc123"},
		{"https://example.com/sheet", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractSpreadsheetID(tt.url), tt.url)
	}
}

func TestSanitizeSheetName(t *testing.T) {
	assert.Equal(t, "数据_安全_2024", sanitizeSheetName(" 数据/安全:2024 "))
	assert.Equal(t, "Sheet1", sanitizeSheetName("  "))
	assert.Len(t, []rune(sanitizeSheetName(strings.Repeat("表", 150))), maxSheetName)
}

type recorded struct {
	method, path string
	body         map[string]any
}

func fakeSheetsAPI(t *testing.T) (*httptest.Server, *[]recorded) {
	t.Helper()
	var mu sync.Mutex
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		calls = append(calls, recorded{method: r.Method, path: r.URL.Path, body: body})
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if strings.HasSuffix(r.URL.Path, ":batchUpdate") {
			_, _ = w.Write([]byte(`{"spreadsheetId":"abc123","replies":[{"addSheet":{"properties":{"sheetId":42,"title":"x"}}}]}`))
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestCreateSheetAndWriteDocuments(t *testing.T) {
	srv, calls := fakeSheetsAPI(t)
	ctx := context.Background()
	w, err := NewWriter(ctx, config.SheetsConfig{SpreadsheetID: "https://docs.google.com/spreadsheets/d/abc123/edit"},
		logger.NewNop(), option.WithEndpoint(srv.URL+"/"), option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	docs := []models.Document{{Title: "关于数据安全的通知", URL: "https://a.gov.cn/1.html", PublishDateMonth: "2024年06月"}}
	meta := report.Meta{Region: "上海市", Department: "经济和信息化委员会", Keywords: []string{"数据"}}

	name, id, err := w.CreateSheetAndWriteDocuments(ctx, "数据/2024", docs, meta)
	require.NoError(t, err)
	assert.Equal(t, "数据_2024", name)
	assert.EqualValues(t, 42, id)

	require.Len(t, *calls, 2)
	assert.Equal(t, "/v4/spreadsheets/abc123:batchUpdate", (*calls)[0].path)
	update := (*calls)[1]
	assert.Equal(t, http.MethodPut, update.method)
	assert.Equal(t, "/v4/spreadsheets/abc123/values/'数据_2024'!A1", update.path)

	values, ok := update.body["values"].([]any)
	require.True(t, ok)
	require.Len(t, values, 3, "metadata, header, one document")
	header := values[1].([]any)
	assert.Equal(t, report.Header[0], header[0])
	row := values[2].([]any)
	assert.Equal(t, "关于数据安全的通知", row[3])
}

func TestNewWriterNeedsID(t *testing.T) {
	_, err := NewWriter(context.Background(), config.SheetsConfig{}, logger.NewNop())
	assert.Error(t, err)
}

func TestLoadCredentials(t *testing.T) {
	t.Setenv(CredentialsEnv, "")
	_, err := loadCredentials("", logger.NewNop())
	assert.ErrorContains(t, err, CredentialsEnv)

	t.Setenv(CredentialsEnv, `{"type":"authorized_user"}`)
	_, err = loadCredentials("", logger.NewNop())
	assert.ErrorContains(t, err, "service account")

	t.Setenv(CredentialsEnv, ` {"type":"service_account"} `)
	data, err := loadCredentials("", logger.NewNop())
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"service_account"}`, string(data))
}

func TestValuesWithoutMeta(t *testing.T) {
	v := Values(nil, report.Meta{})
	require.Len(t, v, 1)
	assert.Len(t, v[0], len(report.Header))
}
