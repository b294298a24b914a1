package submission

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postapi/internal/constants"
	"postapi/internal/logger"
)

func newRouter(t *testing.T) (*gin.Engine, fixture) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := newFixture(t)
	r := gin.New()
	NewHandler(f.service, logger.NopLogger()).RegisterRoutes(r)
	return r, f
}

func put(r *gin.Engine, path, body, provider, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPut, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if provider != "" {
		req.Header.Set(constants.HeaderProvider, provider)
	}
	if key != "" {
		req.Header.Set(constants.HeaderKey, key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandler_Submit(t *testing.T) {
	r, f := newRouter(t)

	body := `{"title":"Drought bulletin","source":[1503],"score":12345678901234567}`
	w := put(r, "/api/v2/report/"+testUUID, body, "provider-1", testSecret)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var resp AcceptedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, AcceptedResponse{UUID: testUUID, Bundle: "report"}, resp)

	items, err := f.queue.List(t.Context(), 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, json.Number("12345678901234567"), items[0].Payload["score"], "large integers keep full precision")
}

func TestHandler_Errors(t *testing.T) {
	r, _ := newRouter(t)

	tests := []struct {
		name   string
		path   string
		body   string
		key    string
		status int
		code   string
	}{
		{"bad credentials", "/api/v2/report/" + testUUID, `{"title":"x"}`, "wrong", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"invalid json", "/api/v2/report/" + testUUID, `{"title":`, testSecret, http.StatusBadRequest, "REJECTED_ENQUEUE"},
		{"empty body", "/api/v2/report/" + testUUID, ``, testSecret, http.StatusBadRequest, "REJECTED_ENQUEUE"},
		{"unsupported bundle", "/api/v2/blog_post/" + testUUID, `{"title":"x"}`, testSecret, http.StatusNotFound, "UNSUPPORTED_BUNDLE"},
		{"bad uuid", "/api/v2/report/42", `{"title":"x"}`, testSecret, http.StatusBadRequest, "REJECTED_ENQUEUE"},
		{"second document", "/api/v2/report/" + testUUID, `{"title":"x"}{"title":"y"}`, testSecret, http.StatusBadRequest, "REJECTED_ENQUEUE"},
		{"trailing garbage", "/api/v2/report/" + testUUID, `{"title":"x"} ]`, testSecret, http.StatusBadRequest, "REJECTED_ENQUEUE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := put(r, tt.path, tt.body, "provider-1", tt.key)
			assert.Equal(t, tt.status, w.Code)

			var resp map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp["error_code"])
		})
	}
}

func TestHandler_BodyLimit(t *testing.T) {
	r, f := newRouter(t)

	body := `{"title":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	w := put(r, "/api/v2/report/"+testUUID, body, "provider-1", testSecret)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "PAYLOAD_TOO_LARGE", resp["error_code"])

	count, err := f.queue.Count(t.Context())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestHandler_TrailingWhitespaceIsAccepted(t *testing.T) {
	r, _ := newRouter(t)

	w := put(r, "/api/v2/report/"+testUUID, "{\"title\":\"x\"}\n\t ", "provider-1", testSecret)
	assert.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
}

func TestHandler_ListBundles(t *testing.T) {
	r, _ := newRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v2/bundles", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp BundlesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"job", "report", "training"}, resp.Bundles)
}
