package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillbin/quillbin/internal/document"
	"github.com/quillbin/quillbin/internal/kv"
	"github.com/quillbin/quillbin/internal/share"
)

const testShareSecret = "handler-test-secret"

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	g := gin.New()
	h := &DocumentHandler{
		Store:          document.New(kv.NewMemoryStore(), 1024),
		ShareSecret:    testShareSecret,
		ShareBaseURL:   "http://test.local",
		MaxShareExpiry: 10080,
	}
	RegisterDocumentRoutes(g, h)
	return g
}

func do(g *gin.Engine, method, path, body, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	g.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestPublicDocumentLifecycle(t *testing.T) {
	g := newTestRouter(t)

	// CREATE
	w := do(g, http.MethodPost, "/api/documents", `{"title":"a.md","content":"hello"}`, "")
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode(t, w)
	doc := created["document"].(map[string]interface{})
	id := doc["id"].(string)
	require.NotEmpty(t, id)

	// GET
	w = do(g, http.MethodGet, "/api/documents/"+id, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	got := decode(t, w)
	assert.Equal(t, false, got["isPrivate"])
	assert.Equal(t, false, got["isOwner"])
	assert.Len(t, got["versions"], 1)

	// UPDATE
	w = do(g, http.MethodPatch, "/api/documents/"+id, `{"content":"hello2"}`, "")
	require.Equal(t, http.StatusOK, w.Code)
	updated := decode(t, w)
	doc = updated["document"].(map[string]interface{})
	versions := doc["versions"].([]interface{})
	require.Len(t, versions, 2)
	assert.EqualValues(t, 6, versions[0].(map[string]interface{})["size"])

	// RAW
	w = do(g, http.MethodGet, "/api/documents/"+id+"/raw", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hello2", w.Body.String())

	// DELETE
	w = do(g, http.MethodDelete, "/api/documents/"+id, "", "")
	require.Equal(t, http.StatusNoContent, w.Code)
	w = do(g, http.MethodGet, "/api/documents/"+id, "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPrivateDocumentAccess(t *testing.T) {
	g := newTestRouter(t)

	w := do(g, http.MethodPost, "/api/documents", `{"title":"s.md","content":"secret"}`, "T1")
	require.Equal(t, http.StatusCreated, w.Code)
	doc := decode(t, w)["document"].(map[string]interface{})
	id := doc["id"].(string)
	assert.Equal(t, true, doc["isPrivate"])
	assert.Equal(t, true, doc["isOwner"])
	rawKey := doc["rawKey"].(string)
	require.NotEmpty(t, rawKey)

	// a non-owner view must not expose the raw key
	w = do(g, http.MethodGet, "/api/documents/"+id, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	view := decode(t, w)
	assert.Equal(t, true, view["isPrivate"])
	assert.Equal(t, false, view["isOwner"])
	_, leaked := view["rawKey"]
	assert.False(t, leaked)

	// raw with a wrong token and no key
	w = do(g, http.MethodGet, "/api/documents/"+id+"/raw", "", "T2")
	assert.Equal(t, http.StatusForbidden, w.Code)

	// raw with the correct raw key
	w = do(g, http.MethodGet, "/api/documents/"+id+"/raw?key="+rawKey, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "secret", w.Body.String())

	// update rotates the key; the old one stops working
	w = do(g, http.MethodPatch, "/api/documents/"+id, `{"content":"secret2"}`, "T1")
	require.Equal(t, http.StatusOK, w.Code)
	w = do(g, http.MethodGet, "/api/documents/"+id+"/raw?key="+rawKey, "", "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	// update without the token
	w = do(g, http.MethodPatch, "/api/documents/"+id, `{"content":"x"}`, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCreateValidationErrors(t *testing.T) {
	g := newTestRouter(t)

	w := do(g, http.MethodPost, "/api/documents", `{"content":"x"}`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code, "missing title")

	w = do(g, http.MethodPost, "/api/documents", `{"title":"a.md"}`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code, "missing content")

	w = do(g, http.MethodPost, "/api/documents", `{"title":"a.md","content":42}`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code, "non-string content")

	big := strings.Repeat("x", 2048)
	w = do(g, http.MethodPost, "/api/documents", fmt.Sprintf(`{"title":"a.md","content":%q}`, big), "")
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestVersionEndpoint(t *testing.T) {
	g := newTestRouter(t)

	w := do(g, http.MethodPost, "/api/documents", `{"title":"a.md","content":"one"}`, "")
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode(t, w)
	id := created["document"].(map[string]interface{})["id"].(string)
	firstVer := created["version"].(map[string]interface{})["id"].(string)

	w = do(g, http.MethodPatch, "/api/documents/"+id, `{"content":"two"}`, "")
	require.Equal(t, http.StatusOK, w.Code)

	// the first version stays retrievable and immutable
	w = do(g, http.MethodGet, "/api/documents/"+id+"/versions/"+firstVer, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	ver := decode(t, w)
	assert.Equal(t, "one", ver["content"])
	assert.EqualValues(t, 3, ver["size"])

	w = do(g, http.MethodGet, "/api/documents/"+id+"/versions/bogus", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListPagination(t *testing.T) {
	g := newTestRouter(t)

	ids := make([]string, 5)
	for i := 0; i < 5; i++ {
		w := do(g, http.MethodPost, "/api/documents", fmt.Sprintf(`{"title":"d%d.md","content":"x"}`, i+1), "")
		require.Equal(t, http.StatusCreated, w.Code)
		ids[i] = decode(t, w)["document"].(map[string]interface{})["id"].(string)
	}

	w := do(g, http.MethodGet, "/api/documents?limit=2", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	page := decode(t, w)
	docs := page["documents"].([]interface{})
	require.Len(t, docs, 2)
	assert.Equal(t, ids[4], docs[0].(map[string]interface{})["id"])
	cursor := page["nextCursor"].(string)
	require.NotEmpty(t, cursor)

	w = do(g, http.MethodGet, "/api/documents?limit=2&cursor="+cursor, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	page = decode(t, w)
	docs = page["documents"].([]interface{})
	require.Len(t, docs, 2)
	assert.Equal(t, ids[2], docs[0].(map[string]interface{})["id"])

	w = do(g, http.MethodGet, "/api/documents?limit=2&cursor="+page["nextCursor"].(string), "", "")
	require.Equal(t, http.StatusOK, w.Code)
	page = decode(t, w)
	require.Len(t, page["documents"], 1)
	_, hasCursor := page["nextCursor"]
	assert.False(t, hasCursor)

	w = do(g, http.MethodGet, "/api/documents?limit=nope", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListMine(t *testing.T) {
	g := newTestRouter(t)

	w := do(g, http.MethodPost, "/api/documents", `{"title":"m.md","content":"x"}`, "T1")
	require.Equal(t, http.StatusCreated, w.Code)
	do(g, http.MethodPost, "/api/documents", `{"title":"p.md","content":"x"}`, "")

	w = do(g, http.MethodGet, "/api/documents/mine", "", "T1")
	require.Equal(t, http.StatusOK, w.Code)
	page := decode(t, w)
	docs := page["documents"].([]interface{})
	require.Len(t, docs, 1)
	assert.Equal(t, "m.md", docs[0].(map[string]interface{})["title"])

	// owned documents stay out of the public listing
	w = do(g, http.MethodGet, "/api/documents", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	page = decode(t, w)
	require.Len(t, page["documents"], 1)

	w = do(g, http.MethodGet, "/api/documents/mine", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestShareLifecycle(t *testing.T) {
	g := newTestRouter(t)

	w := do(g, http.MethodPost, "/api/documents", `{"title":"a.md","content":"hello"}`, "")
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode(t, w)["document"].(map[string]interface{})["id"].(string)

	// issue for a public document
	w = do(g, http.MethodPost, "/api/documents/"+id+"/share", `{"expiresInMinutes":30}`, "")
	require.Equal(t, http.StatusOK, w.Code)
	issued := decode(t, w)
	token := issued["token"].(string)
	require.NotEmpty(t, token)
	assert.Contains(t, issued["url"], "/raw?share=")
	assert.Greater(t, int64(issued["expiresAt"].(float64)), time.Now().UnixMilli())

	// redeem
	w = do(g, http.MethodGet, "/api/share/"+token, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	view := decode(t, w)
	assert.Equal(t, id, view["id"])

	// the derived raw URL works
	w = do(g, http.MethodGet, "/api/documents/"+id+"/raw?share="+token, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hello", w.Body.String())

	// garbage tokens fail uniformly
	w = do(g, http.MethodGet, "/api/share/garbage", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	// an expired token fails even with a valid signature
	expired, err := share.CreateToken(share.Payload{
		DocumentID: id,
		ExpiresAt:  time.Now().Add(-time.Minute).UnixMilli(),
	}, testShareSecret)
	require.NoError(t, err)
	w = do(g, http.MethodGet, "/api/share/"+expired, "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSharePrivateScope(t *testing.T) {
	g := newTestRouter(t)

	w := do(g, http.MethodPost, "/api/documents", `{"title":"s.md","content":"x"}`, "T1")
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode(t, w)["document"].(map[string]interface{})["id"].(string)

	// only the owner may mint a link for a private document
	w = do(g, http.MethodPost, "/api/documents/"+id+"/share", `{"expiresInMinutes":30}`, "T2")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(g, http.MethodPost, "/api/documents/"+id+"/share", `{"expiresInMinutes":30}`, "T1")
	require.Equal(t, http.StatusOK, w.Code)
	token := decode(t, w)["token"].(string)

	// but redeeming stays public-only: a valid token for a private
	// document is rejected like an invalid one
	w = do(g, http.MethodGet, "/api/share/"+token, "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
