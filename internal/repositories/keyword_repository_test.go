package repositories

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeywordSearch_MapsHitsToChunks(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"hits": []map[string]interface{}{
				{"content": "disputes pause the billing cycle", "score": 0.6},
				{"content": "", "score": 0.5},
				{"content": "tax rates come from a lookup table", "score": 0.45},
			},
		})
	}))
	defer srv.Close()

	repo := NewHTTPKeywordRepository(srv.URL, time.Second)
	chunks, err := repo.Search(context.Background(), "billing disputes", 5)

	assert.NoError(t, err)
	assert.Equal(t, "/v1/search", gotPath)
	assert.Equal(t, "billing disputes", gotBody["query"])
	assert.Equal(t, float64(5), gotBody["limit"])

	assert.Len(t, chunks, 2)
	assert.Equal(t, "disputes pause the billing cycle", chunks[0].Text)
	assert.Equal(t, "keyword", chunks[0].Source)
	assert.Equal(t, float32(0.6), chunks[0].Score)
}

func TestKeywordSearch_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "index rebuilding", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	repo := NewHTTPKeywordRepository(srv.URL, time.Second)
	_, err := repo.Search(context.Background(), "query", 5)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "keyword_search")
	assert.Contains(t, err.Error(), "503")
}

func TestKeywordSearch_Unreachable(t *testing.T) {
	repo := NewHTTPKeywordRepository("http://127.0.0.1:1", 100*time.Millisecond)

	_, err := repo.Search(context.Background(), "query", 5)

	assert.Error(t, err)
}
