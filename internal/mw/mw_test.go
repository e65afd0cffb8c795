package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, method, path string, header http.Header) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	r.ServeHTTP(w, req)
	return w
}

func TestCache(t *testing.T) {
	store := cache.New(time.Minute, time.Minute)
	calls := 0
	r := gin.New()
	r.Use(Invalidate(store))
	r.GET("/items", Cache(store, time.Minute), func(c *gin.Context) {
		calls++
		c.Header("X-Calls", "counted")
		c.JSON(http.StatusOK, gin.H{"calls": calls})
	})
	r.GET("/missing", Cache(store, time.Minute), func(c *gin.Context) {
		calls++
		c.JSON(http.StatusNotFound, gin.H{"error": "nope"})
	})
	r.POST("/items", func(c *gin.Context) { c.Status(http.StatusCreated) })
	r.POST("/fail", func(c *gin.Context) { c.Status(http.StatusConflict) })

	first := serve(r, http.MethodGet, "/items", nil)
	assert.Equal(t, `{"calls":1}`, first.Body.String())
	assert.Empty(t, first.Header().Get(CacheHeader))

	second := serve(r, http.MethodGet, "/items", nil)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, `{"calls":1}`, second.Body.String())
	assert.Equal(t, "HIT", second.Header().Get(CacheHeader))
	assert.Equal(t, "counted", second.Header().Get("X-Calls"))
	assert.Equal(t, "application/json; charset=utf-8", second.Header().Get("Content-Type"))

	serve(r, http.MethodGet, "/missing", nil)
	serve(r, http.MethodGet, "/missing", nil)
	assert.Equal(t, 3, calls, "error responses are not cached")

	serve(r, http.MethodPost, "/fail", nil)
	assert.Equal(t, `{"calls":1}`, serve(r, http.MethodGet, "/items", nil).Body.String(), "failed writes keep the cache")

	serve(r, http.MethodPost, "/items", nil)
	assert.Equal(t, `{"calls":4}`, serve(r, http.MethodGet, "/items", nil).Body.String())
}

func TestCache_KeyedByPathAndQuery(t *testing.T) {
	store := cache.New(time.Minute, time.Minute)
	r := gin.New()
	r.GET("/items/:id", Cache(store, time.Minute), func(c *gin.Context) {
		c.String(http.StatusOK, c.Param("id")+c.Query("page"))
	})

	// Requests built for a client carry no RequestURI.
	assert.Equal(t, "a", serve(r, http.MethodGet, "/items/a", nil).Body.String())
	assert.Equal(t, "b", serve(r, http.MethodGet, "/items/b", nil).Body.String())
	assert.Equal(t, "b2", serve(r, http.MethodGet, "/items/b?page=2", nil).Body.String())

	hit := serve(r, http.MethodGet, "/items/a", nil)
	assert.Equal(t, "a", hit.Body.String())
	assert.Equal(t, "HIT", hit.Header().Get(CacheHeader))
	assert.Equal(t, 3, store.ItemCount())
}

func TestRateLimiter(t *testing.T) {
	r := gin.New()
	r.Use(RateLimiter(rate.Limit(1), 2, "X-Forwarded-For"))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	first := http.Header{"X-Forwarded-For": {"10.0.0.1, 192.168.0.1"}}
	second := http.Header{"X-Forwarded-For": {"10.0.0.2"}}

	testCases := []struct {
		name     string
		header   http.Header
		expected int
	}{
		{"first client", first, http.StatusNoContent},
		{"first client burst", first, http.StatusNoContent},
		{"first client limited", first, http.StatusTooManyRequests},
		{"other client has its own bucket", second, http.StatusNoContent},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, serve(r, http.MethodGet, "/ping", tc.header).Code)
		})
	}
}

func TestRateLimiter_Disabled(t *testing.T) {
	r := gin.New()
	r.Use(RateLimiter(0, 0, ""))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	for i := 0; i < 20; i++ {
		assert.Equal(t, http.StatusNoContent, serve(r, http.MethodGet, "/ping", nil).Code)
	}
}
