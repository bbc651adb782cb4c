package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/fenwicklabs/coderunner/internal/pkg/apierr"
)

func TestRespondAPIErrRateLimitedIncludesRetryAfter(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/run", func(c *gin.Context) {
		RespondAPIErr(c, apierr.RateLimited(60, "too many requests"))
	})

	req := httptest.NewRequest(http.MethodGet, "/run", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("unexpected status: got=%d want=%d", rec.Code, http.StatusTooManyRequests)
	}
	if got := rec.Header().Get("Retry-After"); got != "60" {
		t.Fatalf("unexpected Retry-After header: got=%q want=%q", got, "60")
	}

	var body ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	if body.RetryAfter != 60 {
		t.Fatalf("unexpected retryAfter in body: got=%d want=%d", body.RetryAfter, 60)
	}
	if body.Error.Message == "" {
		t.Fatalf("expected a non-empty error message in body")
	}
}

func TestRespondAPIErrNonRateLimitedOmitsRetryAfter(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/run", func(c *gin.Context) {
		RespondAPIErr(c, apierr.New(apierr.KindInvalidParameter, "bad param"))
	})

	req := httptest.NewRequest(http.MethodGet, "/run", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: got=%d want=%d", rec.Code, http.StatusBadRequest)
	}
	if got := rec.Header().Get("Retry-After"); got != "" {
		t.Fatalf("unexpected Retry-After header on non-rate-limited response: got=%q", got)
	}

	var body ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	if body.RetryAfter != 0 {
		t.Fatalf("unexpected retryAfter in body: got=%d want=0", body.RetryAfter)
	}
}
