package http

import (
	"net/http"
	"testing"
	"time"

	"sonar/internal/model"
)

func activeKey(id, raw string) *model.APIKey {
	return &model.APIKey{
		ID:                 id,
		KeyPrefix:          raw[:keyPrefixClip(raw)],
		Name:               "test",
		QuotaTotal:         100,
		RateLimitPerMinute: 60,
		IsActive:           true,
		CreatedAt:          time.Now().UTC(),
	}
}

func keyPrefixClip(raw string) int {
	if len(raw) < 12 {
		return len(raw)
	}
	return 12
}

func TestAuthMissingKey(t *testing.T) {
	s, _, _, _ := newTestServer(true)

	resp := postJSON(t, s, "/v1/search", SearchRequest{Query: "q"}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	env := decodeBody[ErrorResponse](t, resp)
	if env.Code != "UNAUTHENTICATED" {
		t.Fatalf("expected UNAUTHENTICATED, got %q", env.Code)
	}
}

func TestAuthBadFormatAndUnknownKey(t *testing.T) {
	s, _, _, _ := newTestServer(true)

	resp := postJSON(t, s, "/v1/search", SearchRequest{Query: "q"},
		map[string]string{"X-API-Key": "sk-wrong-prefix"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad prefix: expected 401, got %d", resp.StatusCode)
	}

	resp = postJSON(t, s, "/v1/search", SearchRequest{Query: "q"},
		map[string]string{"X-API-Key": "sonar_unknownunknown"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unknown key: expected 401, got %d", resp.StatusCode)
	}
}

func TestAuthAcceptsHeaderAndBearer(t *testing.T) {
	s, backend, _, _ := newTestServer(true)
	raw := "sonar_testkeytestkey"
	backend.keys[raw] = activeKey("key-1", raw)

	resp := postJSON(t, s, "/v1/search", SearchRequest{Query: "q"},
		map[string]string{"X-API-Key": raw})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("X-API-Key: expected 200, got %d", resp.StatusCode)
	}

	resp = postJSON(t, s, "/v1/search", SearchRequest{Query: "q"},
		map[string]string{"Authorization": "Bearer " + raw})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Bearer: expected 200, got %d", resp.StatusCode)
	}

	if backend.touched["key-1"] != 2 {
		t.Fatalf("expected 2 touches, got %d", backend.touched["key-1"])
	}
	if backend.quotaAdded["key-1"] != 2 {
		t.Fatalf("expected quota 2, got %d", backend.quotaAdded["key-1"])
	}
}

func TestAuthInactiveAndExpired(t *testing.T) {
	s, backend, _, _ := newTestServer(true)

	inactive := "sonar_inactiveinactive"
	k := activeKey("key-i", inactive)
	k.IsActive = false
	backend.keys[inactive] = k

	resp := postJSON(t, s, "/v1/search", SearchRequest{Query: "q"},
		map[string]string{"X-API-Key": inactive})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("inactive: expected 403, got %d", resp.StatusCode)
	}

	expired := "sonar_expiredexpired"
	k = activeKey("key-e", expired)
	past := time.Now().UTC().Add(-time.Hour)
	k.ExpiresAt = &past
	backend.keys[expired] = k

	resp = postJSON(t, s, "/v1/search", SearchRequest{Query: "q"},
		map[string]string{"X-API-Key": expired})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expired: expected 403, got %d", resp.StatusCode)
	}
}

func TestAuthQuotaExhausted(t *testing.T) {
	s, backend, _, _ := newTestServer(true)

	raw := "sonar_quotaquotaquota"
	k := activeKey("key-q", raw)
	k.QuotaUsed = k.QuotaTotal
	backend.keys[raw] = k

	resp := postJSON(t, s, "/v1/search", SearchRequest{Query: "q"},
		map[string]string{"X-API-Key": raw})
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.StatusCode)
	}
	env := decodeBody[ErrorResponse](t, resp)
	if env.Code != "QUOTA_EXCEEDED" {
		t.Fatalf("expected QUOTA_EXCEEDED, got %q", env.Code)
	}
}

func TestAnswerChargesSecondQuotaUnit(t *testing.T) {
	s, backend, _, _ := newTestServer(true)
	raw := "sonar_answeranswerkey"
	backend.keys[raw] = activeKey("key-a", raw)

	resp := postJSON(t, s, "/v1/answer", AnswerRequest{Query: "q"},
		map[string]string{"X-API-Key": raw})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if backend.quotaAdded["key-a"] != 2 {
		t.Fatalf("answer must cost 2 quota units, got %d", backend.quotaAdded["key-a"])
	}
}

func TestCrawlStatusForeignOwnerForbidden(t *testing.T) {
	s, backend, _, _ := newTestServer(true)
	raw := "sonar_ownerownerkey1"
	backend.keys[raw] = activeKey("key-1", raw)
	backend.jobs["job-x"] = &model.CrawlJob{ID: "job-x", APIKeyID: "key-2", Status: "running"}

	req, _ := http.NewRequest(http.MethodGet, "/v1/crawl/status/job-x", nil)
	req.Header.Set("X-API-Key", raw)
	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign job, got %d", resp.StatusCode)
	}
}
