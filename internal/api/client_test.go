package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/lamim/salonforge/internal/config"
	"github.com/lamim/salonforge/pkg/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testClient(baseURL string) *Client {
	cfg := config.Default().Server
	cfg.BaseURL = baseURL
	cfg.RequestsPerMinute = 600
	return NewClient(cfg, "test-key", testLogger())
}

type recordingObserver struct {
	mu       sync.Mutex
	statuses []int
}

func (r *recordingObserver) RecordAPIRequest(_ string, status int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
}

func TestGenerate_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/generate" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Expected Authorization header 'Bearer test-key', got '%s'", r.Header.Get("Authorization"))
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Expected Content-Type 'application/json', got '%s'", r.Header.Get("Content-Type"))
		}

		var req models.GenerationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Keyword != "ボブ" || req.Gender != models.GenderLadies || req.Model != "m" {
			t.Errorf("unexpected request body %+v", req)
		}

		_, _ = w.Write([]byte(`{
			"success": true,
			"templates": [
				{"title": "t1", "menu": "m1", "comment": "c1", "hashtag": ["#a", "#b"]},
				{"title": "t2", "menu": "m2", "comment": "c2", "hashtag": "#c,#d"}
			],
			"is_featured": true,
			"featured_keyword_info": {"name": "Spring Bob"}
		}`))
	}))
	defer server.Close()

	client := testClient(server.URL)
	obs := &recordingObserver{}
	client.SetObserver(obs)

	resp, err := client.Generate(context.Background(), models.GenerationRequest{
		Keyword: "ボブ", Gender: models.GenderLadies, Season: "spring", Model: "m",
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !resp.Succeeded() {
		t.Error("Expected success")
	}
	if len(resp.Templates) != 2 {
		t.Fatalf("Expected 2 templates, got %d", len(resp.Templates))
	}
	if got := resp.Templates[0].Hashtag.Join(" "); got != "#a #b" {
		t.Errorf("list hashtag = %q", got)
	}
	if got := resp.Templates[1].Hashtag.Join(" "); got != "#c,#d" {
		t.Errorf("string hashtag = %q", got)
	}
	if !resp.IsFeatured || resp.FeaturedKeywordInfo == nil || resp.FeaturedKeywordInfo.Name != "Spring Bob" {
		t.Errorf("featured info not decoded: %+v", resp)
	}
	if len(obs.statuses) != 1 || obs.statuses[0] != http.StatusOK {
		t.Errorf("observer statuses = %v", obs.statuses)
	}
}

func TestGenerate_ErrorEnvelope(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode string
		wantKind Kind // empty when a response is expected
	}{
		{
			name:     "no results",
			status:   http.StatusNotFound,
			body:     `{"success": false, "error": {"code": "NO_RESULTS_FOUND", "message": "nothing"}, "status": 404}`,
			wantCode: models.ErrorCodeNoResults,
		},
		{
			name:     "validation",
			status:   http.StatusBadRequest,
			body:     `{"success": false, "error": {"code": "VALIDATION_ERROR", "message": "keyword required"}}`,
			wantCode: models.ErrorCodeValidation,
		},
		{
			name:     "logical failure with 200",
			status:   http.StatusOK,
			body:     `{"success": false, "error": {"code": "FEATURED_KEYWORDS_ERROR", "message": "down"}}`,
			wantCode: models.ErrorCodeFeaturedKeywords,
		},
		{
			name:     "4xx without envelope",
			status:   http.StatusForbidden,
			body:     `forbidden`,
			wantKind: KindServer,
		},
		{
			name:     "5xx with envelope",
			status:   http.StatusInternalServerError,
			body:     `{"success": false, "error": {"code": "UNKNOWN_ERROR", "message": "boom"}}`,
			wantKind: KindServer,
		},
		{
			name:     "malformed json",
			status:   http.StatusOK,
			body:     `{"success": tru`,
			wantKind: KindInvalidResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			resp, err := testClient(server.URL).Generate(context.Background(), models.GenerationRequest{Keyword: "k", Gender: models.GenderMens})
			if tt.wantKind != "" {
				if err == nil {
					t.Fatalf("expected %s error, got response %+v", tt.wantKind, resp)
				}
				if got := KindOf(err); got != tt.wantKind {
					t.Errorf("KindOf() = %s, want %s (err: %v)", got, tt.wantKind, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.Succeeded() {
				t.Error("expected logical failure")
			}
			if resp.ErrorCode() != tt.wantCode {
				t.Errorf("ErrorCode() = %s, want %s", resp.ErrorCode(), tt.wantCode)
			}
		})
	}
}

func TestGenerate_ServerErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := testClient(server.URL).Generate(context.Background(), models.GenerationRequest{Keyword: "k"})
	if KindOf(err) != KindServer {
		t.Fatalf("KindOf() = %s, want server (err: %v)", KindOf(err), err)
	}
	if StatusCode(err) != http.StatusBadGateway {
		t.Errorf("StatusCode() = %d, want 502", StatusCode(err))
	}
}

func TestGenerate_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := testClient(server.URL).Generate(ctx, models.GenerationRequest{Keyword: "k"})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if KindOf(err) != KindTimeout {
		t.Errorf("KindOf() = %s, want timeout (err: %v)", KindOf(err), err)
	}
}

func TestGenerate_ConnectionRefused(t *testing.T) {
	// Grab a free port and close it so nothing is listening
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	_, err = testClient("http://"+addr).Generate(context.Background(), models.GenerationRequest{Keyword: "k"})
	if err == nil {
		t.Fatal("expected network error")
	}
	if KindOf(err) != KindNetwork {
		t.Errorf("KindOf() = %s, want network (err: %v)", KindOf(err), err)
	}
}

func TestFetchFeaturedKeywords(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/featured-keywords" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gender := r.URL.Query().Get("gender")
		if gender == "mens" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = fmt.Fprintf(w, `{"success": true, "keywords": [{"keyword": "ボブ", "name": "Bob", "gender": %q}], "fallback": true}`, gender)
	}))
	defer server.Close()

	client := testClient(server.URL)

	resp, err := client.FetchFeaturedKeywords(context.Background(), models.GenderLadies)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.Succeeded() || !resp.Fallback {
		t.Errorf("unexpected response %+v", resp)
	}
	if len(resp.Keywords) != 1 || resp.Keywords[0].Gender != models.GenderLadies {
		t.Errorf("keywords = %+v", resp.Keywords)
	}

	_, err = client.FetchFeaturedKeywords(context.Background(), models.GenderMens)
	if KindOf(err) != KindServer {
		t.Errorf("KindOf() = %s, want server", KindOf(err))
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"deadline", context.DeadlineExceeded, KindTimeout},
		{"wrapped deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), KindTimeout},
		{"api error", &Error{Kind: KindServer, StatusCode: 500}, KindServer},
		{"op error", &net.OpError{Op: "dial", Err: errors.New("refused")}, KindNetwork},
		{"plain", errors.New("mystery"), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestRateLimiterPool_ReusesLimiter(t *testing.T) {
	pool := NewRateLimiterPool(testLogger())
	a := pool.GetOrCreate(EndpointGenerate, 60)
	b := pool.GetOrCreate(EndpointGenerate, 120)
	if a != b {
		t.Error("expected the existing limiter to be reused")
	}
	if pool.GetOrCreate(EndpointFeatured, 60) == a {
		t.Error("expected a separate limiter per endpoint")
	}
}

func TestFetchFeaturedKeywords_RateLimitedPastDeadline(t *testing.T) {
	var hits int
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		_, _ = w.Write([]byte(`{"success": true, "keywords": []}`))
	}))
	defer server.Close()

	cfg := config.Default().Server
	cfg.BaseURL = server.URL
	cfg.RequestsPerMinute = 6 // burst of 3, then one request every 10s
	client := NewClient(cfg, "", testLogger())

	fetch := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_, err := client.FetchFeaturedKeywords(ctx, models.GenderLadies)
		return err
	}
	for i := 0; i < 3; i++ {
		if err := fetch(); err != nil {
			t.Fatalf("fetch %d: unexpected error: %v", i+1, err)
		}
	}

	err := fetch()
	if KindOf(err) != KindTimeout {
		t.Errorf("KindOf() = %s, want timeout (err: %v)", KindOf(err), err)
	}
	mu.Lock()
	defer mu.Unlock()
	if hits != 3 {
		t.Errorf("server hits = %d, want 3", hits)
	}
}

func TestFetchFeaturedKeywords_InvalidPayload(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"null", `null`},
		{"array", `[]`},
		{"string", `"ok"`},
		{"truncated", `{"success": tr`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			resp, err := testClient(server.URL).FetchFeaturedKeywords(context.Background(), models.GenderLadies)
			if resp != nil {
				t.Errorf("expected no response, got %+v", resp)
			}
			if KindOf(err) != KindInvalidResponse {
				t.Errorf("KindOf() = %s, want invalid response (err: %v)", KindOf(err), err)
			}
		})
	}
}
