package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"profilescraper/internal/core/model"
)

func run(t *testing.T, o *options, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmdWith(o)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

var doc = model.ProfilePosts{
	Profile: "alice",
	Posts: []model.PostRecord{{
		URL: "a", Content: "c1", OCRText: "o1",
		Comments: []model.Comment{{Username: "u1", Text: "hi"}},
	}},
}

func TestScrapeSync(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true, "profile": "alice", "status": "resolved", "posts": doc.Posts,
		})
	}))
	t.Cleanup(srv.Close)

	out, _, err := run(t, &options{}, "--server", srv.URL, "scrape", "alice")
	require.NoError(t, err)
	var posts []model.PostRecord
	require.NoError(t, json.Unmarshal([]byte(out), &posts))
	require.Equal(t, doc.Posts, posts)
}

func TestScrapeAsyncWait(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost:
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte(`{"success":true,"profile":"alice","status":"accepted"}`))
		case polls.Add(1) < 2:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"success":false,"error":"no_data","kind":"no_data"}`))
		default:
			_ = json.NewEncoder(w).Encode(doc)
		}
	}))
	t.Cleanup(srv.Close)

	o := &options{sleep: func(context.Context, time.Duration) error { return nil }}
	out, _, err := run(t, o, "--server", srv.URL, "scrape", "alice", "--mode", "async", "--wait")
	require.NoError(t, err)
	require.Contains(t, out, `"url": "a"`)
	require.EqualValues(t, 2, polls.Load())
}

func TestScrapeAsyncExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte(`{"success":true,"profile":"alice","status":"accepted"}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	o := &options{sleep: func(context.Context, time.Duration) error { return nil }}
	out, errOut, err := run(t, o, "--server", srv.URL, "scrape", "alice", "--mode", "async", "--wait", "--attempts", "3")
	require.NoError(t, err)
	require.Empty(t, out)
	require.Contains(t, errOut, "may still be running")
}

func TestScrapeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusGatewayTimeout)
		_, _ = w.Write([]byte(`{"success":false,"error":"timeout: worker exceeded 5m0s","kind":"timeout"}`))
	}))
	t.Cleanup(srv.Close)

	_, _, err := run(t, &options{}, "--server", srv.URL, "scrape", "alice")
	require.ErrorContains(t, err, "504 timeout")
}

func TestStatusAndAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/scrape/alice/job":
			_, _ = w.Write([]byte(`{"profile":"alice","state":"resolved"}`))
		case "/v1/scrape/alice":
			_ = json.NewEncoder(w).Encode(doc)
		case "/v1/posts":
			_ = json.NewEncoder(w).Encode([]model.ProfilePosts{doc})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	out, _, err := run(t, &options{}, "--server", srv.URL, "status", "alice")
	require.NoError(t, err)
	require.Contains(t, out, `"state": "resolved"`)
	require.Contains(t, out, `"ocr_text": "o1"`)

	out, _, err = run(t, &options{}, "--server", srv.URL, "all")
	require.NoError(t, err)
	require.Contains(t, out, `"profile": "alice"`)

	_, _, err = run(t, &options{}, "--server", srv.URL, "status", "bob")
	require.ErrorContains(t, err, "nothing known about bob")
}

func TestArgs(t *testing.T) {
	_, _, err := run(t, &options{}, "scrape")
	require.Error(t, err)
}
