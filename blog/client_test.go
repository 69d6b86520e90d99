package blog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

// fakeAPI serves total articles, pageSize per page.
func fakeAPI(t *testing.T, total int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/blogs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("missing accept header")
		}
		id := r.URL.Path[len("/blogs/"):]
		if id == "missing" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"_id":         id,
			"title":       "Title " + id,
			"description": "Description.",
			"category":    "AI",
			"sections":    []any{map[string]any{"subheading": "Part", "image": nil, "description": "Body."}},
		})
	})

	mux.HandleFunc("/blogs", func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if page < 1 || limit < 1 {
			t.Errorf("bad query %q", r.URL.RawQuery)
		}
		if r.URL.Query().Get("category") == "broken" {
			_, _ = w.Write([]byte(`{"status": "error"}`))
			return
		}

		start := (page - 1) * limit
		var blogs []map[string]any
		for i := start; i < start+limit && i < total; i++ {
			blogs = append(blogs, map[string]any{"id": fmt.Sprintf("b%d", i), "title": "T", "category": "AI"})
		}
		pages := (total + limit - 1) / limit
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "success",
			"data": map[string]any{
				"blogs": blogs,
				"pagination": map[string]any{
					"current_page": page,
					"total_pages":  pages,
					"total_count":  total,
					"limit":        limit,
					"has_next":     page < pages,
					"has_prev":     page > 1,
				},
				"filters": map[string]any{"category": nil},
			},
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(srv *httptest.Server, opts ...ClientOption) *Client {
	opts = append([]ClientOption{WithRequestsPerMinute(60000)}, opts...)
	return NewClient(srv.URL+"/", opts...)
}

func TestClientGet(t *testing.T) {
	c := newTestClient(fakeAPI(t, 0))

	b, err := c.Get(context.Background(), "abc")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if b.ID != "abc" || b.Title != "Title abc" || len(b.Sections) != 1 {
		t.Errorf("unexpected blog %+v", b)
	}
}

func TestClientGetNotFound(t *testing.T) {
	c := newTestClient(fakeAPI(t, 0))

	_, err := c.Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusNotFound {
		t.Errorf("expected *StatusError with 404, got %v", err)
	}
}

func TestClientList(t *testing.T) {
	c := newTestClient(fakeAPI(t, 8))

	resp, err := c.List(context.Background(), 2, 6, "")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(resp.Data.Blogs) != 2 {
		t.Errorf("expected 2 blogs on page 2, got %d", len(resp.Data.Blogs))
	}
	p := resp.Data.Pagination
	if p.CurrentPage != 2 || p.HasNext || !p.HasPrev || p.TotalCount != 8 {
		t.Errorf("unexpected pagination %+v", p)
	}
	if resp.Data.Blogs[0].ID != "b6" {
		t.Errorf("listing ids should decode from \"id\", got %q", resp.Data.Blogs[0].ID)
	}
}

func TestClientListUnexpectedStatus(t *testing.T) {
	c := newTestClient(fakeAPI(t, 8))

	_, err := c.List(context.Background(), 1, 6, "broken")
	if !errors.Is(err, ErrUnexpectedStatus) {
		t.Errorf("expected ErrUnexpectedStatus, got %v", err)
	}
}

func TestClientAll(t *testing.T) {
	tests := []struct {
		total int
		want  int
	}{
		{0, 0},
		{6, 6},
		{13, 13},
	}

	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.total), func(t *testing.T) {
			c := newTestClient(fakeAPI(t, tt.total))
			blogs, err := c.All(context.Background(), "")
			if err != nil {
				t.Fatalf("All failed: %v", err)
			}
			if len(blogs) != tt.want {
				t.Errorf("expected %d blogs, got %d", tt.want, len(blogs))
			}
		})
	}
}

func TestClientUsesCache(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		_, _ = w.Write([]byte(`{"_id": "abc", "title": "Cached"}`))
	}))
	defer srv.Close()

	cache, err := NewCache(t.TempDir(), 1<<20, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	c := newTestClient(srv, WithCache(cache))

	for i := 0; i < 3; i++ {
		b, err := c.Get(context.Background(), "abc")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if b.Title != "Cached" {
			t.Errorf("unexpected title %q", b.Title)
		}
	}
	if n := requests.Load(); n != 1 {
		t.Errorf("expected one request, got %d", n)
	}
}

func TestClientContextCanceled(t *testing.T) {
	c := newTestClient(fakeAPI(t, 1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.Get(ctx, "abc"); err == nil {
		t.Error("expected an error for a canceled context")
	}
}
