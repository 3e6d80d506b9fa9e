package gitlab

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProvider(t *testing.T, mux *http.ServeMux, opts ...Option) *GitLabProvider {
	t.Helper()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	p, err := New(GitLabConfig{
		URL:        server.URL + "/api/v4",
		Token:      "secret",
		MaxRetries: 0,
		RetryDelay: time.Millisecond,
	}, opts...)
	require.NoError(t, err)
	return p
}

func TestNewRequiresURLAndToken(t *testing.T) {
	_, err := New(GitLabConfig{Token: "x"})
	assert.Error(t, err)
	_, err = New(GitLabConfig{URL: "https://gitlab.example.com/api/v4"})
	assert.Error(t, err)
}

func TestListOpenMergeRequests(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v4/projects/42/merge_requests", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "opened", q.Get("state"))
		assert.Equal(t, "500", q.Get("per_page"))
		assert.Empty(t, q.Get("created_after"))
		fmt.Fprint(w, `[{"iid":1},{"iid":2}]`)
	})
	p := testProvider(t, mux)

	items, err := p.ListOpenMergeRequests(context.Background(), 42)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestListOpenMergeRequestsFastMode(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 30, 0, 0, time.UTC)
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v4/projects/42/merge_requests", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2024-03-01T12:30:00Z", r.URL.Query().Get("created_after"))
		fmt.Fprint(w, `[]`)
	})
	p := testProvider(t, mux, WithFastMode(2), WithClock(func() time.Time { return now }))

	items, err := p.ListOpenMergeRequests(context.Background(), 42)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestDiscussionsAndAwardEmoji(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v4/projects/7/merge_requests/3/discussions", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "" {
			w.Header().Set("X-Total-Pages", "2")
			fmt.Fprint(w, `[{"id":"a","notes":[]}]`)
			return
		}
		fmt.Fprint(w, `[{"id":"b","notes":[]}]`)
	})
	mux.HandleFunc("/api/v4/projects/7/merge_requests/3/award_emoji", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"name":"thumbsup","user":{"username":"alice","name":"Alice"}}]`)
	})
	p := testProvider(t, mux)

	discussions, err := p.Discussions(context.Background(), 7, 3)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"a","notes":[]},{"id":"b","notes":[]}]`, string(discussions))

	emoji, err := p.AwardEmoji(context.Background(), 7, 3)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name":"thumbsup","user":{"username":"alice","name":"Alice"}}]`, string(emoji))
}

func TestDiscussionsErrorMentionsMergeRequest(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v4/projects/7/merge_requests/3/discussions", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	})
	p := testProvider(t, mux)

	_, err := p.Discussions(context.Background(), 7, 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "!3")
}

func TestCurrentUsername(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v4/user", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("PRIVATE-TOKEN"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":1,"username":"janedoe","name":"Jane Doe"}`)
	})
	p := testProvider(t, mux)

	username, err := p.CurrentUsername(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "janedoe", username)
}

func TestCurrentUsernameUnauthorized(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v4/user", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"message":"401 Unauthorized"}`)
	})
	p := testProvider(t, mux)

	_, err := p.CurrentUsername(context.Background())
	assert.ErrorContains(t, err, "failed to get current user")
}

func TestCurrentUsernameCancelled(t *testing.T) {
	var calls int
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v4/user", func(w http.ResponseWriter, r *http.Request) {
		calls++
	})
	p := testProvider(t, mux)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.CurrentUsername(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestCreatedAfter(t *testing.T) {
	now := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	assert.True(t, CreatedAfter(now, 0).IsZero())
	assert.Equal(t, time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC), CreatedAfter(now, 1))
}
