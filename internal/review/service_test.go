package review

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewcheck/internal/batch"
	"github.com/reviewcheck/internal/mergerequest"
	"github.com/reviewcheck/internal/seen"
)

func metadataJSON(projectID, iid int, author string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{
		"iid": %d, "project_id": %d, "title": "MR %d",
		"author": {"username": %q, "name": %q},
		"web_url": "https://gitlab.example.com/p/-/merge_requests/%d",
		"upvotes": 0, "created_at": "2024-03-01T10:00:00Z",
		"source_branch": "b", "description": null
	}`, iid, projectID, iid, author, author, iid))
}

// openThread is an unresolved thread whose notes are "id:username:body".
func openThread(id string, notes ...[3]string) string {
	out := ""
	for i, n := range notes {
		if i > 0 {
			out += ","
		}
		resolved := ""
		if i == 0 {
			resolved = `, "resolved": false`
		}
		out += fmt.Sprintf(`{"id": %s, "author": {"username": %q, "name": %q}, "body": %q,
			"updated_at": "2024-03-15T09:00:00Z"%s}`, n[0], n[1], n[1], n[2], resolved)
	}
	return fmt.Sprintf(`{"id": %q, "notes": [%s]}`, id, out)
}

type fakeSource struct {
	mu          sync.Mutex
	listings    map[int][]json.RawMessage
	listErr     error
	discussions map[int]string
	failing     map[int]error
	fetched     []int
}

func (f *fakeSource) ListOpenMergeRequests(_ context.Context, projectID int) ([]json.RawMessage, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.listings[projectID], nil
}

func (f *fakeSource) Discussions(_ context.Context, _ int, iid int) (json.RawMessage, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, iid)
	f.mu.Unlock()
	if err := f.failing[iid]; err != nil {
		return nil, err
	}
	if d, ok := f.discussions[iid]; ok {
		return json.RawMessage(d), nil
	}
	return json.RawMessage(`[]`), nil
}

func (f *fakeSource) AwardEmoji(context.Context, int, int) (json.RawMessage, error) {
	return json.RawMessage(`[]`), nil
}

type sentNotification struct{ name, body string }

type fakeNotifier struct {
	sent     []sentNotification
	err      error
	onNotify func()
}

func (f *fakeNotifier) Notify(_ context.Context, name, body string) error {
	if f.onNotify != nil {
		f.onNotify()
	}
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentNotification{name, body})
	return nil
}

type memStore struct {
	stored seen.Set
	saved  seen.Set
}

func (m *memStore) Load() (seen.Set, error) {
	if m.stored == nil {
		return seen.NewSet(), nil
	}
	return m.stored, nil
}

func (m *memStore) Save(ids seen.Set) error {
	m.saved = ids
	return nil
}

type recordingReporter struct {
	banners       int
	clears        int
	mergeRequests []int
	threads       []string
	onBanner      func(n int)
}

func (r *recordingReporter) Clear() { r.clears++ }

func (r *recordingReporter) Banner(time.Time) {
	r.banners++
	if r.onBanner != nil {
		r.onBanner(r.banners)
	}
}

func (r *recordingReporter) MergeRequest(mr *mergerequest.MergeRequest) {
	r.mergeRequests = append(r.mergeRequests, mr.IID)
}

func (r *recordingReporter) Thread(_ *mergerequest.MergeRequest, thread mergerequest.Thread, needsReply bool) {
	r.threads = append(r.threads, fmt.Sprintf("%s:%t", thread.ID, needsReply))
}

// twoMergeRequests has bob mentioned on !1 and bob answered last on !2.
func twoMergeRequests() *fakeSource {
	return &fakeSource{
		listings: map[int][]json.RawMessage{
			10: {metadataJSON(10, 2, "carol"), metadataJSON(10, 1, "carol")},
		},
		discussions: map[int]string{
			1: "[" + openThread("a", [3]string{"101", "alice", "@bob can you check?"}) + "]",
			2: "[" + openThread("b",
				[3]string{"201", "alice", "why?"},
				[3]string{"202", "bob", "because"},
			) + "]",
		},
	}
}

func newTestService(source DataSource, notifier *fakeNotifier, store SeenStore, config Config) *Service {
	config.Notify = true
	return NewService(source, notifier, store, batch.NewPool(4), config)
}

func TestRunOnce(t *testing.T) {
	notifier := &fakeNotifier{}
	store := &memStore{}
	rep := &recordingReporter{}
	svc := newTestService(twoMergeRequests(), notifier, store, Config{User: "bob", ProjectIDs: []int{10}})

	result, err := svc.RunOnce(context.Background(), rep)
	require.NoError(t, err)

	require.Len(t, result.MergeRequests, 2)
	assert.Equal(t, 1, result.MergeRequests[0].IID)
	assert.Equal(t, 2, result.MergeRequests[1].IID)
	assert.Equal(t, 1, result.Displayed)
	assert.Equal(t, 1, result.Notified)

	assert.Equal(t, 1, rep.banners)
	assert.Equal(t, []int{1}, rep.mergeRequests)
	assert.Equal(t, []string{"a:true"}, rep.threads)
	assert.Equal(t, []sentNotification{{"alice", "@bob can you check?"}}, notifier.sent)
	assert.Equal(t, []string{"101", "202"}, store.saved.Sorted())
}

func TestRunOnceSkipsSeenNotifications(t *testing.T) {
	notifier := &fakeNotifier{}
	store := &memStore{stored: seen.NewSet("101")}
	svc := newTestService(twoMergeRequests(), notifier, store, Config{User: "bob", ProjectIDs: []int{10}})

	result, err := svc.RunOnce(context.Background(), &recordingReporter{})
	require.NoError(t, err)
	assert.Zero(t, result.Notified)
	assert.Empty(t, notifier.sent)
}

func TestRunOnceShowAllAndHideReplied(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		wantMRs     []int
		wantThreads []string
	}{
		{
			name:        "default",
			config:      Config{},
			wantMRs:     []int{1},
			wantThreads: []string{"a:true"},
		},
		{
			name:        "show all",
			config:      Config{ShowAllDiscussions: true},
			wantMRs:     []int{1, 2},
			wantThreads: []string{"a:true", "b:false"},
		},
		{
			name:        "show all but hide replied",
			config:      Config{ShowAllDiscussions: true, HideRepliedDiscussions: true},
			wantMRs:     []int{1, 2},
			wantThreads: []string{"a:true"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.config.User = "bob"
			tt.config.ProjectIDs = []int{10}
			rep := &recordingReporter{}
			svc := newTestService(twoMergeRequests(), &fakeNotifier{}, &memStore{}, tt.config)

			_, err := svc.RunOnce(context.Background(), rep)
			require.NoError(t, err)
			assert.Equal(t, tt.wantMRs, rep.mergeRequests)
			assert.Equal(t, tt.wantThreads, rep.threads)
		})
	}
}

func TestRunOnceDropsBrokenMergeRequests(t *testing.T) {
	source := twoMergeRequests()
	source.listings[10] = append(source.listings[10],
		metadataJSON(10, 3, "carol"),
		metadataJSON(10, 4, "carol"),
		json.RawMessage(`{"iid": "five"}`),
	)
	source.failing = map[int]error{3: errors.New("connection reset")}
	source.discussions[4] = `{"message": "404 Not Found"}`

	svc := newTestService(source, &fakeNotifier{}, &memStore{}, Config{User: "bob", ProjectIDs: []int{10}})
	result, err := svc.RunOnce(context.Background(), &recordingReporter{})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Dropped)
	require.Len(t, result.MergeRequests, 2)
}

func TestRunOnceFailsWhenListingFails(t *testing.T) {
	source := &fakeSource{listErr: errors.New("401 Unauthorized")}
	store := &memStore{}
	svc := newTestService(source, &fakeNotifier{}, store, Config{User: "bob", ProjectIDs: []int{10}})

	_, err := svc.RunOnce(context.Background(), &recordingReporter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401 Unauthorized")
	assert.Nil(t, store.saved)
}

func TestRunOnceSkipsIgnoredMergeRequests(t *testing.T) {
	source := twoMergeRequests()
	svc := newTestService(source, &fakeNotifier{}, &memStore{}, Config{
		User:       "bob",
		ProjectIDs: []int{10},
		IgnoredMRs: []string{"1"},
	})

	result, err := svc.RunOnce(context.Background(), &recordingReporter{})
	require.NoError(t, err)
	require.Len(t, result.MergeRequests, 1)
	assert.Equal(t, 2, result.MergeRequests[0].IID)
	assert.Equal(t, []int{2}, source.fetched)
}

func TestRunOnceKeepsGoingWhenNotificationFails(t *testing.T) {
	notifier := &fakeNotifier{err: errors.New("notify-send not found")}
	store := &memStore{}
	rep := &recordingReporter{}
	svc := newTestService(twoMergeRequests(), notifier, store, Config{User: "bob", ProjectIDs: []int{10}})

	result, err := svc.RunOnce(context.Background(), rep)
	require.NoError(t, err)
	assert.Zero(t, result.Notified)
	assert.Equal(t, []string{"a:true"}, rep.threads)
	assert.NotNil(t, store.saved)
}

func TestNotifyDisabled(t *testing.T) {
	notifier := &fakeNotifier{}
	svc := NewService(twoMergeRequests(), notifier, &memStore{}, batch.NewPool(1), Config{
		User:       "bob",
		ProjectIDs: []int{10},
	})

	_, err := svc.RunOnce(context.Background(), &recordingReporter{})
	require.NoError(t, err)
	assert.Empty(t, notifier.sent)
}

func TestRunOnceDoesNotSaveWhenInterrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	source := twoMergeRequests()
	source.listings[10] = append(source.listings[10], metadataJSON(10, 3, "carol"))
	source.discussions[3] = "[" + openThread("c", [3]string{"301", "dave", "@bob ping"}) + "]"

	notifier := &fakeNotifier{onNotify: cancel}
	store := &memStore{stored: seen.NewSet("42")}
	svc := newTestService(source, notifier, store, Config{User: "bob", ProjectIDs: []int{10}})

	_, err := svc.RunOnce(ctx, &recordingReporter{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, notifier.sent, 1)
	assert.Nil(t, store.saved)
}

func TestRunWaitsIntervalAfterEachCycle(t *testing.T) {
	const interval = 30 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var stamps []time.Time
	rep := &recordingReporter{onBanner: func(n int) {
		stamps = append(stamps, time.Now())
		switch n {
		case 1:
			// a slow first cycle must not shorten the pause before the next one
			time.Sleep(interval)
		case 2:
			cancel()
		}
	}}
	svc := newTestService(twoMergeRequests(), &fakeNotifier{}, &memStore{}, Config{
		User:            "bob",
		ProjectIDs:      []int{10},
		RefreshInterval: interval,
	})

	err := svc.Run(ctx, rep)
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, stamps, 2)
	assert.GreaterOrEqual(t, stamps[1].Sub(stamps[0]), 2*interval)
}

func TestRunRefreshesUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rep := &recordingReporter{onBanner: func(n int) {
		if n == 2 {
			cancel()
		}
	}}
	svc := newTestService(twoMergeRequests(), &fakeNotifier{}, &memStore{}, Config{
		User:            "bob",
		ProjectIDs:      []int{10},
		RefreshInterval: time.Millisecond,
	})

	err := svc.Run(ctx, rep)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, rep.banners)
	assert.Equal(t, 2, rep.clears)
}

func TestRunWithoutRefreshRunsOnce(t *testing.T) {
	rep := &recordingReporter{}
	svc := newTestService(twoMergeRequests(), &fakeNotifier{}, &memStore{}, Config{User: "bob", ProjectIDs: []int{10}})

	require.NoError(t, svc.Run(context.Background(), rep))
	assert.Equal(t, 1, rep.banners)
	assert.Zero(t, rep.clears)
}
