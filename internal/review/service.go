// Package review runs the polling cycle: fetch every open merge request,
// classify its threads, print the report, notify and remember what was seen.
package review

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/reviewcheck/internal/batch"
	"github.com/reviewcheck/internal/mergerequest"
	"github.com/reviewcheck/internal/notify"
	"github.com/reviewcheck/internal/seen"
)

// DataSource returns raw GitLab payloads.
type DataSource interface {
	ListOpenMergeRequests(ctx context.Context, projectID int) ([]json.RawMessage, error)
	Discussions(ctx context.Context, projectID, iid int) (json.RawMessage, error)
	AwardEmoji(ctx context.Context, projectID, iid int) (json.RawMessage, error)
}

// SeenStore persists the ids of the last note of every relevant thread.
type SeenStore interface {
	Load() (seen.Set, error)
	Save(seen.Set) error
}

// Reporter prints the report components.
type Reporter interface {
	Clear()
	Banner(now time.Time)
	MergeRequest(mr *mergerequest.MergeRequest)
	Thread(mr *mergerequest.MergeRequest, thread mergerequest.Thread, needsReply bool)
}

// Service represents the review orchestration service
type Service struct {
	source   DataSource
	notifier notify.Notifier
	store    SeenStore
	pool     *batch.Pool
	config   Config
	now      func() time.Time
}

// NewService creates a new review service
func NewService(source DataSource, notifier notify.Notifier, store SeenStore, pool *batch.Pool, config Config) *Service {
	if notifier == nil || !config.Notify {
		notifier = notify.Noop{}
	}
	return &Service{
		source:   source,
		notifier: notifier,
		store:    store,
		pool:     pool,
		config:   config,
		now:      time.Now,
	}
}

// CycleResult summarizes one polling cycle.
type CycleResult struct {
	MergeRequests []*mergerequest.MergeRequest
	Dropped       int
	Displayed     int
	Notified      int
}

type mergeRequestKey struct {
	ProjectID int
	IID       int
}

type listed struct {
	key      mergeRequestKey
	metadata json.RawMessage
}

type payload struct {
	discussions json.RawMessage
	awardEmoji  json.RawMessage
}

// Collect lists the open merge requests of every project, fetches their
// discussions and award emoji concurrently and builds the aggregates in
// (project, iid) order. A merge request whose data can't be fetched or
// parsed is dropped with a warning; a failing project listing fails the
// whole cycle.
func (s *Service) Collect(ctx context.Context) ([]*mergerequest.MergeRequest, int, error) {
	var (
		pending []listed
		dropped int
		known   = make(map[mergeRequestKey]bool)
	)
	for _, projectID := range s.config.ProjectIDs {
		items, err := s.source.ListOpenMergeRequests(ctx, projectID)
		if err != nil {
			return nil, 0, err
		}
		for _, raw := range items {
			meta, err := mergerequest.ParseMetadata(raw)
			if err != nil {
				log.Warn().Err(err).Int("project_id", projectID).Msg("dropping merge request")
				dropped++
				continue
			}
			if s.config.ignored(meta.IID) {
				log.Debug().Int("project_id", projectID).Int("iid", meta.IID).Msg("ignoring merge request")
				continue
			}
			key := mergeRequestKey{ProjectID: meta.ProjectID, IID: meta.IID}
			if known[key] {
				continue
			}
			known[key] = true
			pending = append(pending, listed{key: key, metadata: raw})
		}
	}

	keys := make([]mergeRequestKey, len(pending))
	for i, p := range pending {
		keys[i] = p.key
	}
	start := time.Now()
	results := batch.Run(ctx, s.pool, keys, s.fetch)
	log.Info().
		Int("merge_requests", len(keys)).
		Int("workers", s.pool.MaxWorkers()).
		Dur("elapsed", time.Since(start)).
		Msg("downloaded merge request data")

	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	mrs := make([]*mergerequest.MergeRequest, 0, len(pending))
	for _, p := range pending {
		res := results[p.key]
		if res.Err != nil {
			log.Warn().Err(res.Err).Int("project_id", p.key.ProjectID).Int("iid", p.key.IID).Msg("dropping merge request")
			dropped++
			continue
		}
		mr, err := mergerequest.NewFromRaw(res.Value.discussions, res.Value.awardEmoji, p.metadata, s.config.User)
		if err != nil {
			log.Warn().Err(err).Int("project_id", p.key.ProjectID).Int("iid", p.key.IID).Msg("dropping merge request")
			dropped++
			continue
		}
		mrs = append(mrs, mr)
	}

	slices.SortFunc(mrs, func(a, b *mergerequest.MergeRequest) int {
		return cmp.Or(cmp.Compare(a.ProjectID, b.ProjectID), cmp.Compare(a.IID, b.IID))
	})
	return mrs, dropped, nil
}

func (s *Service) fetch(ctx context.Context, key mergeRequestKey) (payload, error) {
	discussions, err := s.source.Discussions(ctx, key.ProjectID, key.IID)
	if err != nil {
		return payload{}, err
	}
	awardEmoji, err := s.source.AwardEmoji(ctx, key.ProjectID, key.IID)
	if err != nil {
		return payload{}, err
	}
	return payload{discussions: discussions, awardEmoji: awardEmoji}, nil
}

// RunOnce performs a single polling cycle and prints it through rep.
func (s *Service) RunOnce(ctx context.Context, rep Reporter) (*CycleResult, error) {
	mrs, dropped, err := s.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to collect merge requests: %w", err)
	}

	previous, err := s.store.Load()
	if err != nil {
		log.Warn().Err(err).Msg("could not read seen notes, every pending thread will notify")
		previous = seen.NewSet()
	}

	result := &CycleResult{MergeRequests: mrs, Dropped: dropped}
	current := seen.NewSet()

	rep.Banner(s.now())
	for _, mr := range mrs {
		current.Union(lastMessageIDs(mr))
		if !s.visible(mr) {
			continue
		}
		rep.MergeRequest(mr)
		result.Displayed++

		for _, thread := range mr.Threads {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			needsReply := thread.NeedsReply(s.config.User)
			if s.config.HideRepliedDiscussions && !needsReply {
				continue
			}
			if needsReply && !previous.Has(string(thread.Last().ID)) {
				last := thread.Last()
				if err := s.notifier.Notify(ctx, last.Author.Name, last.Body); err != nil {
					log.Warn().Err(err).Int("iid", mr.IID).Msg("failed to send notification")
				} else {
					result.Notified++
				}
			}
			rep.Thread(mr, thread, needsReply)
		}
	}

	// An interrupted cycle keeps the previous seen set.
	if err := ctx.Err(); err != nil {
		return result, err
	}
	if err := s.store.Save(current); err != nil {
		return result, fmt.Errorf("failed to save seen notes: %w", err)
	}
	return result, nil
}

func lastMessageIDs(mr *mergerequest.MergeRequest) seen.Set {
	ids := seen.NewSet()
	for _, id := range mr.AllLastMessageIDs {
		ids.Add(string(id))
	}
	return ids
}

func (s *Service) visible(mr *mergerequest.MergeRequest) bool {
	if len(mr.Threads) == 0 {
		return false
	}
	return mr.NumberOfOpenThreadsNeedingUserReply > 0 || s.config.ShowAllDiscussions
}

// Run repeats RunOnce until ctx is done, waiting RefreshInterval after each
// cycle finishes. Without a refresh interval it runs a single cycle.
func (s *Service) Run(ctx context.Context, rep Reporter) error {
	if s.config.RefreshInterval <= 0 {
		_, err := s.RunOnce(ctx, rep)
		return err
	}

	for {
		rep.Clear()
		if _, err := s.RunOnce(ctx, rep); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		timer := time.NewTimer(s.config.RefreshInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
