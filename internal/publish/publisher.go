package publish

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/orgball2608/storycam/internal/domain"
	"github.com/orgball2608/storycam/internal/media"
	"github.com/orgball2608/storycam/internal/ratelimit"
	"github.com/orgball2608/storycam/internal/story"
	"github.com/orgball2608/storycam/pkg/config"
	"github.com/orgball2608/storycam/pkg/errors"
	"github.com/orgball2608/storycam/pkg/formatter"
	"github.com/orgball2608/storycam/pkg/logger"
	"github.com/orgball2608/storycam/pkg/retry"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/fx"
)

const (
	deleteTimeout    = 30 * time.Second
	DefaultMaxDrafts = 10
)

type Request struct {
	Owner domain.Owner
	File  domain.MediaFile
	Tier  domain.RetentionTier
	Trim  *domain.TrimSegment
}

// Draft is a finished capture waiting for its owner to publish or discard it.
type Draft struct {
	ID   string
	File domain.MediaFile
}

type Opts struct {
	fx.In

	Stories *story.Store
	Media   media.Store
	Logger  logger.Logger
	Config  *config.Config
	Limiter ratelimit.Limiter `optional:"true"`
	Retry   *retry.Config     `optional:"true"`
}

// Publisher uploads finished captures and appends them to the story store.
// When items leave the store their uploaded media is deleted on a worker pool.
type Publisher struct {
	Stories *story.Store
	Media   media.Store
	Logger  logger.Logger
	Limiter ratelimit.Limiter

	owner       domain.Owner
	defaultTier domain.RetentionTier
	maxDrafts   int

	retry retry.Config
	pool  *ants.Pool
	wg    sync.WaitGroup

	mu         sync.Mutex
	drafts     []Draft
	publishing map[string]bool
}

func New(opts Opts) (*Publisher, error) {
	workers := opts.Config.Story.CleanupWorkers
	if workers <= 0 {
		workers = 4
	}
	pool, err := ants.NewPool(workers, ants.WithPreAlloc(true))
	if err != nil {
		return nil, fmt.Errorf("failed to create cleanup pool: %w", err)
	}

	retryCfg := retry.DefaultConfig()
	if opts.Retry != nil {
		retryCfg = *opts.Retry
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}

	tier := domain.RetentionTier(opts.Config.Story.DefaultTier)
	if !tier.Valid() {
		log.Warn("Unsupported default retention tier, using 24h", "tier", opts.Config.Story.DefaultTier)
		tier = domain.Retention24h
	}
	maxDrafts := opts.Config.Story.MaxDrafts
	if maxDrafts <= 0 {
		maxDrafts = DefaultMaxDrafts
	}

	p := &Publisher{
		Stories:     opts.Stories,
		Media:       opts.Media,
		Logger:      log,
		Limiter:     opts.Limiter,
		owner:       domain.Owner{ID: opts.Config.App.OwnerID, DisplayName: opts.Config.App.OwnerName},
		defaultTier: tier,
		maxDrafts:   maxDrafts,
		retry:       retryCfg,
		pool:        pool,
		publishing:  make(map[string]bool),
	}
	opts.Stories.OnEvict(p.releaseMedia)
	return p, nil
}

// Publish uploads the file and appends it as a story item.
func (p *Publisher) Publish(ctx context.Context, req Request) (domain.StoryItem, error) {
	if !req.Tier.Valid() {
		return domain.StoryItem{}, errors.Wrap(errors.ErrInvalidInput, fmt.Sprintf("unsupported retention tier %dh", req.Tier))
	}
	if req.File.Size() == 0 {
		return domain.StoryItem{}, errors.ErrEmptyCapture
	}
	if req.Trim != nil && req.File.Kind != domain.MediaVideo {
		return domain.StoryItem{}, errors.Wrap(errors.ErrInvalidInput, "only videos can be trimmed")
	}
	if p.Limiter != nil && !p.Limiter.Allow(req.Owner.ID) {
		return domain.StoryItem{}, errors.Wrap(errors.ErrRateLimited, "too many stories published, try again later")
	}

	var location string
	err := retry.Do(ctx, p.Logger, "upload story media", func() error {
		loc, err := p.Media.Put(ctx, req.File)
		if err != nil {
			return err
		}
		location = loc
		return nil
	}, p.retry)
	if err != nil {
		return domain.StoryItem{}, fmt.Errorf("failed to upload story media: %w", err)
	}

	item, err := p.Stories.Append(req.Owner, domain.MediaRef{Kind: req.File.Kind, Location: location}, req.Tier, req.Trim)
	if err != nil {
		p.deleteMedia(location)
		return domain.StoryItem{}, err
	}

	p.Logger.Info("Story published", "owner", req.Owner.ID, "item", item.ID, "tier_hours", int(req.Tier), "size", formatter.FormatBytes(req.File.Size()))
	return item, nil
}

// Keep holds a finished capture as a draft until its owner publishes it.
// Register it with the capture controller's OnCaptureComplete.
func (p *Publisher) Keep(file domain.MediaFile, kind domain.MediaKind) {
	d := Draft{ID: uuid.NewString(), File: file}

	p.mu.Lock()
	p.drafts = append(p.drafts, d)
	n := len(p.drafts)
	p.mu.Unlock()

	p.Logger.Info("Capture kept as draft", "draft", d.ID, "kind", kind, "size", formatter.FormatBytes(file.Size()), "drafts", n)
}

// Admit refuses a new capture while the draft queue is full, so the shutter
// is turned away before anything is recorded.
func (p *Publisher) Admit() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.drafts) >= p.maxDrafts {
		return errors.Wrap(errors.ErrConflict, fmt.Sprintf("%d unpublished captures, publish or discard one first", len(p.drafts)))
	}
	return nil
}

// Drafts lists pending captures, oldest first.
func (p *Publisher) Drafts() []Draft {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Draft(nil), p.drafts...)
}

// PublishDraft publishes a kept capture for the local owner. A zero tier
// means the configured default. The draft survives any failure, including
// rate limiting, so the owner can try again.
func (p *Publisher) PublishDraft(ctx context.Context, id string, tier domain.RetentionTier, trim *domain.TrimSegment) (domain.StoryItem, error) {
	p.mu.Lock()
	i := p.indexOf(id)
	if i < 0 {
		p.mu.Unlock()
		return domain.StoryItem{}, errors.Wrap(errors.ErrNotFound, fmt.Sprintf("draft %s", id))
	}
	if p.publishing[id] {
		p.mu.Unlock()
		return domain.StoryItem{}, errors.Wrap(errors.ErrConflict, fmt.Sprintf("draft %s is already being published", id))
	}
	p.publishing[id] = true
	file := p.drafts[i].File
	p.mu.Unlock()

	if tier == 0 {
		tier = p.defaultTier
	}
	item, err := p.Publish(ctx, Request{Owner: p.owner, File: file, Tier: tier, Trim: trim})

	p.mu.Lock()
	delete(p.publishing, id)
	if err == nil {
		if i := p.indexOf(id); i >= 0 {
			p.drafts = append(p.drafts[:i], p.drafts[i+1:]...)
		}
	}
	p.mu.Unlock()

	if err != nil {
		p.Logger.Warn("Draft not published", "draft", id, "error", err)
		return domain.StoryItem{}, err
	}
	return item, nil
}

// DiscardDraft drops a kept capture. It reports false for unknown drafts and
// for one that is being published.
func (p *Publisher) DiscardDraft(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.indexOf(id)
	if i < 0 || p.publishing[id] {
		return false
	}
	p.drafts = append(p.drafts[:i], p.drafts[i+1:]...)
	return true
}

func (p *Publisher) indexOf(id string) int {
	for i, d := range p.drafts {
		if d.ID == id {
			return i
		}
	}
	return -1
}

// Wait blocks until every queued media deletion has finished.
func (p *Publisher) Wait() {
	p.wg.Wait()
}

func (p *Publisher) Close() {
	p.wg.Wait()
	p.pool.Release()
}

func (p *Publisher) releaseMedia(ownerID string, items []domain.StoryItem) {
	for _, item := range items {
		p.deleteMedia(item.MediaLocation)
	}
	p.Logger.Debug("Releasing evicted story media", "owner", ownerID, "count", len(items))
}

func (p *Publisher) deleteMedia(location string) {
	p.wg.Add(1)
	err := p.pool.Submit(func() {
		defer p.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), deleteTimeout)
		defer cancel()

		if err := p.Media.Delete(ctx, location); err != nil {
			p.Logger.Error("Failed to delete story media", "location", location, "error", err)
			return
		}
		p.Logger.Debug("Story media deleted", "location", location)
	})
	if err != nil {
		p.wg.Done()
		p.Logger.Error("Failed to submit media deletion to pool", "location", location, "error", err)
	}
}
