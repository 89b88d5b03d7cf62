package story

import (
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/orgball2608/storycam/internal/domain"
	"github.com/orgball2608/storycam/pkg/errors"
	"github.com/orgball2608/storycam/pkg/logger"
)

// Default playback lengths in seconds when no trim is given.
const (
	DefaultImageDuration = 5.0
	DefaultVideoDuration = 15.0
)

// EvictFunc is told about items that left the store, whether removed by their
// owner or swept after expiry.
type EvictFunc func(ownerID string, items []domain.StoryItem)

type Opts struct {
	Clock  clockwork.Clock
	Logger logger.Logger
	NewID  func() string
}

// Store holds every owner's story collection. A collection exists only while
// it has at least one item.
type Store struct {
	clock  clockwork.Clock
	logger logger.Logger
	newID  func() string

	mu          sync.RWMutex
	collections map[string]*domain.UserStoryCollection
	onEvict     []EvictFunc
}

func New(opts Opts) *Store {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}
	newID := opts.NewID
	if newID == nil {
		newID = func() string { return uuid.NewString() }
	}
	return &Store{
		clock:       clock,
		logger:      log,
		newID:       newID,
		collections: make(map[string]*domain.UserStoryCollection),
	}
}

// OnEvict registers fn for every removal and sweep.
func (s *Store) OnEvict(fn EvictFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEvict = append(s.onEvict, fn)
}

// Append adds an item to the owner's collection, creating it on first use.
// Expiry is fixed here from the tier and never recomputed.
func (s *Store) Append(owner domain.Owner, media domain.MediaRef, tier domain.RetentionTier, trim *domain.TrimSegment) (domain.StoryItem, error) {
	if owner.ID == "" {
		return domain.StoryItem{}, errors.Wrap(errors.ErrInvalidInput, "owner id is required")
	}
	if !tier.Valid() {
		return domain.StoryItem{}, errors.Wrap(errors.ErrInvalidInput, fmt.Sprintf("unsupported retention tier %dh", tier))
	}
	if media.Kind != domain.MediaImage && media.Kind != domain.MediaVideo {
		return domain.StoryItem{}, errors.Wrap(errors.ErrInvalidInput, fmt.Sprintf("unsupported media kind %q", media.Kind))
	}
	if media.Location == "" {
		return domain.StoryItem{}, errors.Wrap(errors.ErrInvalidInput, "media location is required")
	}
	if trim != nil && !trim.Valid() {
		return domain.StoryItem{}, errors.Wrap(errors.ErrInvalidInput, "trim end must be after start")
	}

	now := s.clock.Now()
	item := domain.StoryItem{
		ID:              s.newID(),
		OwnerID:         owner.ID,
		MediaKind:       media.Kind,
		MediaLocation:   media.Location,
		DurationSeconds: playbackDuration(media.Kind, trim),
		CreatedAt:       now,
		ExpiresAt:       now.Add(tier.Duration()),
		ViewedBy:        map[string]struct{}{},
	}
	if trim != nil {
		t := *trim
		item.Trim = &t
	}

	s.mu.Lock()
	c, ok := s.collections[owner.ID]
	if !ok {
		c = &domain.UserStoryCollection{Owner: owner}
		s.collections[owner.ID] = c
	} else {
		if owner.DisplayName != "" {
			c.DisplayName = owner.DisplayName
		}
		if owner.AvatarRef != "" {
			c.AvatarRef = owner.AvatarRef
		}
	}
	c.Items = append(c.Items, item)
	s.mu.Unlock()

	s.logger.Info("Story item appended", "owner", owner.ID, "item", item.ID, "kind", item.MediaKind, "expires_at", item.ExpiresAt)
	return item.Clone(), nil
}

// Remove deletes one item. The owner's entry goes away with its last item.
func (s *Store) Remove(ownerID, itemID string) bool {
	s.mu.Lock()
	c, ok := s.collections[ownerID]
	if !ok {
		s.mu.Unlock()
		return false
	}
	idx := slices.IndexFunc(c.Items, func(i domain.StoryItem) bool { return i.ID == itemID })
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	removed := c.Items[idx]
	c.Items = slices.Delete(c.Items, idx, idx+1)
	if len(c.Items) == 0 {
		delete(s.collections, ownerID)
	}
	listeners := s.onEvict
	s.mu.Unlock()

	s.logger.Info("Story item removed", "owner", ownerID, "item", itemID)
	notify(listeners, ownerID, []domain.StoryItem{removed})
	return true
}

// MarkViewed records that viewerID saw the item. Unknown or already swept
// items are ignored.
func (s *Store) MarkViewed(ownerID, itemID, viewerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[ownerID]
	if !ok {
		return false
	}
	for i := range c.Items {
		if c.Items[i].ID != itemID {
			continue
		}
		if _, seen := c.Items[i].ViewedBy[viewerID]; seen {
			return false
		}
		if c.Items[i].ViewedBy == nil {
			c.Items[i].ViewedBy = map[string]struct{}{}
		}
		c.Items[i].ViewedBy[viewerID] = struct{}{}
		return true
	}
	return false
}

// HasActive reports whether the owner has an item that has not expired yet,
// whether or not the sweep has run.
func (s *Store) HasActive(ownerID string) bool {
	now := s.clock.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[ownerID]
	if !ok {
		return false
	}
	for _, item := range c.Items {
		if !item.Expired(now) {
			return true
		}
	}
	return false
}

// Collection returns a copy of the owner's collection.
func (s *Store) Collection(ownerID string) (domain.UserStoryCollection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[ownerID]
	if !ok {
		return domain.UserStoryCollection{}, false
	}
	return c.Clone(), true
}

// Collections returns copies of all collections, newest activity first.
func (s *Store) Collections() []domain.UserStoryCollection {
	s.mu.RLock()
	out := make([]domain.UserStoryCollection, 0, len(s.collections))
	for _, c := range s.collections {
		out = append(out, c.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		li, lj := out[i].Latest(), out[j].Latest()
		if li.Equal(lj) {
			return out[i].ID < out[j].ID
		}
		return li.After(lj)
	})
	return out
}

// FirstUnviewed is the index playback should start from for viewerID: the
// first item they have not seen, or 0 when they have seen everything.
func (s *Store) FirstUnviewed(ownerID, viewerID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[ownerID]
	if !ok {
		return 0
	}
	for i, item := range c.Items {
		if !item.ViewedByViewer(viewerID) {
			return i
		}
	}
	return 0
}

// Sweep drops expired items and returns how many were evicted. It only ever
// filters; expiry times are left untouched.
func (s *Store) Sweep() int {
	now := s.clock.Now()
	evicted := map[string][]domain.StoryItem{}

	s.mu.Lock()
	for ownerID, c := range s.collections {
		kept := make([]domain.StoryItem, 0, len(c.Items))
		for _, item := range c.Items {
			if item.Expired(now) {
				evicted[ownerID] = append(evicted[ownerID], item)
				continue
			}
			kept = append(kept, item)
		}
		if len(kept) == len(c.Items) {
			continue
		}
		if len(kept) == 0 {
			delete(s.collections, ownerID)
			continue
		}
		s.collections[ownerID] = &domain.UserStoryCollection{Owner: c.Owner, Items: kept}
	}
	listeners := s.onEvict
	s.mu.Unlock()

	total := 0
	for ownerID, items := range evicted {
		total += len(items)
		notify(listeners, ownerID, items)
	}
	if total > 0 {
		s.logger.Info("Expired story items swept", "evicted", total, "owners", len(evicted))
	}
	return total
}

func (s *Store) Now() time.Time {
	return s.clock.Now()
}

func playbackDuration(kind domain.MediaKind, trim *domain.TrimSegment) float64 {
	if trim != nil {
		return trim.Duration()
	}
	if kind == domain.MediaVideo {
		return DefaultVideoDuration
	}
	return DefaultImageDuration
}

func notify(listeners []EvictFunc, ownerID string, items []domain.StoryItem) {
	for _, fn := range listeners {
		fn(ownerID, items)
	}
}
