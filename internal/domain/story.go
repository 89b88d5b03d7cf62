package domain

import "time"

// RetentionTier is the number of hours a story item stays visible.
type RetentionTier int

const (
	Retention24h RetentionTier = 24
	Retention48h RetentionTier = 48
)

func (t RetentionTier) Valid() bool {
	return t == Retention24h || t == Retention48h
}

func (t RetentionTier) Duration() time.Duration {
	return time.Duration(t) * time.Hour
}

// TrimSegment selects part of a video in seconds.
type TrimSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func (s TrimSegment) Duration() float64 {
	return s.End - s.Start
}

func (s TrimSegment) Valid() bool {
	return s.Start >= 0 && s.End > s.Start
}

// MediaRef points at stored media; it never carries the bytes.
type MediaRef struct {
	Kind     MediaKind `json:"kind"`
	Location string    `json:"location"`
}

type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarRef   string `json:"avatar"`
}

type StoryItem struct {
	ID              string              `json:"id"`
	OwnerID         string              `json:"owner_id"`
	MediaKind       MediaKind           `json:"media_kind"`
	MediaLocation   string              `json:"media_location"`
	DurationSeconds float64             `json:"duration_seconds"`
	Trim            *TrimSegment        `json:"trim,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	ExpiresAt       time.Time           `json:"expires_at"`
	ViewedBy        map[string]struct{} `json:"-"`
}

// Expired reports whether the item is no longer visible at now.
func (i StoryItem) Expired(now time.Time) bool {
	return !i.ExpiresAt.After(now)
}

func (i StoryItem) ViewedByViewer(viewerID string) bool {
	_, ok := i.ViewedBy[viewerID]
	return ok
}

// Clone copies the item including its viewer set.
func (i StoryItem) Clone() StoryItem {
	c := i
	if i.Trim != nil {
		t := *i.Trim
		c.Trim = &t
	}
	c.ViewedBy = make(map[string]struct{}, len(i.ViewedBy))
	for v := range i.ViewedBy {
		c.ViewedBy[v] = struct{}{}
	}
	return c
}

type UserStoryCollection struct {
	Owner
	Items []StoryItem `json:"items"`
}

// Clone deep-copies the collection.
func (c UserStoryCollection) Clone() UserStoryCollection {
	out := UserStoryCollection{Owner: c.Owner, Items: make([]StoryItem, len(c.Items))}
	for i, item := range c.Items {
		out.Items[i] = item.Clone()
	}
	return out
}

// Latest returns the creation time of the newest item.
func (c UserStoryCollection) Latest() time.Time {
	if len(c.Items) == 0 {
		return time.Time{}
	}
	return c.Items[len(c.Items)-1].CreatedAt
}

type ViewerSession struct {
	IsOpen         bool   `json:"is_open"`
	FocusedOwnerID string `json:"focused_owner_id,omitempty"`
	StartIndex     int    `json:"start_index"`
}
