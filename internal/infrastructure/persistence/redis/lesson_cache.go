package redis

import (
	"context"
	"errors"
	"time"

	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/domain/lesson"
	"github.com/Ruben-Makrati/gamified-bible-study-app/pkg/logger"
)

// LessonCache is a read-through cache in front of a lesson.Catalog.
// Cache failures are logged and fall back to the wrapped catalog.
type LessonCache struct {
	inner  lesson.Catalog
	client *Client
	ttl    time.Duration
	log    *logger.Logger
}

var _ lesson.Catalog = (*LessonCache)(nil)

// NewLessonCache wraps inner. A non-positive ttl uses TTLLessonCache.
func NewLessonCache(inner lesson.Catalog, client *Client, ttl time.Duration, log *logger.Logger) *LessonCache {
	if ttl <= 0 {
		ttl = TTLLessonCache
	}
	if log == nil {
		log = logger.Nop()
	}
	return &LessonCache{
		inner:  inner,
		client: client,
		ttl:    ttl,
		log:    log.With(logger.Component("lesson_cache")),
	}
}

// cachedLesson is the cache wire format.
type cachedLesson struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Verse     string    `json:"verse"`
	Order     int       `json:"order"`
	XPReward  int       `json:"xpReward"`
	CreatedAt time.Time `json:"createdAt"`
}

func toCached(l *lesson.Lesson) cachedLesson {
	return cachedLesson{
		ID: l.ID, Title: l.Title, Content: l.Content, Verse: l.Verse,
		Order: l.Order, XPReward: l.XPReward, CreatedAt: l.CreatedAt,
	}
}

func (c cachedLesson) lesson() *lesson.Lesson {
	return &lesson.Lesson{
		ID: c.ID, Title: c.Title, Content: c.Content, Verse: c.Verse,
		Order: c.Order, XPReward: c.XPReward, CreatedAt: c.CreatedAt,
	}
}

// List implements lesson.Catalog.
func (c *LessonCache) List(ctx context.Context) ([]*lesson.Lesson, error) {
	var cached []cachedLesson
	err := c.client.GetJSON(ctx, c.client.LessonListKey(), &cached)
	if err == nil {
		out := make([]*lesson.Lesson, len(cached))
		for i := range cached {
			out[i] = cached[i].lesson()
		}
		return out, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		c.log.Warn("lesson list cache read failed", logger.Err(err))
	}

	lessons, err := c.inner.List(ctx)
	if err != nil {
		return nil, err
	}
	// an empty catalog is not cached so the first seed shows up immediately
	if len(lessons) > 0 {
		entries := make([]cachedLesson, len(lessons))
		for i, l := range lessons {
			entries[i] = toCached(l)
		}
		if err := c.client.SetJSON(ctx, c.client.LessonListKey(), entries, c.ttl); err != nil {
			c.log.Warn("lesson list cache write failed", logger.Err(err))
		}
	}
	return lessons, nil
}

// Get implements lesson.Catalog.
func (c *LessonCache) Get(ctx context.Context, id string) (*lesson.Lesson, error) {
	var cached cachedLesson
	err := c.client.GetJSON(ctx, c.client.LessonKey(id), &cached)
	if err == nil {
		return cached.lesson(), nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		c.log.Warn("lesson cache read failed", logger.LessonID(id), logger.Err(err))
	}

	l, err := c.inner.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.client.SetJSON(ctx, c.client.LessonKey(id), toCached(l), c.ttl); err != nil {
		c.log.Warn("lesson cache write failed", logger.LessonID(id), logger.Err(err))
	}
	return l, nil
}

// Save implements lesson.Catalog and drops the cached catalog.
func (c *LessonCache) Save(ctx context.Context, l *lesson.Lesson) error {
	if err := c.inner.Save(ctx, l); err != nil {
		return err
	}
	if err := c.client.Delete(ctx, c.client.LessonListKey(), c.client.LessonKey(l.ID)); err != nil {
		c.log.Warn("lesson cache invalidation failed", logger.LessonID(l.ID), logger.Err(err))
	}
	return nil
}

// Invalidate drops every cached lesson entry.
func (c *LessonCache) Invalidate(ctx context.Context) error {
	if err := c.client.Delete(ctx, c.client.LessonListKey()); err != nil {
		return err
	}
	return c.client.DeleteByPattern(ctx, c.client.LessonKey("*"))
}
