package command

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/domain/lesson"
	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/domain/shared"
	"github.com/Ruben-Makrati/gamified-bible-study-app/pkg/logger"
	"github.com/Ruben-Makrati/gamified-bible-study-app/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// SEED LESSONS COMMAND
// Заполняет каталог стандартным набором уроков.
// ══════════════════════════════════════════════════════════════════════════════

// SeedLessonsCommand управляет заполнением каталога.
type SeedLessonsCommand struct {
	// Force перезаписывает стандартные уроки даже в непустом каталоге.
	// Уроки с тем же порядковым номером сохраняют свои id, поэтому отметки
	// о завершении остаются действительными.
	Force bool
}

// SeedLessonsResult описывает, что было записано.
type SeedLessonsResult struct {
	Seeded    int      `json:"seeded"`
	Skipped   bool     `json:"skipped"`
	LessonIDs []string `json:"lessonIds,omitempty"`
}

// CatalogInvalidator сбрасывает закешированный каталог.
type CatalogInvalidator interface {
	Invalidate(ctx context.Context) error
}

// SeedLessonsHandler обрабатывает команду SeedLessons.
type SeedLessonsHandler struct {
	catalog     lesson.Catalog
	invalidator CatalogInvalidator
	publisher   shared.EventPublisher
	clock       timeutil.Clock
	log         *logger.Logger
	lessons     []lesson.SeedLesson
}

// NewSeedLessonsHandler создаёт обработчик. invalidator и publisher могут
// быть nil.
func NewSeedLessonsHandler(
	catalog lesson.Catalog,
	invalidator CatalogInvalidator,
	publisher shared.EventPublisher,
	clock timeutil.Clock,
	log *logger.Logger,
) *SeedLessonsHandler {
	if log == nil {
		log = logger.Nop()
	}
	if clock == nil {
		clock = timeutil.NewSystemClock(time.UTC)
	}
	return &SeedLessonsHandler{
		catalog:     catalog,
		invalidator: invalidator,
		publisher:   publisher,
		clock:       clock,
		log:         log.With(logger.Component("seed_lessons")),
		lessons:     lesson.DefaultLessons(),
	}
}

// Handle заполняет каталог.
func (h *SeedLessonsHandler) Handle(ctx context.Context, cmd SeedLessonsCommand) (*SeedLessonsResult, error) {
	existing, err := h.catalog.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 && !cmd.Force {
		h.log.Info("catalog already seeded, skipping", logger.Int("lessons", len(existing)))
		return &SeedLessonsResult{Skipped: true}, nil
	}

	byOrder := make(map[int]string, len(existing))
	for _, l := range existing {
		if _, ok := byOrder[l.Order]; !ok {
			byOrder[l.Order] = l.ID
		}
	}

	now := h.clock.Now()
	result := &SeedLessonsResult{LessonIDs: make([]string, 0, len(h.lessons))}
	for _, s := range h.lessons {
		id, ok := byOrder[s.Order]
		if !ok {
			id = uuid.NewString()
		}
		l := &lesson.Lesson{
			ID:        id,
			Title:     s.Title,
			Content:   s.Content,
			Verse:     s.Verse,
			Order:     s.Order,
			XPReward:  s.XPReward,
			CreatedAt: now,
		}
		if err := h.catalog.Save(ctx, l); err != nil {
			h.log.Error("failed to save lesson",
				logger.LessonID(id), logger.Int("seeded", result.Seeded), logger.Err(err))
			return result, err
		}
		result.Seeded++
		result.LessonIDs = append(result.LessonIDs, id)
	}

	if h.invalidator != nil {
		if err := h.invalidator.Invalidate(ctx); err != nil {
			h.log.Warn("failed to invalidate catalog cache", logger.Err(err))
		}
	}

	h.log.Info("lessons seeded", logger.Int("count", result.Seeded), logger.Bool("force", cmd.Force))

	if h.publisher != nil {
		if err := h.publisher.Publish(shared.NewLessonsSeededEvent(result.Seeded, now)); err != nil {
			h.log.Error("failed to publish lessons seeded event", logger.Err(err))
		}
	}
	return result, nil
}
