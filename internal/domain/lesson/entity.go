// Package lesson содержит доменную модель урока и каталога уроков.
package lesson

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/domain/shared"
)

// DefaultXPReward - награда за урок, у которого поле xpReward отсутствует
// или не положительное. Такие записи считаются повреждёнными данными.
const DefaultXPReward = 10

// Lesson - короткий урок: стих и размышление.
type Lesson struct {
	ID        string
	Title     string
	Content   string
	Verse     string
	Order     int
	XPReward  int
	CreatedAt time.Time
}

// Reward возвращает фактическую награду с учётом значения по умолчанию.
func (l *Lesson) Reward() int {
	if l.XPReward <= 0 {
		return DefaultXPReward
	}
	return l.XPReward
}

// RewardDefaulted сообщает, что награда подставлена по умолчанию.
func (l *Lesson) RewardDefaulted() bool {
	return l.XPReward <= 0
}

// Validate проверяет обязательные поля перед сохранением.
func (l *Lesson) Validate() error {
	var problems []string
	if strings.TrimSpace(l.ID) == "" {
		problems = append(problems, "id is required")
	}
	if strings.TrimSpace(l.Title) == "" {
		problems = append(problems, "title is required")
	}
	if l.XPReward < 0 {
		problems = append(problems, "xp reward cannot be negative")
	}
	if len(problems) > 0 {
		return shared.ErrInvalidLesson.Wrap(shared.WrapError("lesson", "Validate", shared.ErrValidation, strings.Join(problems, "; "), nil))
	}
	return nil
}

// Catalog - упорядоченный каталог уроков.
type Catalog interface {
	// List возвращает уроки по возрастанию Order.
	List(ctx context.Context) ([]*Lesson, error)

	// Get возвращает урок или shared.ErrLessonNotFound.
	Get(ctx context.Context, id string) (*Lesson, error)

	// Save создаёт или перезаписывает урок.
	Save(ctx context.Context, l *Lesson) error
}

// SortByOrder сортирует уроки по Order, при равенстве - по ID.
func SortByOrder(lessons []*Lesson) {
	sort.SliceStable(lessons, func(i, j int) bool {
		if lessons[i].Order != lessons[j].Order {
			return lessons[i].Order < lessons[j].Order
		}
		return lessons[i].ID < lessons[j].ID
	})
}

// NextLesson возвращает первый по порядку незавершённый урок или nil.
// lessons должны быть уже отсортированы.
func NextLesson(lessons []*Lesson, completed map[string]bool) *Lesson {
	for _, l := range lessons {
		if !completed[l.ID] {
			return l
		}
	}
	return nil
}

// IsUnlocked сообщает, завершены ли все уроки с меньшим Order.
func IsUnlocked(lessons []*Lesson, target *Lesson, completed map[string]bool) bool {
	for _, l := range lessons {
		if l.Order < target.Order && !completed[l.ID] {
			return false
		}
	}
	return true
}
