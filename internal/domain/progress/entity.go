// Package progress содержит доменную модель прогресса пользователя:
// опыт (XP), уровни и ежедневные серии. Здесь нет внешних зависимостей и I/O.
package progress

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// dateLayout - формат календарной даты в хранилище и API.
const dateLayout = "2006-01-02"

// Date - календарная дата без времени суток.
// Серии считаются по календарным дням в часовом поясе приложения.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf возвращает календарную дату момента t в его собственной локации.
// Вызывающий код сам переводит t в нужный часовой пояс.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// NewDate создаёт дату, нормализуя переполнения (31 февраля -> 2 марта).
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// ParseDate разбирает дату в формате YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// String возвращает дату в формате YYYY-MM-DD.
func (d Date) String() string {
	return d.utc().Format(dateLayout)
}

// IsZero проверяет, что дата не задана.
func (d Date) IsZero() bool {
	return d == Date{}
}

// AddDays сдвигает дату на n календарных дней.
func (d Date) AddDays(n int) Date {
	return DateOf(d.utc().AddDate(0, 0, n))
}

// DaysUntil возвращает число дней от d до other (отрицательное, если other раньше).
func (d Date) DaysUntil(other Date) int {
	return int(other.utc().Sub(d.utc()).Hours() / 24)
}

// Before сообщает, что d раньше other.
func (d Date) Before(other Date) bool {
	return d.DaysUntil(other) > 0
}

// After сообщает, что d позже other.
func (d Date) After(other Date) bool {
	return d.DaysUntil(other) < 0
}

// MarshalText реализует encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText реализует encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) utc() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// ══════════════════════════════════════════════════════════════════════════════
// USER PROGRESS ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// UserProgress - прогресс одного пользователя. Создаётся один раз при
// регистрации и изменяется только транзакцией завершения урока.
type UserProgress struct {
	// ID - непрозрачный идентификатор от провайдера идентификации.
	ID string

	// DisplayName - отображаемое имя.
	DisplayName string

	// Email - адрес, указанный при регистрации.
	Email string

	// TotalXP - суммарный опыт, никогда не уменьшается.
	TotalXP int

	// Level - всегда равен ComputeLevel(TotalXP).
	Level int

	// CurrentStreak - текущая серия дней подряд с завершёнными уроками.
	CurrentStreak int

	// BestStreak - лучшая серия за всё время.
	BestStreak int

	// LastCompletionDate - дата последнего завершения; nil до первого урока.
	LastCompletionDate *Date

	// CompletedLessons - идентификаторы завершённых уроков без повторов.
	CompletedLessons []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewUserProgress создаёт профиль с нулевыми счётчиками.
func NewUserProgress(id, email, displayName string, now time.Time) (*UserProgress, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, shared.WrapError("progress", "NewUserProgress", shared.ErrValidation, "user id is required", nil)
	}

	return &UserProgress{
		ID:               id,
		DisplayName:      strings.TrimSpace(displayName),
		Email:            strings.ToLower(strings.TrimSpace(email)),
		TotalXP:          0,
		Level:            ComputeLevel(0),
		CurrentStreak:    0,
		BestStreak:       0,
		CompletedLessons: []string{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// HasCompleted проверяет, завершён ли урок.
func (u *UserProgress) HasCompleted(lessonID string) bool {
	return slices.Contains(u.CompletedLessons, lessonID)
}

// CompletedCount возвращает количество завершённых уроков.
func (u *UserProgress) CompletedCount() int {
	return len(u.CompletedLessons)
}

// CompletedSet возвращает множество завершённых уроков для быстрых проверок.
func (u *UserProgress) CompletedSet() map[string]bool {
	set := make(map[string]bool, len(u.CompletedLessons))
	for _, id := range u.CompletedLessons {
		set[id] = true
	}
	return set
}

// Validate проверяет инварианты сохранённой записи.
func (u *UserProgress) Validate() error {
	switch {
	case u.TotalXP < 0:
		return shared.ErrNegativeXP
	case u.CurrentStreak < 0 || u.BestStreak < 0:
		return shared.ErrNegativeStreak
	case u.Level != ComputeLevel(u.TotalXP):
		return shared.ErrLevelInconsistent
	}
	return nil
}

// Apply применяет рассчитанное завершение к копии в памяти.
func (u *UserProgress) Apply(c Completion, at time.Time) {
	u.TotalXP = c.NewTotalXP
	u.Level = c.NewLevel
	u.CurrentStreak = c.NewStreak
	u.BestStreak = c.BestStreak
	date := c.CompletionDate
	u.LastCompletionDate = &date
	u.CompletedLessons = slices.Clone(c.CompletedLessons)
	u.UpdatedAt = at
}

// Clone создаёт глубокую копию.
func (u *UserProgress) Clone() *UserProgress {
	clone := *u
	clone.CompletedLessons = slices.Clone(u.CompletedLessons)
	if u.LastCompletionDate != nil {
		d := *u.LastCompletionDate
		clone.LastCompletionDate = &d
	}
	return &clone
}
