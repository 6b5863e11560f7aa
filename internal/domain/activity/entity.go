// Package activity содержит ленту активности пользователя: ограниченный
// журнал достижений, новые записи первыми, собранный из доменных событий.
// Чистый доменный слой без внешних зависимостей.
package activity

import (
	"errors"
	"slices"
	"time"
)

// Доменные ошибки пакета activity.
var (
	ErrInvalidUserID = errors.New("activity: invalid user ID")
	ErrInvalidKind   = errors.New("activity: unknown entry kind")
)

// MaxEntries ограничивает длину ленты. Старые записи отбрасываются.
const MaxEntries = 50

// Kind - тип события в ленте.
type Kind string

const (
	KindJoined          Kind = "joined"
	KindLessonCompleted Kind = "lesson_completed"
	KindLevelUp         Kind = "level_up"
	KindStreakExtended  Kind = "streak_extended"
	KindStreakReset     Kind = "streak_reset"
)

// IsValid проверяет, что тип известен.
func (k Kind) IsValid() bool {
	switch k {
	case KindJoined, KindLessonCompleted, KindLevelUp, KindStreakExtended, KindStreakReset:
		return true
	}
	return false
}

// Entry - одна запись ленты. Заполнены только поля, относящиеся к Kind.
type Entry struct {
	Kind     Kind      `json:"kind"`
	LessonID string    `json:"lessonId,omitempty"`
	XP       int       `json:"xp,omitempty"`
	TotalXP  int       `json:"totalXP,omitempty"`
	Level    int       `json:"level,omitempty"`
	Streak   int       `json:"streak,omitempty"`
	Date     string    `json:"date,omitempty"`
	At       time.Time `json:"at"`
}

// Feed - лента активности одного пользователя.
type Feed struct {
	UserID string

	// Entries упорядочены от новых к старым.
	Entries []Entry

	// Version растёт с каждым сохранением и защищает от параллельных дописываний.
	Version int
}

// NewFeed создаёт пустую ленту.
func NewFeed(userID string) (*Feed, error) {
	if userID == "" {
		return nil, ErrInvalidUserID
	}
	return &Feed{UserID: userID, Entries: []Entry{}}, nil
}

// Add вставляет e на место по времени (новые первыми) и обрезает ленту до
// MaxEntries. События приходят в любом порядке, поэтому порядок прихода не
// учитывается. Записи с одинаковым временем упорядочены по типу (см. rank);
// при полном совпадении новая запись встаёт перед существующей.
func (f *Feed) Add(e Entry) error {
	if !e.Kind.IsValid() {
		return ErrInvalidKind
	}

	pos := slices.IndexFunc(f.Entries, func(old Entry) bool { return !old.newerThan(e) })
	if pos < 0 {
		pos = len(f.Entries)
	}
	if pos >= MaxEntries {
		return nil
	}

	entries := make([]Entry, 0, min(len(f.Entries)+1, MaxEntries))
	entries = append(entries, f.Entries[:pos]...)
	entries = append(entries, e)
	entries = append(entries, f.Entries[pos:]...)
	if len(entries) > MaxEntries {
		entries = entries[:MaxEntries]
	}
	f.Entries = entries
	return nil
}

// rank упорядочивает записи одного завершения с одинаковым временем:
// сначала урок, затем вызванные им уровень и серия.
func (k Kind) rank() int {
	switch k {
	case KindJoined:
		return 0
	case KindLessonCompleted:
		return 1
	case KindLevelUp:
		return 2
	}
	return 3
}

func (e Entry) newerThan(other Entry) bool {
	if !e.At.Equal(other.At) {
		return e.At.After(other.At)
	}
	return e.Kind.rank() > other.Kind.rank()
}

// Recent возвращает не больше limit новых записей. limit <= 0 - все.
func (f *Feed) Recent(limit int) []Entry {
	if limit <= 0 || limit >= len(f.Entries) {
		return f.Entries
	}
	return f.Entries[:limit]
}
