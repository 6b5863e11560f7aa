package progress

import (
	"slices"

	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESSION RULES
// ══════════════════════════════════════════════════════════════════════════════

// XPPerLevel - ширина одного уровня в очках опыта.
const XPPerLevel = 100

// ComputeLevel вычисляет уровень: floor(totalXP / 100) + 1.
// 0-99 XP -> 1, 100-199 -> 2 и так далее без верхней границы.
func ComputeLevel(totalXP int) int {
	if totalXP < 0 {
		return 1
	}
	return totalXP/XPPerLevel + 1
}

// NextLevelThreshold возвращает суммарный XP, с которого начинается следующий уровень.
func NextLevelThreshold(level int) int {
	return level * XPPerLevel
}

// ComputeStreak вычисляет новую серию по календарным дням.
//
//	нет прошлой даты   -> 1
//	тот же день        -> без изменений
//	следующий день     -> +1
//	пропуск дней       -> 1
//	today раньше last  -> без изменений (часы клиента/сервера расходятся)
func ComputeStreak(last *Date, currentStreak int, today Date) int {
	if last == nil {
		return 1
	}

	switch diff := last.DaysUntil(today); {
	case diff == 0:
		return currentStreak
	case diff == 1:
		return currentStreak + 1
	case diff > 1:
		return 1
	default:
		return currentStreak
	}
}

// LevelProgress - данные для шкалы прогресса на дашборде.
type LevelProgress struct {
	Level         int `json:"level"`
	TotalXP       int `json:"totalXP"`
	LevelStartXP  int `json:"levelStartXP"`
	NextLevelXP   int `json:"nextLevelXP"`
	XPIntoLevel   int `json:"xpIntoLevel"`
	XPToNextLevel int `json:"xpToNextLevel"`
	Percent       int `json:"percent"`
}

// ProgressFor рассчитывает заполнение шкалы для суммарного опыта.
func ProgressFor(totalXP int) LevelProgress {
	if totalXP < 0 {
		totalXP = 0
	}
	level := ComputeLevel(totalXP)
	start := NextLevelThreshold(level - 1)
	next := NextLevelThreshold(level)
	into := totalXP - start

	return LevelProgress{
		Level:         level,
		TotalXP:       totalXP,
		LevelStartXP:  start,
		NextLevelXP:   next,
		XPIntoLevel:   into,
		XPToNextLevel: next - totalXP,
		Percent:       into * 100 / XPPerLevel,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETION PLAN
// ══════════════════════════════════════════════════════════════════════════════

// Completion - результат расчёта завершения урока: новые значения полей
// профиля и данные для ответа пользователю.
type Completion struct {
	UserID   string
	LessonID string

	XPGained      int
	PreviousXP    int
	NewTotalXP    int
	PreviousLevel int
	NewLevel      int
	LeveledUp     bool

	PreviousStreak int
	NewStreak      int
	BestStreak     int

	// CompletionDate сохраняется как lastCompletionDate. При расхождении часов
	// дата не сдвигается назад.
	CompletionDate Date

	// CompletedLessons - новое множество завершённых уроков.
	CompletedLessons []string
}

// StreakIncreased сообщает, что серия выросла (или началась).
func (c Completion) StreakIncreased() bool {
	return c.NewStreak > c.PreviousStreak
}

// StreakChanged сообщает, что серия изменилась в любую сторону.
func (c Completion) StreakChanged() bool {
	return c.NewStreak != c.PreviousStreak
}

// Plan рассчитывает завершение урока для снимка профиля. Снимок не изменяется.
// Ошибки: урок уже завершён, нарушенные инварианты профиля или награды.
func Plan(u *UserProgress, lessonID string, xpReward int, today Date) (Completion, error) {
	if u.HasCompleted(lessonID) {
		return Completion{}, shared.ErrLessonCompleted
	}
	if err := u.Validate(); err != nil {
		return Completion{}, err
	}
	if xpReward <= 0 {
		return Completion{}, shared.WrapError("progress", "Plan", shared.ErrInvalidState, "xp reward must be positive", nil)
	}

	newTotal := u.TotalXP + xpReward
	newLevel := ComputeLevel(newTotal)
	newStreak := ComputeStreak(u.LastCompletionDate, u.CurrentStreak, today)

	completionDate := today
	if u.LastCompletionDate != nil && u.LastCompletionDate.After(today) {
		completionDate = *u.LastCompletionDate
	}

	completed := make([]string, 0, len(u.CompletedLessons)+1)
	completed = append(completed, u.CompletedLessons...)
	completed = append(completed, lessonID)

	return Completion{
		UserID:           u.ID,
		LessonID:         lessonID,
		XPGained:         xpReward,
		PreviousXP:       u.TotalXP,
		NewTotalXP:       newTotal,
		PreviousLevel:    u.Level,
		NewLevel:         newLevel,
		LeveledUp:        newLevel > u.Level,
		PreviousStreak:   u.CurrentStreak,
		NewStreak:        newStreak,
		BestStreak:       max(u.BestStreak, newStreak),
		CompletionDate:   completionDate,
		CompletedLessons: slices.Clip(completed),
	}, nil
}
