package lesson

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Ruben-Makrati/gamified-bible-study-app/internal/domain/shared"
)

func TestReward_DefaultsWhenMissing(t *testing.T) {
	assert.Equal(t, 25, (&Lesson{XPReward: 25}).Reward())
	assert.Equal(t, DefaultXPReward, (&Lesson{}).Reward())
	assert.Equal(t, DefaultXPReward, (&Lesson{XPReward: -3}).Reward())
	assert.True(t, (&Lesson{}).RewardDefaulted())
	assert.False(t, (&Lesson{XPReward: 10}).RewardDefaulted())
}

func TestValidate(t *testing.T) {
	assert.NoError(t, (&Lesson{ID: "a", Title: "Faith", XPReward: 10}).Validate())

	err := (&Lesson{XPReward: -1}).Validate()
	assert.True(t, errors.Is(err, shared.ErrInvalidLesson))
	assert.True(t, shared.IsValidation(err))
	assert.Contains(t, err.Error(), "title is required")
}

func TestSortAndNextLesson(t *testing.T) {
	lessons := []*Lesson{
		{ID: "c", Order: 3},
		{ID: "a", Order: 1},
		{ID: "b2", Order: 2},
		{ID: "b1", Order: 2},
	}
	SortByOrder(lessons)

	ids := make([]string, 0, len(lessons))
	for _, l := range lessons {
		ids = append(ids, l.ID)
	}
	assert.Equal(t, []string{"a", "b1", "b2", "c"}, ids)

	assert.Equal(t, "a", NextLesson(lessons, nil).ID)
	assert.Equal(t, "b2", NextLesson(lessons, map[string]bool{"a": true, "b1": true}).ID)
	assert.Nil(t, NextLesson(lessons, map[string]bool{"a": true, "b1": true, "b2": true, "c": true}))
}

func TestIsUnlocked(t *testing.T) {
	lessons := []*Lesson{{ID: "a", Order: 1}, {ID: "b", Order: 2}, {ID: "c", Order: 3}}

	assert.True(t, IsUnlocked(lessons, lessons[0], nil))
	assert.False(t, IsUnlocked(lessons, lessons[2], map[string]bool{"a": true}))
	assert.True(t, IsUnlocked(lessons, lessons[2], map[string]bool{"a": true, "b": true}))
}

func TestDefaultLessons(t *testing.T) {
	seeds := DefaultLessons()
	assert.Len(t, seeds, 5)
	for i, s := range seeds {
		assert.Equal(t, i+1, s.Order)
		assert.Equal(t, 10, s.XPReward)
		assert.NotEmpty(t, s.Title)
		assert.NotEmpty(t, s.Verse)
		assert.NotEmpty(t, s.Content)
	}
	assert.Equal(t, "Faith and Trust", seeds[0].Title)
	assert.Equal(t, "Ephesians 4:32", seeds[4].Verse)
}
