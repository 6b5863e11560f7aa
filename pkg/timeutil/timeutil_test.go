package timeutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSystemClock_Location(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*60*60)
	clock := NewSystemClock(loc)

	assert.Equal(t, loc, clock.Location())
	assert.Equal(t, loc, clock.Now().Location())

	assert.Equal(t, time.UTC, NewSystemClock(nil).Location())
}

func TestFixedClock(t *testing.T) {
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	clock := NewFixedClock(start)

	assert.Equal(t, start, clock.Now())
	clock.AdvanceDays(2)
	assert.Equal(t, start.AddDate(0, 0, 2), clock.Now())
	clock.Advance(time.Hour)
	assert.Equal(t, 10, clock.Now().Hour())
	assert.Equal(t, time.UTC, clock.Location())

	clock.Set(start)
	assert.Equal(t, start, clock.Now())
}

func TestFixedClock_AdvanceDaysKeepsWallTimeAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata not available")
	}
	clock := NewFixedClock(time.Date(2024, 3, 9, 12, 0, 0, 0, loc))

	clock.AdvanceDays(2)
	assert.Equal(t, 12, clock.Now().Hour())
	assert.Equal(t, 11, clock.Now().Day())
}

func TestFixedClock_Concurrent(t *testing.T) {
	clock := NewFixedClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			clock.Advance(time.Minute)
			_ = clock.Now()
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, clock.Now().Minute())
}
