package countstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemCountStoreBasics(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := NewMemCountStore()

	c, err := cs.GetCount(ctx, "trade-credit", "alice", PeriodTotal)
	assert.NoError(err)
	assert.Equal(0, c)
	assert.NoError(cs.Increment(ctx, "trade-credit", "alice"))
	assert.NoError(cs.Increment(ctx, "trade-credit", "alice"))

	for _, period := range []string{PeriodTotal, PeriodDay, PeriodHour} {
		c, err = cs.GetCount(ctx, "trade-credit", "alice", period)
		assert.NoError(err)
		assert.Equal(2, c)
	}
}

func TestMemCountStoreDayRollover(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	now := time.Date(2024, 3, 1, 23, 30, 0, 0, time.UTC)
	cs := NewMemCountStore()
	cs.Now = func() time.Time { return now }

	assert.NoError(cs.Increment(ctx, "automod-quota", "report"))
	now = now.Add(time.Hour)

	c, err := cs.GetCount(ctx, "automod-quota", "report", PeriodDay)
	assert.NoError(err)
	assert.Equal(0, c)
	c, err = cs.GetCount(ctx, "automod-quota", "report", PeriodTotal)
	assert.NoError(err)
	assert.Equal(1, c)
}

func TestMemCountStoreConcurrent(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := NewMemCountStore()

	var wg sync.WaitGroup
	inc := func(val string, times int) {
		defer wg.Done()
		for i := 0; i < times; i++ {
			assert.NoError(cs.Increment(ctx, "test", val))
			_, err := cs.GetCount(ctx, "test", val, PeriodTotal)
			assert.NoError(err)
		}
	}
	wg.Add(4)
	go inc("one", 10)
	go inc("one", 10)
	go inc("two", 6)
	go inc("two", 6)
	wg.Wait()

	c, err := cs.GetCount(ctx, "test", "one", PeriodTotal)
	assert.NoError(err)
	assert.Equal(20, c)
	c, err = cs.GetCount(ctx, "test", "two", PeriodTotal)
	assert.NoError(err)
	assert.Equal(12, c)
}
