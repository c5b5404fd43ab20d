package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIncrementWindow(t *testing.T) {
	c := New(context.Background(), 0, 0, 0)
	clock := time.Now()
	c.now = func() time.Time { return clock }

	assert.Equal(t, 1, c.Increment("k", time.Minute))
	assert.Equal(t, 2, c.Increment("k", time.Minute))

	clock = clock.Add(2 * time.Minute)
	assert.Equal(t, 1, c.Increment("k", time.Minute))
}

func TestSetGetDelete(t *testing.T) {
	c := New(context.Background(), time.Hour, 0, 0)
	c.Set("a", "b")

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "b", v)

	evicted := ""
	c.SetOnEvicted(func(k string, _ interface{}) { evicted = k })
	c.Delete("a")
	_, ok = c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, "a", evicted)
}

func TestMaxItemsEvicts(t *testing.T) {
	c := New(context.Background(), 0, 0, 2)
	c.SetWithExpiration("soon", 1, time.Second)
	c.SetWithExpiration("later", 2, time.Hour)
	c.Set("new", 3)

	assert.Equal(t, 2, c.Count())
	_, ok := c.Get("soon")
	assert.False(t, ok)
}
