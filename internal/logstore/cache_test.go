package logstore

import (
	"testing"
	"time"

	"github.com/newhook/cilog/internal/travis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCache(t *testing.T) {
	c := NewParseCache(time.Minute, travis.WithoutRegroup())
	body := "Done: Job Cancelled\n"

	first, err := c.Parse(body)
	require.NoError(t, err)
	second, err := c.Parse(body)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, c.Len())

	job := &Job{Body: body, Digest: Digest(body)}
	third, err := c.ParseJob(job)
	require.NoError(t, err)
	assert.Same(t, first, third)

	assert.Equal(t, CacheStats{Hits: 2, Misses: 1}, c.Stats())

	c.Flush()
	assert.Zero(t, c.Len())
	fourth, err := c.Parse(body)
	require.NoError(t, err)
	assert.NotSame(t, first, fourth)
}

func TestParseCache_CachesErrors(t *testing.T) {
	c := NewParseCache(time.Minute)
	body := "this is not a job log\n"

	_, err := c.Parse(body)
	require.Error(t, err)
	assert.True(t, travis.IsParseError(err))

	_, again := c.Parse(body)
	assert.Same(t, err, again)
	assert.Equal(t, CacheStats{Hits: 1, Misses: 1}, c.Stats())
}

func TestParseCache_Expiry(t *testing.T) {
	c := NewParseCache(10 * time.Millisecond)
	first, err := c.Parse("")
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	second, err := c.Parse("")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}
