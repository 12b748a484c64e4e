package protocol

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLogAppendOrder verifies that messages come back in exact append order
// with strictly increasing, gap-free sequence numbers.
func TestLogAppendOrder(t *testing.T) {
	log := NewLog(0)

	for i := 1; i <= 5; i++ {
		seq := log.Append("p1", fmt.Sprintf("msg-%d", i))
		assert.Equal(t, int64(i), seq)
	}

	messages, cursor := log.ReadSince(0)
	require.Len(t, messages, 5)
	assert.Equal(t, int64(5), cursor)

	for i, msg := range messages {
		assert.Equal(t, int64(i+1), msg.Seq)
		assert.Equal(t, fmt.Sprintf("msg-%d", i+1), msg.Body)
	}
}

// TestLogReadSinceCursor verifies the no-duplication property: a poll with
// the returned cursor never re-delivers a consumed message.
func TestLogReadSinceCursor(t *testing.T) {
	log := NewLog(0)
	log.Append("p1", "first")
	log.Append("p2", "second")

	messages, cursor := log.ReadSince(0)
	require.Len(t, messages, 2)
	assert.Equal(t, int64(2), cursor)

	messages, cursor = log.ReadSince(cursor)
	assert.Empty(t, messages)
	assert.Equal(t, int64(2), cursor)

	log.Append("p1", "third")
	messages, cursor = log.ReadSince(cursor)
	require.Len(t, messages, 1)
	assert.Equal(t, int64(3), messages[0].Seq)
	assert.Equal(t, int64(3), cursor)
}

// TestLogReadSinceMidStream verifies that a reader never receives a message
// with a sequence number at or below its cursor.
func TestLogReadSinceMidStream(t *testing.T) {
	log := NewLog(0)
	for i := 0; i < 10; i++ {
		log.Append("p1", "m")
	}

	messages, cursor := log.ReadSince(7)
	require.Len(t, messages, 3)
	assert.Equal(t, int64(8), messages[0].Seq)
	assert.Equal(t, int64(10), cursor)
}

// TestLogBoundedRetention verifies that a capped log evicts oldest messages
// while keeping sequence numbers stable.
func TestLogBoundedRetention(t *testing.T) {
	log := NewLog(3)
	for i := 0; i < 5; i++ {
		log.Append("p1", fmt.Sprintf("m%d", i))
	}

	assert.Equal(t, 3, log.Len())
	assert.Equal(t, int64(5), log.LastSeq())

	messages, cursor := log.ReadSince(0)
	require.Len(t, messages, 3)
	assert.Equal(t, int64(3), messages[0].Seq)
	assert.Equal(t, int64(5), cursor)
}

// TestLogConcurrentAppends verifies that concurrent appends never produce
// duplicate or missing sequence numbers.
func TestLogConcurrentAppends(t *testing.T) {
	log := NewLog(0)

	const writers = 8
	const perWriter = 50

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				log.Append(fmt.Sprintf("p%d", id), "m")
			}
		}(w)
	}
	wg.Wait()

	messages, cursor := log.ReadSince(0)
	require.Len(t, messages, writers*perWriter)
	assert.Equal(t, int64(writers*perWriter), cursor)

	for i, msg := range messages {
		assert.Equal(t, int64(i+1), msg.Seq)
	}
}
