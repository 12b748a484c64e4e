package protocol

import (
	"sort"
	"sync"
)

// Log is an append-only, totally ordered message log with monotonically
// increasing sequence numbers. It is the single implementation of the
// polling contract: a reader supplies the highest sequence number it has
// already consumed and receives only strictly newer messages plus the new
// high-water mark. Both the tracker's channel logs and each peer's inbox are
// backed by a Log.
//
// All operations serialize through an internal mutex, so concurrent appends
// never interleave partially or reuse a sequence number, and readers always
// observe messages in append order.
type Log struct {
	mu       sync.Mutex
	seq      int64
	messages []Message
	capacity int
}

// NewLog creates an empty log. A capacity greater than zero bounds retention:
// once the log holds capacity messages, each append evicts the oldest one.
// Sequence numbers are never reused after eviction, so cursors stay valid.
// Zero (or negative) capacity keeps every message for the life of the process.
func NewLog(capacity int) *Log {
	return &Log{capacity: capacity}
}

// Append adds a message from senderID and returns its sequence number.
// Sequence numbers start at 1 and increase by exactly one per append.
func (l *Log) Append(senderID, body string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	l.messages = append(l.messages, Message{
		Seq:      l.seq,
		SenderID: senderID,
		Body:     body,
	})

	if l.capacity > 0 && len(l.messages) > l.capacity {
		evicted := len(l.messages) - l.capacity
		l.messages = append([]Message(nil), l.messages[evicted:]...)
	}

	return l.seq
}

// ReadSince returns every retained message with a sequence number strictly
// greater than since, in append order, together with the new cursor. The
// cursor equals the last returned sequence number, or since unchanged when
// nothing new exists, so repeated polls with the returned cursor never see a
// message twice.
func (l *Log) ReadSince(since int64) ([]Message, int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	start := sort.Search(len(l.messages), func(i int) bool {
		return l.messages[i].Seq > since
	})

	if start == len(l.messages) {
		return nil, since
	}

	out := append([]Message(nil), l.messages[start:]...)
	return out, out[len(out)-1].Seq
}

// Len reports how many messages are currently retained.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.messages)
}

// LastSeq reports the highest sequence number ever assigned, which is also
// the cursor a fully caught-up reader holds.
func (l *Log) LastSeq() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seq
}
