package port_reader

const defaultQueueLimit = 64 * 1024

func NewByteQueue(limit int) *ByteQueue {
	if limit <= 0 {
		limit = defaultQueueLimit
	}
	return &ByteQueue{limit: limit}
}

// Write appends p. It never fails so the queue can sit behind an io.Writer.
func (q *ByteQueue) Write(p []byte) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(p) >= q.limit {
		q.dropped += uint64(len(q.buf) + len(p) - q.limit)
		q.buf = append(q.buf[:0], p[len(p)-q.limit:]...)
		return len(p), nil
	}
	if over := len(q.buf) + len(p) - q.limit; over > 0 {
		q.dropped += uint64(over)
		q.buf = q.buf[:copy(q.buf, q.buf[over:])]
	}
	q.buf = append(q.buf, p...)
	return len(p), nil
}

// TryRead moves up to len(p) buffered bytes into p without blocking.
func (q *ByteQueue) TryRead(p []byte) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := copy(p, q.buf)
	q.buf = q.buf[:copy(q.buf, q.buf[n:])]
	return n
}

func (q *ByteQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf)
}

// Dropped counts bytes discarded because the decode loop fell behind.
func (q *ByteQueue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
