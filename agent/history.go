package agent

import "github.com/quailyquaily/socialsim/llm"

const DefaultHistoryLimit = 20

// turnRing keeps the most recent turns of a dialogue. Once full, each push
// overwrites the oldest turn and bumps the dropped counter.
type turnRing struct {
	buf     []llm.Message
	head    int
	size    int
	dropped int
}

func newTurnRing(limit int) *turnRing {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &turnRing{buf: make([]llm.Message, limit)}
}

func (r *turnRing) push(m llm.Message) {
	if r.size < len(r.buf) {
		r.buf[(r.head+r.size)%len(r.buf)] = m
		r.size++
		return
	}
	r.buf[r.head] = m
	r.head = (r.head + 1) % len(r.buf)
	r.dropped++
}

// snapshot returns the retained turns oldest first.
func (r *turnRing) snapshot() []llm.Message {
	out := make([]llm.Message, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	return out
}
