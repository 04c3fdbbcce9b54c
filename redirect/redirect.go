/*
Package redirect remembers which client asked the server what, so that the
numeric replies to a request go back to that client only. Requests are kept
in the order they were sent and a reply goes to the oldest request it could
answer.
*/
package redirect

import (
	"strings"
	"sync"
	"time"

	"github.com/jelmer/ctrlproxy-sub000/irc"
)

// query lists the numerics a command can be answered with. Replies leave the
// request waiting for more, end replies and errors conclude it.
type query struct {
	replies []string
	ends    []string
	errors  []string
	// record decides whether a request expects an answer at all, nil means
	// it always does.
	record func(l *irc.Line) bool
}

func (q *query) answers(numeric string) (answers, final bool) {
	if contains(q.replies, numeric) {
		return true, false
	}
	if contains(q.ends, numeric) || contains(q.errors, numeric) {
		return true, true
	}
	return false, false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// unknownQuery is what a command missing from the table is expected to get.
var unknownQuery = &query{
	ends:   []string{irc.RPL_TRYAGAIN},
	errors: []string{irc.ERR_UNKNOWNCOMMAND},
}

// Entry is a request waiting for its replies.
type Entry[T any] struct {
	Token   T
	Command string
	Time    time.Time
	query   *query
}

// Stack holds the requests of one network. It is safe for concurrent use.
type Stack[T any] struct {
	mu      sync.Mutex
	entries []Entry[T]
	now     func() time.Time
}

// New creates an empty stack.
func New[T any]() *Stack[T] {
	return &Stack[T]{now: time.Now}
}

// Record remembers that the line l, sent by token, awaits replies. It
// returns false for commands it has no reply table for; those are still
// recorded and expect the generic replies to unknown commands. A TOPIC that
// sets the topic is not recorded.
func (s *Stack[T]) Record(token T, l *irc.Line) bool {
	cmd := strings.ToUpper(l.Command)
	q, known := queries[cmd]
	if !known {
		q = unknownQuery
	}
	if q.record != nil && !q.record(l) {
		return known
	}

	s.mu.Lock()
	s.entries = append(s.entries, Entry[T]{
		Token:   token,
		Command: cmd,
		Time:    s.now(),
		query:   q,
	})
	s.mu.Unlock()
	return known
}

// MatchResponse finds the oldest request the numeric reply l answers and
// returns its token. The request is dropped once the reply concludes it.
func (s *Stack[T]) MatchResponse(l *irc.Line) (T, bool) {
	var zero T
	if !isNumeric(l.Command) {
		return zero, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.entries {
		answers, final := e.query.answers(l.Command)
		if !answers {
			continue
		}
		if final {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
		}
		return e.Token, true
	}
	return zero, false
}

func isNumeric(cmd string) bool {
	if len(cmd) != 3 {
		return false
	}
	for i := 0; i < 3; i++ {
		if cmd[i] < '0' || cmd[i] > '9' {
			return false
		}
	}
	return true
}

// Clear drops every request, used when the server connection is lost.
func (s *Stack[T]) Clear() {
	s.mu.Lock()
	s.entries = nil
	s.mu.Unlock()
}

// Forget drops the requests whose token matches, used when a client leaves.
// It returns the number of requests dropped.
func (s *Stack[T]) Forget(match func(T) bool) int {
	return s.filter(func(e Entry[T]) bool { return match(e.Token) })
}

// Expire drops requests recorded before t, servers that never answer would
// otherwise keep them forever.
func (s *Stack[T]) Expire(t time.Time) int {
	return s.filter(func(e Entry[T]) bool { return e.Time.Before(t) })
}

func (s *Stack[T]) filter(drop func(Entry[T]) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0]
	for _, e := range s.entries {
		if !drop(e) {
			kept = append(kept, e)
		}
	}
	n := len(s.entries) - len(kept)
	for i := len(kept); i < len(s.entries); i++ {
		s.entries[i] = Entry[T]{}
	}
	s.entries = kept
	return n
}

// Len is the number of requests waiting.
func (s *Stack[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Entries returns a copy of the waiting requests, oldest first.
func (s *Stack[T]) Entries() []Entry[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry[T], len(s.entries))
	copy(out, s.entries)
	return out
}
