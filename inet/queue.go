package inet

import (
	"sync"
)

// queueNode is the node structure underneath the Queue type.
type queueNode struct {
	next *queueNode
	data []byte
}

// Queue holds the lines waiting for flood protection to let them out. It is
// a singly linked list guarded by a mutex.
type Queue struct {
	front  *queueNode
	back   *queueNode
	length int
	mutex  sync.Mutex
}

// Enqueue appends copies of the lines, allocating them before the lock is
// taken.
func (q *Queue) Enqueue(lines ...[]byte) {
	if len(lines) == 0 {
		return
	}

	nodes := make([]*queueNode, len(lines))
	for i, v := range lines {
		cpy := make([]byte, len(v))
		copy(cpy, v)
		nodes[i] = &queueNode{data: cpy}
	}

	q.mutex.Lock()
	for _, node := range nodes {
		if q.length == 0 {
			q.front = node
		} else {
			q.back.next = node
		}
		q.back = node
		q.length++
	}
	q.mutex.Unlock()
}

// Dequeue removes the oldest line, nil when the queue is empty.
func (q *Queue) Dequeue() []byte {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if q.length == 0 {
		return nil
	}

	data := q.front.data
	q.front = q.front.next
	if q.length == 1 {
		q.back = nil
	}
	q.length--
	return data
}

// Len is the number of lines waiting.
func (q *Queue) Len() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return q.length
}

// Clear drops every waiting line and returns how many there were.
func (q *Queue) Clear() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	n := q.length
	q.front, q.back, q.length = nil, nil, 0
	return n
}
