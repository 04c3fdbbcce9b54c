package inet

import (
	"bytes"
	"testing"
)

func TestQueue(t *testing.T) {
	t.Parallel()

	test1 := []byte{1, 2, 3}
	test2 := []byte{4, 5, 6}

	q := Queue{}
	q.Enqueue()
	if q.Len() != 0 {
		t.Error("Unexpected:", q.Len())
	}
	if dq := q.Dequeue(); dq != nil {
		t.Error("Unexpected:", dq)
	}

	q.Enqueue(test1)
	q.Enqueue(test2, test1)
	if q.Len() != 3 {
		t.Error("Unexpected:", q.Len(), "should be:", 3)
	}

	test1[0] = 9
	for i, exp := range [][]byte{{1, 2, 3}, test2, {1, 2, 3}} {
		if got := q.Dequeue(); !bytes.Equal(got, exp) {
			t.Errorf("%d: Unexpected: %v should be: %v", i, got, exp)
		}
	}
	if q.Len() != 0 || q.front != nil || q.back != nil {
		t.Error("Queue should be empty")
	}
}

func TestQueue_Clear(t *testing.T) {
	t.Parallel()

	q := Queue{}
	q.Enqueue([]byte("a"), []byte("b"))
	if n := q.Clear(); n != 2 {
		t.Error("Unexpected:", n, "should be:", 2)
	}
	if dq := q.Dequeue(); dq != nil {
		t.Error("Unexpected:", dq)
	}
	q.Enqueue([]byte("c"))
	if got := q.Dequeue(); string(got) != "c" {
		t.Error("Unexpected:", string(got))
	}
}
