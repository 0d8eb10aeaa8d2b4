// Parrot keeps cached entries and registered scopes in insertion order. The doubly linked list below gives O(1)
// append, O(1) removal of any node we hold a pointer to and a stable node identity, so an index (map) can point at
// nodes and update them in place without re-linking.

package types

import "iter"

// LinkedListNode represents a node in the doubly linked list.
type LinkedListNode[V any] struct {
	next  *LinkedListNode[V]
	prev  *LinkedListNode[V]
	Value V
}

// Next returns the next node in the list.
func (n *LinkedListNode[V]) Next() *LinkedListNode[V] {
	return n.next
}

// LinkedList represents a doubly linked list. The zero value is an empty list ready to use.
type LinkedList[V any] struct {
	head *LinkedListNode[V]
	tail *LinkedListNode[V]
	size int
}

// Len returns the number of elements in the list.
func (l *LinkedList[V]) Len() int {
	return l.size
}

// Front returns the first node of the list or nil if the list is empty.
func (l *LinkedList[V]) Front() *LinkedListNode[V] {
	return l.head
}

// Remove removes a node from the list. The node must belong to this list.
func (l *LinkedList[V]) Remove(n *LinkedListNode[V]) {
	if n.prev != nil {
		n.prev.next = n.next
	} else { // Node is the head.
		l.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else { // Node is the tail.
		l.tail = n.prev
	}
	// Clean up the removed node's pointers.
	n.next = nil
	n.prev = nil
	l.size--
}

// PushBack adds a new value to the back of the list.
func (l *LinkedList[V]) PushBack(v V) *LinkedListNode[V] {
	n := &LinkedListNode[V]{Value: v, prev: l.tail}
	if l.tail != nil {
		l.tail.next = n
	} else { // List was empty.
		l.head = n
	}
	l.tail = n
	l.size++
	return n
}

// All yields the values from front to back. The list must not be modified during iteration.
func (l *LinkedList[V]) All() iter.Seq[V] {
	return func(yield func(V) bool) {
		for node := l.head; node != nil; node = node.next {
			if !yield(node.Value) {
				return
			}
		}
	}
}
