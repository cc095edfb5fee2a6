package coop

// waiterNode is an intrusive doubly-linked list node. A single-coordinator
// wait uses the node embedded in the blocked [Context] itself
// (Context.waiter); CoordinateWith allocates one node per candidate
// coordinator in a slice that lives for the duration of the wait.
//
// A plain intrusive doubly-linked list; waiter nodes are never pooled
// since each is owned by exactly one blocked Context for the duration
// of the wait.
type waiterNode struct {
	prev, next *waiterNode
	ctx        *Context
	// list identifies which waiterList this node is currently linked
	// into, so a kill or a multi-coordinator rollback can find and remove
	// it without the caller tracking that separately.
	list *waiterList
	// wake is invoked by whichever coordinator releases this waiter,
	// applying the acquire-side effects (e.g. marking the coordinator
	// held) before the context resumes. schedule mirrors the releaser's
	// own schedule argument: true means the waiter must run before the
	// releaser's own call returns (a direct switch), false means it is
	// only re-enqueued for a later tick.
	wake func(schedule bool)
}

// waiterList is an intrusive FIFO doubly-linked list of waiterNode. The
// zero value is an empty list.
type waiterList struct {
	head, tail *waiterNode
	length     int
}

// pushBack appends n to the tail of the list. n must not already be
// linked into any list.
func (l *waiterList) pushBack(n *waiterNode) {
	n.prev = l.tail
	n.next = nil
	n.list = l
	if l.tail != nil {
		l.tail.next = n
	} else {
		l.head = n
	}
	l.tail = n
	l.length++
}

// popFront removes and returns the head of the list, or nil if empty.
func (l *waiterList) popFront() *waiterNode {
	n := l.head
	if n == nil {
		return nil
	}
	l.remove(n)
	return n
}

// remove unlinks n from the list. n must currently be linked into this
// list (the caller is responsible for that invariant, as with any
// intrusive list).
func (l *waiterList) remove(n *waiterNode) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		l.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		l.tail = n.prev
	}
	n.prev, n.next, n.list = nil, nil, nil
	l.length--
}

func (l *waiterList) empty() bool { return l.head == nil }

func (l *waiterList) Len() int { return l.length }
