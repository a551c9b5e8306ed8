package progress

import "sync"

// sink receives the events of a whole tree, already serialized by the tree lock.
type sink interface {
	started(name string)
	completed(delta int)
	finished()
}

type tree struct {
	mu   sync.Mutex
	sink sink
}

// Node is the in-memory Tracker implementation. Children report finished
// work up to their parent, so the root always holds the run total.
type Node struct {
	tree     *tree
	parent   *Node
	name     string
	total    int
	done     int
	pending  int
	paused   bool
	finished bool
	children []*Node
}

// NewNode creates a root tracker that keeps its state in memory only.
func NewNode(name string, total int) *Node {
	return newRoot(name, total, nil)
}

// Memory is a Factory of in-memory trackers.
func Memory() Factory {
	return func(name string, total int) Tracker { return NewNode(name, total) }
}

func newRoot(name string, total int, s sink) *Node {
	return &Node{tree: &tree{sink: s}, name: name, total: total}
}

func (n *Node) Name() string {
	return n.name
}

// NewChild creates a child expecting one unit of work.
func (n *Node) NewChild(name string) Tracker {
	n.tree.mu.Lock()
	defer n.tree.mu.Unlock()

	child := &Node{tree: n.tree, parent: n, name: name, total: 1}
	n.children = append(n.children, child)
	return child
}

func (n *Node) Pause() {
	n.tree.mu.Lock()
	defer n.tree.mu.Unlock()
	n.paused = true
}

func (n *Node) Resume() {
	n.tree.mu.Lock()
	defer n.tree.mu.Unlock()

	if !n.paused {
		return
	}
	n.paused = false
	if n.tree.sink != nil {
		n.tree.sink.started(n.name)
	}
	if n.pending > 0 {
		delta := n.pending
		n.pending = 0
		n.record(delta)
	}
}

func (n *Node) CompleteWork(delta int) {
	if delta <= 0 {
		return
	}
	n.tree.mu.Lock()
	defer n.tree.mu.Unlock()
	n.receive(delta)
}

func (n *Node) Finish() {
	n.tree.mu.Lock()
	defer n.tree.mu.Unlock()

	if n.finished {
		return
	}
	n.finished = true
	if n.parent == nil && n.tree.sink != nil {
		n.tree.sink.finished()
	}
}

// receive and record expect the tree lock to be held.
func (n *Node) receive(delta int) {
	if n.paused {
		n.pending += delta
		return
	}
	n.record(delta)
}

func (n *Node) record(delta int) {
	n.done += delta
	if n.parent != nil {
		n.parent.receive(delta)
		return
	}
	if n.tree.sink != nil {
		n.tree.sink.completed(delta)
	}
}

// Completed returns the work reported through this node, excluding work
// held back while paused.
func (n *Node) Completed() int {
	n.tree.mu.Lock()
	defer n.tree.mu.Unlock()
	return n.done
}

func (n *Node) Total() int {
	return n.total
}

func (n *Node) Paused() bool {
	n.tree.mu.Lock()
	defer n.tree.mu.Unlock()
	return n.paused
}

func (n *Node) Finished() bool {
	n.tree.mu.Lock()
	defer n.tree.mu.Unlock()
	return n.finished
}

// Children returns a snapshot of the node's children in creation order.
func (n *Node) Children() []*Node {
	n.tree.mu.Lock()
	defer n.tree.mu.Unlock()

	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}
