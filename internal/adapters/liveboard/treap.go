package liveboard

import (
	"hash/fnv"

	"github.com/okian/palco/internal/domain/model"
)

// Treap ordered by model.LiveScore.Before: in-order traversal yields the
// board from best to worst. Subtree sizes give O(log n) positions.

type node struct {
	score model.LiveScore
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// priority derives a stable heap priority from the participant id.
func priority(id string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return h.Sum64()
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, s model.LiveScore) *node {
	if n == nil {
		return &node{score: s, prio: priority(s.ParticipantID), size: 1}
	}
	if s.Before(n.score) {
		n.left = insert(n.left, s)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, s)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func remove(n *node, s model.LiveScore) *node {
	if n == nil {
		return nil
	}
	switch {
	case n.score.ParticipantID == s.ParticipantID:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = remove(n.right, s)
		} else {
			n = rotateLeft(n)
			n.left = remove(n.left, s)
		}
	case s.Before(n.score):
		n.left = remove(n.left, s)
	default:
		n.right = remove(n.right, s)
	}
	fix(n)
	return n
}

// collectTop appends up to limit scores in board order.
func collectTop(n *node, limit int, out *[]model.LiveScore) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTop(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, n.score)
	}
	if len(*out) < limit {
		collectTop(n.right, limit, out)
	}
}

// position returns the 1-based board position of s, which must be in the tree.
func position(n *node, s model.LiveScore) int {
	pos := 0
	for n != nil {
		switch {
		case n.score.ParticipantID == s.ParticipantID:
			return pos + nsize(n.left) + 1
		case s.Before(n.score):
			n = n.left
		default:
			pos += nsize(n.left) + 1
			n = n.right
		}
	}
	return 0
}
