package commit

import "go.uber.org/zap"

// TreeOption configures a staged tree
type TreeOption func(*Tree)

// Ordered makes nodes added to the tree preserve the insertion order of their children
func Ordered(ordered bool) TreeOption {
	return func(t *Tree) {
		t.ordered = ordered
	}
}

// Logger for the staged tree
func Logger(l *zap.Logger) TreeOption {
	return func(t *Tree) {
		if l != nil {
			t.l = l
		}
	}
}
