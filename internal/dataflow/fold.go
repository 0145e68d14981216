package dataflow

// Fold evaluates combine bottom-up over the tree rooted at root using an
// explicit stack, so arbitrarily deep trees do not grow the goroutine stack.
// children selects the sub-expressions folded for each node; combine receives
// their results in the same order.
func Fold[T any](root Node, children func(Node) []Node, combine func(Node, []T) (T, error)) (T, error) {
	type frame struct {
		node Node
		kids []Node
		next int
		vals []T
	}
	var zero T
	stack := []*frame{{node: root, kids: children(root)}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if top.next < len(top.kids) {
			child := top.kids[top.next]
			top.next++
			stack = append(stack, &frame{node: child, kids: children(child)})
			continue
		}
		v, err := combine(top.node, top.vals)
		if err != nil {
			return zero, err
		}
		stack = stack[:len(stack)-1]
		if len(stack) == 0 {
			return v, nil
		}
		parent := stack[len(stack)-1]
		parent.vals = append(parent.vals, v)
	}
	return zero, nil
}

// Rewrite rebuilds the tree bottom-up. fn is called on every node after its
// children have been rewritten and returns the replacement.
func Rewrite(root Node, fn func(Node) (Node, error)) (Node, error) {
	if root == nil {
		return nil, nil
	}
	return Fold(root, Children, func(n Node, kids []Node) (Node, error) {
		return fn(WithChildren(n, kids))
	})
}

// WithChildren returns a copy of n whose non-nil sub-expressions are replaced,
// in Children order, by kids. Leaves are returned unchanged.
func WithChildren(n Node, kids []Node) Node {
	i := 0
	next := func(old Node) Node {
		if old == nil {
			return nil
		}
		k := kids[i]
		i++
		return k
	}
	switch n := n.(type) {
	case *Operator:
		cs := make([]Node, len(n.Children))
		for j, c := range n.Children {
			cs[j] = next(c)
		}
		return &Operator{Op: n.Op, Children: cs}
	case *Branch:
		return &Branch{Cond: next(n.Cond), True: next(n.True), False: next(n.False)}
	case *Partselect:
		return &Partselect{Var: next(n.Var), MSB: next(n.MSB), LSB: next(n.LSB)}
	case *Pointer:
		return &Pointer{Var: next(n.Var), Ptr: next(n.Ptr)}
	case *Concat:
		cs := make([]Node, len(n.Children))
		for j, c := range n.Children {
			cs[j] = next(c)
		}
		return &Concat{Children: cs}
	}
	return n
}
