package controlflow

import (
	"sort"
	"strconv"
	"strings"
)

// DefaultMaxLoopDepth bounds the length of the cycles searched for.
const DefaultMaxLoopDepth = 50

// Loop is an elementary cycle of states, rotated to start at its minimum.
type Loop []int64

func (l Loop) String() string {
	parts := make([]string, len(l))
	for i, v := range l {
		parts[i] = strconv.FormatInt(v, 10)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Rotate returns the rotation of path that starts at its smallest state.
func Rotate(path []int64) Loop {
	if len(path) == 0 {
		return nil
	}
	min := 0
	for i, v := range path {
		if v < path[min] {
			min = i
		}
	}
	out := make(Loop, 0, len(path))
	out = append(out, path[min:]...)
	out = append(out, path[:min]...)
	return out
}

// FindLoops enumerates the elementary cycles of f reachable within maxDepth
// steps from any state. Cycles are returned in canonical rotation, sorted.
func FindLoops(f *FSM, maxDepth int) []Loop {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxLoopDepth
	}
	type frame struct {
		state int64
		next  []int64
		pos   int
	}
	seen := make(map[string]bool)
	var loops []Loop
	for _, start := range f.Sources() {
		path := []int64{start}
		onPath := map[int64]bool{start: true}
		stack := []*frame{{state: start, next: f.Next(start)}}
		for len(stack) > 0 {
			top := stack[len(stack)-1]
			if top.pos >= len(top.next) || len(path) > maxDepth {
				stack = stack[:len(stack)-1]
				delete(onPath, path[len(path)-1])
				path = path[:len(path)-1]
				continue
			}
			dst := top.next[top.pos]
			top.pos++
			if dst == start {
				loop := Rotate(path)
				if key := loop.String(); !seen[key] {
					seen[key] = true
					loops = append(loops, loop)
				}
				continue
			}
			if onPath[dst] {
				continue
			}
			path = append(path, dst)
			onPath[dst] = true
			stack = append(stack, &frame{state: dst, next: f.Next(dst)})
		}
	}
	sort.Slice(loops, func(i, j int) bool {
		a, b := loops[i], loops[j]
		for k := 0; k < len(a) && k < len(b); k++ {
			if a[k] != b[k] {
				return a[k] < b[k]
			}
		}
		return len(a) < len(b)
	})
	return loops
}
