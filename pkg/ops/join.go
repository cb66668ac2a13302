package ops

import (
	"fmt"

	"github.com/akhildatla/tabular/pkg/table"
)

// JoinKind selects which unmatched rows a join keeps.
type JoinKind string

const (
	Inner JoinKind = "inner"
	Left  JoinKind = "left"
	Right JoinKind = "right"
	Outer JoinKind = "outer"
	Cross JoinKind = "cross"
)

// ParseJoinKind resolves a join kind by name.
func ParseJoinKind(s string) (JoinKind, error) {
	switch k := JoinKind(s); k {
	case Inner, Left, Right, Outer, Cross:
		return k, nil
	case "full":
		return Outer, nil
	}
	return "", fmt.Errorf("%w: unknown join kind %q", ErrInvalidJoin, s)
}

// JoinOptions configures Join.
type JoinOptions struct {
	On  []string
	How JoinKind
	// Suffixes disambiguate non-key columns present on both sides.
	// Defaults to "_x" and "_y".
	Suffixes [2]string
	// NullsEqual lets null keys match each other.
	NullsEqual bool
}

// Join combines two tables on equal key tuples. Key columns appear once,
// taken from whichever side matched.
func Join(left, right *table.Table, opts JoinOptions) (*table.Table, error) {
	how := opts.How
	if how == "" {
		how = Inner
	}
	if opts.Suffixes == [2]string{} {
		opts.Suffixes = [2]string{"_x", "_y"}
	}

	if how == Cross {
		if len(opts.On) > 0 {
			return nil, fmt.Errorf("%w: cross join takes no keys, got %v", ErrInvalidJoin, opts.On)
		}
		return crossJoin(left, right, opts.Suffixes)
	}
	if len(opts.On) == 0 {
		return nil, fmt.Errorf("%w: %s join needs at least one key", ErrInvalidJoin, how)
	}

	leftKeys, err := left.Lookup(opts.On...)
	if err != nil {
		return nil, fmt.Errorf("join left: %w", err)
	}
	rightKeys, err := right.Lookup(opts.On...)
	if err != nil {
		return nil, fmt.Errorf("join right: %w", err)
	}
	for i := range leftKeys {
		if leftKeys[i].Kind() != rightKeys[i].Kind() {
			return nil, fmt.Errorf("%w: key %s is %s on the left and %s on the right",
				ErrInvalidJoin, opts.On[i], leftKeys[i].Kind(), rightKeys[i].Kind())
		}
	}

	var leftIdx, rightIdx []int
	switch how {
	case Inner:
		leftIdx, rightIdx = matchRows(leftKeys, rightKeys, opts.NullsEqual, false)
	case Left:
		leftIdx, rightIdx = matchRows(leftKeys, rightKeys, opts.NullsEqual, true)
	case Right:
		rightIdx, leftIdx = matchRows(rightKeys, leftKeys, opts.NullsEqual, true)
	case Outer:
		leftIdx, rightIdx = matchRows(leftKeys, rightKeys, opts.NullsEqual, true)
		matched := make([]bool, right.NRows())
		for _, j := range rightIdx {
			if j >= 0 {
				matched[j] = true
			}
		}
		for j, ok := range matched {
			if !ok {
				leftIdx = append(leftIdx, -1)
				rightIdx = append(rightIdx, j)
			}
		}
	default:
		return nil, fmt.Errorf("%w: unknown join kind %q", ErrInvalidJoin, how)
	}

	return buildJoinResult(left, right, opts.On, leftIdx, rightIdx, opts.Suffixes)
}

// matchRows probes a hash index of build with every row of probe, in
// probe order. With keepUnmatched an unmatched probe row pairs with -1.
func matchRows(probe, build []*table.Column, nullsEqual, keepUnmatched bool) (probeIdx, buildIdx []int) {
	index := buildJoinIndex(build, nullsEqual)
	n := 0
	if len(probe) > 0 {
		n = probe[0].Len()
	}
	for i := 0; i < n; i++ {
		var matches []int
		if key, ok := joinKey(probe, i, nullsEqual); ok {
			matches = index[key]
		}
		for _, j := range matches {
			probeIdx = append(probeIdx, i)
			buildIdx = append(buildIdx, j)
		}
		if len(matches) == 0 && keepUnmatched {
			probeIdx = append(probeIdx, i)
			buildIdx = append(buildIdx, -1)
		}
	}
	return probeIdx, buildIdx
}

func buildJoinIndex(cols []*table.Column, nullsEqual bool) map[string][]int {
	index := make(map[string][]int)
	if len(cols) == 0 {
		return index
	}
	for i := 0; i < cols[0].Len(); i++ {
		if key, ok := joinKey(cols, i, nullsEqual); ok {
			index[key] = append(index[key], i)
		}
	}
	return index
}

// joinKey returns the hash key of row i, or false when a null key must
// never match.
func joinKey(cols []*table.Column, i int, nullsEqual bool) (string, bool) {
	vals := table.KeyAt(cols, i)
	if !nullsEqual {
		for _, v := range vals {
			if v == nil {
				return "", false
			}
		}
	}
	return table.Key(vals...), true
}

func buildJoinResult(left, right *table.Table, on []string, leftIdx, rightIdx []int, suffixes [2]string) (*table.Table, error) {
	if leftIdx == nil {
		leftIdx, rightIdx = []int{}, []int{}
	}
	isKey := make(map[string]bool, len(on))
	for _, k := range on {
		isKey[k] = true
	}

	var cols []*table.Column
	for _, c := range left.Columns() {
		if !isKey[c.Name()] {
			cols = append(cols, c.Take(leftIdx))
			continue
		}
		rc, _ := right.Column(c.Name())
		cols = append(cols, coalesceKey(c, rc, leftIdx, rightIdx))
	}
	for _, c := range right.Columns() {
		if isKey[c.Name()] {
			continue
		}
		cols = append(cols, c.Take(rightIdx))
	}
	return disambiguate(cols, len(left.Columns()), isKey, suffixes)
}

// coalesceKey gathers a key column from the left side, falling back to
// the right side for rows only the right side contributed.
func coalesceKey(lc, rc *table.Column, leftIdx, rightIdx []int) *table.Column {
	vals := make([]any, len(leftIdx))
	for r := range leftIdx {
		switch {
		case leftIdx[r] >= 0:
			vals[r] = lc.Value(leftIdx[r])
		case rightIdx[r] >= 0:
			vals[r] = rc.Value(rightIdx[r])
		}
	}
	c, _ := table.NewColumn(lc.Name(), lc.Kind(), vals)
	return c
}

func crossJoin(left, right *table.Table, suffixes [2]string) (*table.Table, error) {
	n, m := left.NRows(), right.NRows()
	leftIdx := make([]int, 0, n*m)
	rightIdx := make([]int, 0, n*m)
	for i := 0; i < n; i++ {
		for j := 0; j < m; j++ {
			leftIdx = append(leftIdx, i)
			rightIdx = append(rightIdx, j)
		}
	}
	var cols []*table.Column
	for _, c := range left.Columns() {
		cols = append(cols, c.Take(leftIdx))
	}
	for _, c := range right.Columns() {
		cols = append(cols, c.Take(rightIdx))
	}
	return disambiguate(cols, left.NCols(), nil, suffixes)
}

// disambiguate suffixes non-key names that occur on both sides. The
// first nLeft columns come from the left table.
func disambiguate(cols []*table.Column, nLeft int, isKey map[string]bool, suffixes [2]string) (*table.Table, error) {
	count := make(map[string]int, len(cols))
	for _, c := range cols {
		count[c.Name()]++
	}
	out := make([]*table.Column, len(cols))
	seen := make(map[string]bool, len(cols))
	for i, c := range cols {
		name := c.Name()
		if count[name] > 1 && !isKey[name] {
			if i < nLeft {
				name += suffixes[0]
			} else {
				name += suffixes[1]
			}
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: %s", ErrAmbiguousColumn, name)
		}
		seen[name] = true
		if name != c.Name() {
			c = c.Rename(name)
		}
		out[i] = c
	}
	return table.New(out...)
}
