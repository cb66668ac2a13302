package table

import "math/bits"

const wordBits = 64

// Bitmap selects rows of a table: row i is kept when bit i is set.
type Bitmap struct {
	words []uint64
	n     int
}

// NewBitmap returns an empty mask over n rows.
func NewBitmap(n int) *Bitmap {
	return &Bitmap{words: make([]uint64, (n+wordBits-1)/wordBits), n: n}
}

// FullBitmap returns a mask over n rows with every row selected.
func FullBitmap(n int) *Bitmap {
	m := NewBitmap(n)
	for w := range m.words {
		m.words[w] = ^uint64(0)
	}
	m.clip()
	return m
}

// clip zeroes the unused high bits of the last word so Count stays exact.
func (m *Bitmap) clip() {
	if tail := m.n % wordBits; tail != 0 {
		m.words[len(m.words)-1] &= 1<<tail - 1
	}
}

// Len is the number of rows the mask covers.
func (m *Bitmap) Len() int { return m.n }

// Set selects row i. Out-of-range rows are ignored.
func (m *Bitmap) Set(i int) {
	if i >= 0 && i < m.n {
		m.words[i/wordBits] |= 1 << (i % wordBits)
	}
}

// Unset deselects row i. Out-of-range rows are ignored.
func (m *Bitmap) Unset(i int) {
	if i >= 0 && i < m.n {
		m.words[i/wordBits] &^= 1 << (i % wordBits)
	}
}

// Has reports whether row i is selected.
func (m *Bitmap) Has(i int) bool {
	return i >= 0 && i < m.n && m.words[i/wordBits]&(1<<(i%wordBits)) != 0
}

// Count returns the number of selected rows.
func (m *Bitmap) Count() int {
	n := 0
	for _, w := range m.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// Indices returns the selected rows in ascending order.
func (m *Bitmap) Indices() []int {
	rows := make([]int, 0, m.Count())
	for wi, w := range m.words {
		for ; w != 0; w &= w - 1 {
			rows = append(rows, wi*wordBits+bits.TrailingZeros64(w))
		}
	}
	return rows
}

// And keeps rows selected in both masks. The result covers the shorter one.
func (m *Bitmap) And(o *Bitmap) *Bitmap {
	out := NewBitmap(min(m.n, o.n))
	for w := range out.words {
		out.words[w] = m.words[w] & o.words[w]
	}
	out.clip()
	return out
}

// Or keeps rows selected in either mask. The result covers the longer one.
func (m *Bitmap) Or(o *Bitmap) *Bitmap {
	out := NewBitmap(max(m.n, o.n))
	copy(out.words, m.words)
	for w, v := range o.words {
		out.words[w] |= v
	}
	return out
}

// Not inverts the selection.
func (m *Bitmap) Not() *Bitmap {
	out := NewBitmap(m.n)
	for w, v := range m.words {
		out.words[w] = ^v
	}
	out.clip()
	return out
}
