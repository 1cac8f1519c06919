package redact

import "sort"

// claimSet tracks claimed byte ranges as a sorted, non-overlapping interval
// list. First-claimed-wins: Claim reports false and inserts nothing when
// any part of [start,end) is already taken.
type claimSet struct {
	ivs []interval
}

type interval struct {
	start, end int
}

// overlaps reports whether [start,end) intersects any claimed interval.
func (c *claimSet) overlaps(start, end int) bool {
	i := sort.Search(len(c.ivs), func(i int) bool { return c.ivs[i].end > start })
	return i < len(c.ivs) && c.ivs[i].start < end
}

// Claim marks [start,end) as taken if it is still free.
func (c *claimSet) Claim(start, end int) bool {
	if c.overlaps(start, end) {
		return false
	}
	i := sort.Search(len(c.ivs), func(i int) bool { return c.ivs[i].start >= start })
	c.ivs = append(c.ivs, interval{})
	copy(c.ivs[i+1:], c.ivs[i:])
	c.ivs[i] = interval{start: start, end: end}
	return true
}
