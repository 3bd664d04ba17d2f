// Package listindex is an unindexed list of entries answering the same
// queries as the B+ tree by scanning everything. It has no cost model and
// serves as the reference the tree is checked against.
package listindex

import (
	"cmp"
	"slices"

	"github.com/btree-query-bench/bptsim/dbms/index"
)

var _ index.Index = (*ListIndex)(nil)

type Data struct {
	Key int64
	Val int64
}

type ListIndex struct {
	Data []Data
}

func compareData(a, b Data) int {
	if c := cmp.Compare(a.Key, b.Key); c != 0 {
		return c
	}
	return cmp.Compare(a.Val, b.Val)
}

func NewListIndex() *ListIndex {
	return &ListIndex{
		Data: make([]Data, 0),
	}
}

func (l *ListIndex) Insert(key, value int64) {
	l.Data = append(l.Data, Data{Key: key, Val: value})
}

func (l *ListIndex) Len() int { return len(l.Data) }

// Search returns the smallest value stored under key.
func (l *ListIndex) Search(key int64) (int64, bool) {
	found := false
	var best int64
	for _, d := range l.Data {
		if d.Key == key && (!found || d.Val < best) {
			best, found = d.Val, true
		}
	}
	return best, found
}

// Values returns every value stored under key, smallest first.
func (l *ListIndex) Values(key int64) []int64 {
	return l.collect(func(k int64) bool { return k == key })
}

func (l *ListIndex) SearchLessThan(threshold int64) []int64 {
	return l.collect(func(k int64) bool { return k < threshold })
}

func (l *ListIndex) SearchGreaterThan(threshold int64) []int64 {
	return l.collect(func(k int64) bool { return k > threshold })
}

// collect returns the values of matching entries ordered by (key, value).
func (l *ListIndex) collect(match func(int64) bool) []int64 {
	var hits []Data
	for _, d := range l.Data {
		if match(d.Key) {
			hits = append(hits, d)
		}
	}
	slices.SortFunc(hits, compareData)
	vals := make([]int64, len(hits))
	for i, d := range hits {
		vals[i] = d.Val
	}
	return vals
}

func (l *ListIndex) Range(start, end int64) index.Iterator {
	data := slices.Clone(l.Data)
	slices.SortFunc(data, compareData)
	return &ListIterator{
		data:  data,
		cur:   -1,
		start: start,
		end:   end,
	}
}

type ListIterator struct {
	data  []Data
	cur   int
	start int64
	end   int64
}

func (it *ListIterator) Next() bool {
	it.cur++
	for it.cur < len(it.data) {
		if it.data[it.cur].Key >= it.start && it.data[it.cur].Key <= it.end {
			return true
		}
		it.cur++
	}
	return false
}

func (it *ListIterator) Key() int64   { return it.data[it.cur].Key }
func (it *ListIterator) Value() int64 { return it.data[it.cur].Val }
func (it *ListIterator) Close() error { return nil }
