package index

// Index is the query surface shared by the simulated B+ tree and the
// reference list index.
type Index interface {
	Insert(key, value int64)
	Search(key int64) (int64, bool)
	SearchLessThan(threshold int64) []int64
	SearchGreaterThan(threshold int64) []int64
	Range(start, end int64) Iterator
	Len() int
}

// Iterator allows scanning over a range of key-value pairs.
type Iterator interface {
	Next() bool
	Key() int64
	Value() int64
	Close() error
}

// Collect drains it and returns the values in iteration order.
func Collect(it Iterator) ([]int64, error) {
	var vals []int64
	for it.Next() {
		vals = append(vals, it.Value())
	}
	return vals, it.Close()
}
