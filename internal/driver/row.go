package driver

// Row is an ordered sequence of key/value slots. Select and BindRow write
// column names into the keys; GetRow writes cell values.
type Row struct {
	keys   []string
	values []string
}

// NewRow returns an empty row template.
func NewRow() *Row {
	return &Row{}
}

// Size is the number of slots.
func (r *Row) Size() int {
	return len(r.keys)
}

// Put appends a slot with an empty value and returns its index.
func (r *Row) Put(key string) int {
	r.keys = append(r.keys, key)
	r.values = append(r.values, "")
	return len(r.keys) - 1
}

// PutValue sets the value of slot i.
func (r *Row) PutValue(i int, value string) {
	r.values[i] = value
}

// Truncate drops every slot from index n on.
func (r *Row) Truncate(n int) {
	if n < len(r.keys) {
		r.keys = r.keys[:n]
		r.values = r.values[:n]
	}
}

// Key returns the key of slot i.
func (r *Row) Key(i int) string {
	return r.keys[i]
}

// Value returns the value of slot i.
func (r *Row) Value(i int) string {
	return r.values[i]
}

// Get returns the value of the first slot named key.
func (r *Row) Get(key string) (string, bool) {
	for i, k := range r.keys {
		if k == key {
			return r.values[i], true
		}
	}
	return "", false
}

// Keys returns a copy of the keys in slot order.
func (r *Row) Keys() []string {
	return append([]string(nil), r.keys...)
}

// Values returns the values in slot order. The slice aliases the row.
func (r *Row) Values() []string {
	return r.values
}
