package memory

// overlay buffers the writes of one Update over a committed table.
// Readers outside the transaction only ever see base.
type overlay[K comparable, V any] struct {
	base    map[K]V
	writes  map[K]V
	deletes map[K]struct{}
}

func newOverlay[K comparable, V any](base map[K]V) *overlay[K, V] {
	return &overlay[K, V]{base: base}
}

func (o *overlay[K, V]) get(k K) (V, bool) {
	if _, gone := o.deletes[k]; gone {
		var zero V
		return zero, false
	}
	if v, ok := o.writes[k]; ok {
		return v, true
	}
	v, ok := o.base[k]
	return v, ok
}

func (o *overlay[K, V]) put(k K, v V) {
	if o.writes == nil {
		o.writes = make(map[K]V)
	}
	delete(o.deletes, k)
	o.writes[k] = v
}

func (o *overlay[K, V]) del(k K) {
	if o.deletes == nil {
		o.deletes = make(map[K]struct{})
	}
	delete(o.writes, k)
	o.deletes[k] = struct{}{}
}

// each visits the merged view in no particular order.
func (o *overlay[K, V]) each(fn func(K, V)) {
	for k, v := range o.base {
		if _, gone := o.deletes[k]; gone {
			continue
		}
		if _, shadowed := o.writes[k]; shadowed {
			continue
		}
		fn(k, v)
	}
	for k, v := range o.writes {
		fn(k, v)
	}
}

func (o *overlay[K, V]) len() int {
	n := 0
	o.each(func(K, V) { n++ })
	return n
}

// commit folds the write set into base. Callers hold the store's write lock.
func (o *overlay[K, V]) commit() {
	for k := range o.deletes {
		delete(o.base, k)
	}
	for k, v := range o.writes {
		o.base[k] = v
	}
	o.writes, o.deletes = nil, nil
}
