package btree

// writerCtx bundles everything the chunk flushers need to turn pending
// entries into a freshly appended node: the file to append to, the
// threshold for this level, and the reduce/rereduce callbacks. Modify and
// Purge each build one of these and share it across every level of the
// recursion.
type writerCtx struct {
	tf       TreeFile
	cmp      CompareFunc
	kv       int
	kp       int
	reduce   ReduceFunc
	rereduce RereduceFunc

	// onFlush, if set, is told the byte size of every node actually
	// appended to tf. Caller-side instrumentation hook; nil is a no-op.
	onFlush func(nodeBytes int)

	// durable backs every key and reduce value that escapes into an
	// emitted KPEntry, so it outlives the transient, per-node arena a
	// decoded source node's entries borrow from (see processSubtree).
	durable *Arena
}

// kvFlusher accumulates KVEntry values for one leaf level, flushing a new
// leaf node every time the pending buffer would exceed the threshold.
type kvFlusher struct {
	wc      *writerCtx
	pending []KVEntry
	size    int // running serialized size, including the 1-byte tag
	out     []KPEntry
}

func newKVFlusher(wc *writerCtx) *kvFlusher {
	return &kvFlusher{wc: wc, size: 1}
}

func (f *kvFlusher) add(e KVEntry) error {
	es := entrySize(len(e.Key), len(e.Value))
	if len(f.pending) > 0 && f.size+es > f.wc.kv {
		if err := f.flush(); err != nil {
			return err
		}
	}
	f.pending = append(f.pending, e)
	f.size += es
	return nil
}

func (f *kvFlusher) flush() error {
	if len(f.pending) == 0 {
		return nil
	}
	buf, err := EncodeLeaf(f.pending)
	if err != nil {
		return &CorruptionError{Err: err}
	}
	offset, err := f.wc.tf.AppendChunk(buf)
	if err != nil {
		return &IOError{Err: err}
	}
	if f.wc.onFlush != nil {
		f.wc.onFlush(len(buf))
	}
	reduceBuf := make([]byte, MaxReduceSize)
	n := 0
	if f.wc.reduce != nil {
		n, err = f.wc.reduce(reduceBuf, f.pending)
		if err != nil {
			return &CallbackError{Err: err}
		}
		if n > MaxReduceSize {
			return &CorruptionError{Err: errReduceTooLarge}
		}
	}
	last := f.wc.durable.Dup(f.pending[len(f.pending)-1].Key)
	ptr := Pointer{Offset: offset, SubtreeSize: int64(len(buf)), Reduce: f.wc.durable.Dup(reduceBuf[:n])}
	f.out = append(f.out, KPEntry{Key: last, Ptr: ptr})
	f.pending = f.pending[:0]
	f.size = 1
	return nil
}

func (f *kvFlusher) finish() ([]KPEntry, error) {
	if err := f.flush(); err != nil {
		return nil, err
	}
	return f.out, nil
}

// kpFlusher accumulates KPEntry children for one interior level, flushing
// a new interior node every time the pending buffer would exceed the
// threshold. It is also used, unparameterized by any particular level, to
// promote a flat list of pointers into parent levels until exactly one
// pointer remains.
type kpFlusher struct {
	wc      *writerCtx
	pending []KPEntry
	size    int
	out     []KPEntry
}

func newKPFlusher(wc *writerCtx) *kpFlusher {
	return &kpFlusher{wc: wc, size: 1}
}

func (f *kpFlusher) add(e KPEntry) error {
	es := kpEntrySize(len(e.Key), e.Ptr)
	if len(f.pending) > 0 && f.size+es > f.wc.kp {
		if err := f.flush(); err != nil {
			return err
		}
	}
	f.pending = append(f.pending, e)
	f.size += es
	return nil
}

func (f *kpFlusher) flush() error {
	if len(f.pending) == 0 {
		return nil
	}
	buf, err := EncodeInterior(f.pending)
	if err != nil {
		return &CorruptionError{Err: err}
	}
	offset, err := f.wc.tf.AppendChunk(buf)
	if err != nil {
		return &IOError{Err: err}
	}
	if f.wc.onFlush != nil {
		f.wc.onFlush(len(buf))
	}
	reduceBuf := make([]byte, MaxReduceSize)
	n := 0
	if f.wc.rereduce != nil {
		values := make([][]byte, len(f.pending))
		for i, c := range f.pending {
			values[i] = c.Ptr.Reduce
		}
		n, err = f.wc.rereduce(reduceBuf, values)
		if err != nil {
			return &CallbackError{Err: err}
		}
		if n > MaxReduceSize {
			return &CorruptionError{Err: errReduceTooLarge}
		}
	}
	subtreeSize := int64(len(buf))
	for _, c := range f.pending {
		subtreeSize += c.Ptr.SubtreeSize
	}
	last := f.wc.durable.Dup(f.pending[len(f.pending)-1].Key)
	ptr := Pointer{Offset: offset, SubtreeSize: subtreeSize, Reduce: f.wc.durable.Dup(reduceBuf[:n])}
	f.out = append(f.out, KPEntry{Key: last, Ptr: ptr})
	f.pending = f.pending[:0]
	f.size = 1
	return nil
}

func (f *kpFlusher) finish() ([]KPEntry, error) {
	if err := f.flush(); err != nil {
		return nil, err
	}
	return f.out, nil
}

// promote repeatedly groups a flat list of pointers into parent levels,
// using the interior-node threshold, until exactly one pointer remains (or
// the list was empty to begin with).
func promote(wc *writerCtx, children []KPEntry) ([]KPEntry, error) {
	for len(children) > 1 {
		f := newKPFlusher(wc)
		for _, c := range children {
			if err := f.add(c); err != nil {
				return nil, err
			}
		}
		var err error
		children, err = f.finish()
		if err != nil {
			return nil, err
		}
	}
	return children, nil
}
