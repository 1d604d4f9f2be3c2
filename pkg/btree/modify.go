package btree

import "bytes"

// ActionType selects what Modify does with one batch entry.
type ActionType uint8

const (
	ActionInsert ActionType = iota
	ActionRemove
	ActionFetch
)

// Action is one entry of a sorted modify batch. Ties on the same key are
// resolved by input order: later actions in the batch win. A tagged struct
// replaces couchstore's untyped union of "value to insert" vs. "fetch
// callback argument".
type Action struct {
	Type  ActionType
	Key   []byte
	Value []byte // meaningful for ActionInsert
	Arg   any    // meaningful for ActionFetch
}

// ModifyFetchCallback is invoked for every ActionFetch action, in batch
// order, with whatever (value, found) pair is current for that key at the
// moment the action runs, reflecting any INSERT/REMOVE earlier in the same
// batch for the same key, but not later ones.
type ModifyFetchCallback func(key, value []byte, found bool, arg any) error

// ModifyOptions configures a single Modify call.
type ModifyOptions struct {
	Compare          CompareFunc
	KVChunkThreshold int
	KPChunkThreshold int
	Reduce           ReduceFunc
	Rereduce         RereduceFunc
	Fetch            ModifyFetchCallback

	// OnFlush, if set, is invoked once per node actually appended to tf
	// (after the write succeeds) with its serialized byte size. A caller
	// wiring pkg/metrics uses this to feed RecordFlush without the engine
	// itself depending on Prometheus.
	OnFlush func(nodeBytes int)

	// Compacting carries the couchstore compactor hint; the engine never
	// reads it and attaches no semantics to it.
	Compacting bool
}

// Modify applies a sorted action batch to the tree rooted at root (nil for
// an empty tree) in a single left-to-right pass, returning the new root.
// An empty action batch is a guaranteed no-op: it returns root unchanged
// and appends nothing to tf.
func Modify(tf TreeFile, root *Pointer, actions []Action, opts ModifyOptions) (*Pointer, error) {
	if len(actions) == 0 {
		return root, nil
	}
	kv, kp := normalizeThresholds(opts.KVChunkThreshold, opts.KPChunkThreshold)
	wc := &writerCtx{
		tf:       tf,
		cmp:      defaultCompare(opts.Compare),
		kv:       kv,
		kp:       kp,
		reduce:   opts.Reduce,
		rereduce: opts.Rereduce,
		durable:  NewArena(defaultArenaChunk),
		onFlush:  opts.OnFlush,
	}
	m := &modifyState{wc: wc, fetch: opts.Fetch}

	children, err := m.processSubtree(nil, root, actions)
	if err != nil {
		return nil, err
	}
	children, err = promote(wc, children)
	if err != nil {
		return nil, err
	}
	if len(children) == 0 {
		return nil, nil
	}
	return &children[0].Ptr, nil
}

type modifyState struct {
	wc    *writerCtx
	fetch ModifyFetchCallback
}

// processSubtree applies actions (guaranteed non-empty) to the subtree at
// ptr (nil meaning "does not exist yet"), returning the resulting sequence
// of new pointers at this level. origKey is the separator key the caller
// already associates with ptr, used only to reconstruct an unchanged
// KPEntry verbatim when nothing in this subtree actually changed.
func (m *modifyState) processSubtree(origKey []byte, ptr *Pointer, actions []Action) ([]KPEntry, error) {
	var node *Node
	if ptr != nil {
		raw, err := m.wc.tf.ReadChunk(ptr.Offset)
		if err != nil {
			return nil, &IOError{Err: err}
		}
		// The decoded node's entries borrow from a transient, per-call
		// arena scoped to this one subtree: it is released the instant
		// this function returns, once processLeaf/processInterior have
		// already flushed anything worth keeping into wc.durable.
		transient := NewArena(len(raw))
		defer transient.Reset()
		dup, err := transient.SafeDup(raw)
		if err != nil {
			return nil, err
		}
		node, err = Decode(dup)
		if err != nil {
			return nil, err
		}
	} else {
		node = &Node{Kind: KindKV}
	}

	switch node.Kind {
	case KindKV:
		return m.processLeaf(origKey, ptr, node.Entries, actions)
	case KindKP:
		return m.processInterior(origKey, ptr, node.Children, actions)
	default:
		return nil, &CorruptionError{Err: errUnknownTag}
	}
}

func (m *modifyState) processLeaf(origKey []byte, origPtr *Pointer, entries []KVEntry, actions []Action) ([]KPEntry, error) {
	cmp := m.wc.cmp
	f := newKVFlusher(m.wc)
	changed := false

	ei, ai := 0, 0
	for ei < len(entries) || ai < len(actions) {
		var key []byte
		switch {
		case ei >= len(entries):
			key = actions[ai].Key
		case ai >= len(actions):
			key = entries[ei].Key
		case cmp(entries[ei].Key, actions[ai].Key) <= 0:
			key = entries[ei].Key
		default:
			key = actions[ai].Key
		}

		existedBefore := false
		var origVal []byte
		existsNow := false
		var val []byte
		if ei < len(entries) && cmp(entries[ei].Key, key) == 0 {
			existedBefore = true
			existsNow = true
			val = entries[ei].Value
			origVal = entries[ei].Value
			ei++
		}

		for ai < len(actions) && cmp(actions[ai].Key, key) == 0 {
			a := actions[ai]
			switch a.Type {
			case ActionInsert:
				val = a.Value
				existsNow = true
			case ActionRemove:
				val = nil
				existsNow = false
			case ActionFetch:
				if m.fetch != nil {
					if err := m.fetch(key, val, existsNow, a.Arg); err != nil {
						return nil, &CallbackError{Err: err}
					}
				}
			}
			ai++
		}

		if existsNow != existedBefore || (existsNow && !bytes.Equal(val, origVal)) {
			changed = true
		}
		if existsNow {
			if err := f.add(KVEntry{Key: key, Value: val}); err != nil {
				return nil, err
			}
		}
	}

	if !changed {
		if origPtr != nil {
			return []KPEntry{{Key: origKey, Ptr: *origPtr}}, nil
		}
		return nil, nil
	}
	return f.finish()
}

func (m *modifyState) processInterior(origKey []byte, origPtr *Pointer, children []KPEntry, actions []Action) ([]KPEntry, error) {
	cmp := m.wc.cmp
	f := newKPFlusher(m.wc)
	changed := false

	ai := 0
	for ci, child := range children {
		isLast := ci == len(children)-1
		start := ai
		if isLast {
			ai = len(actions)
		} else {
			for ai < len(actions) && cmp(actions[ai].Key, child.Key) <= 0 {
				ai++
			}
		}
		slice := actions[start:ai]
		if len(slice) == 0 {
			if err := f.add(child); err != nil {
				return nil, err
			}
			continue
		}

		newEntries, err := m.processSubtree(child.Key, &child.Ptr, slice)
		if err != nil {
			return nil, err
		}
		if len(newEntries) != 1 || newEntries[0].Ptr.Offset != child.Ptr.Offset || !bytes.Equal(newEntries[0].Key, child.Key) {
			changed = true
		}
		for _, e := range newEntries {
			if err := f.add(e); err != nil {
				return nil, err
			}
		}
	}

	if !changed {
		if origPtr != nil {
			return []KPEntry{{Key: origKey, Ptr: *origPtr}}, nil
		}
		return nil, nil
	}
	return f.finish()
}
