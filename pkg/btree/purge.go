package btree

// PurgeDecision is what a purge policy callback returns for one node or
// entry.
type PurgeDecision int

const (
	// PurgeStop aborts the traversal; the root built so far is returned as
	// if it were complete. Not an error.
	PurgeStop PurgeDecision = iota
	// PurgeKeep reuses a whole subtree verbatim (copy-on-write reuse).
	PurgeKeep
	// PurgeItem drops the subtree or entry entirely.
	PurgeItem
	// PurgePartial (KP only) descends and decides per child/entry.
	PurgePartial
)

// PurgeKPCallback decides the fate of one interior pointer before it is
// read. Returning an error aborts the operation.
type PurgeKPCallback func(ptr Pointer, ctx any) (PurgeDecision, error)

// PurgeKVCallback decides the fate of one leaf entry. PurgePartial is not a
// meaningful response and is treated as PurgeKeep.
type PurgeKVCallback func(key, value []byte, ctx any) (PurgeDecision, error)

// PurgeOptions configures a single Purge call.
type PurgeOptions struct {
	Compare          CompareFunc
	KVChunkThreshold int
	KPChunkThreshold int
	Reduce           ReduceFunc
	Rereduce         RereduceFunc
	PurgeKP          PurgeKPCallback
	PurgeKV          PurgeKVCallback
	Ctx              any
	Compacting       bool

	// OnFlush, if set, is invoked once per node actually appended to tf,
	// mirroring ModifyOptions.OnFlush.
	OnFlush func(nodeBytes int)
}

// Purge walks root under the guidance of opts.PurgeKP/PurgeKV. Every node it
// descends into (the root, and any child answered with PurgePartial) is
// written anew, even when all of its entries are kept; only a child pointer
// answered with PurgeKeep is reused without being rewritten. The root
// itself is never offered to PurgeKP. A PurgeStop return from either
// callback unwinds the traversal and yields a well-formed partial root
// instead of an error.
func Purge(tf TreeFile, root *Pointer, opts PurgeOptions) (*Pointer, error) {
	if root == nil {
		return nil, nil
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
	p := &purgeState{wc: wc, opts: opts}

	node, reset, err := p.decodeNode(root.Offset)
	if err != nil {
		return nil, err
	}

	var children []KPEntry
	if node.Kind == KindKV {
		children, _, err = p.purgeLeaf(node.Entries)
	} else {
		children, _, err = p.purgeInterior(node.Children)
	}
	reset()
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

type purgeState struct {
	wc   *writerCtx
	opts PurgeOptions
}

// decodeNode reads and decodes the node at offset. The decoded entries
// borrow from a transient arena scoped to the caller's use of this one
// node; the caller must invoke the returned reset func only after it is
// done reading node.Entries/node.Children (anything worth keeping longer
// must already have been copied into wc.durable by then, e.g. by a
// flush).
func (p *purgeState) decodeNode(offset int64) (*Node, func(), error) {
	raw, err := p.wc.tf.ReadChunk(offset)
	if err != nil {
		return nil, nil, &IOError{Err: err}
	}
	transient := NewArena(len(raw))
	dup, err := transient.SafeDup(raw)
	if err != nil {
		return nil, nil, err
	}
	node, err := Decode(dup)
	if err != nil {
		return nil, nil, err
	}
	return node, transient.Reset, nil
}

func (p *purgeState) purgeLeaf(entries []KVEntry) ([]KPEntry, bool, error) {
	f := newKVFlusher(p.wc)
	for _, e := range entries {
		decision := PurgeKeep
		if p.opts.PurgeKV != nil {
			d, err := p.opts.PurgeKV(e.Key, e.Value, p.opts.Ctx)
			if err != nil {
				return nil, false, &CallbackError{Err: err}
			}
			decision = d
		}
		switch decision {
		case PurgeStop:
			out, err := f.finish()
			return out, true, err
		case PurgeItem:
			continue
		default: // PurgeKeep and the meaningless-for-KV PurgePartial both keep
			if err := f.add(e); err != nil {
				return nil, false, err
			}
		}
	}
	out, err := f.finish()
	return out, false, err
}

func (p *purgeState) purgeInterior(children []KPEntry) ([]KPEntry, bool, error) {
	f := newKPFlusher(p.wc)
	for _, child := range children {
		decision := PurgePartial
		if p.opts.PurgeKP != nil {
			d, err := p.opts.PurgeKP(child.Ptr, p.opts.Ctx)
			if err != nil {
				return nil, false, &CallbackError{Err: err}
			}
			decision = d
		}

		switch decision {
		case PurgeStop:
			out, err := f.finish()
			return out, true, err

		case PurgeItem:
			continue

		case PurgeKeep:
			if err := f.add(child); err != nil {
				return nil, false, err
			}

		default: // PurgePartial
			node, reset, err := p.decodeNode(child.Ptr.Offset)
			if err != nil {
				return nil, false, err
			}

			var newEntries []KPEntry
			var stopped bool
			if node.Kind == KindKV {
				newEntries, stopped, err = p.purgeLeaf(node.Entries)
			} else {
				newEntries, stopped, err = p.purgeInterior(node.Children)
			}
			reset()
			if err != nil {
				return nil, false, err
			}
			for _, e := range newEntries {
				if err := f.add(e); err != nil {
					return nil, false, err
				}
			}
			if stopped {
				out, err := f.finish()
				return out, true, err
			}
		}
	}
	out, err := f.finish()
	return out, false, err
}
