package btree

// FetchCallback is invoked, in ascending tree order, for every key that
// Lookup resolves: an exact match in fetch mode, or every entry inside the
// fold range in fold mode.
type FetchCallback func(key, value []byte) error

// NodeCallback is invoked just before Lookup descends into a child
// pointer, letting a caller answer range-count style queries (subtree size,
// reduce value) without visiting leaves.
type NodeCallback func(ptr Pointer) error

// LookupOptions configures a single Lookup call.
type LookupOptions struct {
	Compare CompareFunc

	// TolerateCorruption, if set, skips a subtree whose node fails to
	// decode instead of aborting the whole call.
	TolerateCorruption bool

	// Fold switches to range mode: keys[0] is an inclusive lower bound and,
	// if len(keys) > 1, keys[1] is an inclusive upper bound.
	Fold bool

	Fetch FetchCallback
	Node  NodeCallback
}

// Lookup descends from root and resolves keys (which must already be
// sorted) against fetch or fold semantics depending on opts.Fold. A nil
// root (empty tree) or an empty keys batch is a no-op.
func Lookup(tf TreeFile, root *Pointer, keys [][]byte, opts LookupOptions) error {
	if len(keys) == 0 || root == nil {
		return nil
	}
	l := &lookupState{
		tf:    tf,
		cmp:   defaultCompare(opts.Compare),
		opts:  opts,
		arena: NewArena(defaultArenaChunk),
	}
	defer l.arena.Reset()

	if opts.Fold {
		low := keys[0]
		var high []byte
		if len(keys) > 1 {
			high = keys[1]
		}
		return l.descendFold(*root, low, high)
	}
	return l.descendFetch(*root, keys)
}

type lookupState struct {
	tf    TreeFile
	cmp   CompareFunc
	opts  LookupOptions
	arena *Arena
}

// readNode decodes the node at ptr with its entries borrowed from the
// lookup's single arena, which is only released once the whole call
// returns (see Lookup's defer). Callbacks may run well after sibling
// nodes have been read, so nothing decoded during one Lookup call may be
// reclaimed before any of it is.
func (l *lookupState) readNode(ptr Pointer) (*Node, error) {
	raw, err := l.tf.ReadChunk(ptr.Offset)
	if err != nil {
		return nil, &IOError{Err: err}
	}
	dup, err := l.arena.SafeDup(raw)
	if err != nil {
		return nil, err
	}
	return Decode(dup)
}

// descendFetch resolves each key in keys (sorted, possibly a subslice of
// the caller's batch) against the subtree rooted at ptr.
func (l *lookupState) descendFetch(ptr Pointer, keys [][]byte) error {
	node, err := l.readNode(ptr)
	if err != nil {
		if isCorruption(err) && l.opts.TolerateCorruption {
			return nil
		}
		return err
	}

	switch node.Kind {
	case KindKV:
		qi := 0
		for ni := 0; ni < len(node.Entries) && qi < len(keys); {
			c := l.cmp(node.Entries[ni].Key, keys[qi])
			switch {
			case c < 0:
				ni++
			case c == 0:
				if l.opts.Fetch != nil {
					if err := l.opts.Fetch(node.Entries[ni].Key, node.Entries[ni].Value); err != nil {
						return &CallbackError{Err: err}
					}
				}
				ni++
				qi++
			default:
				qi++
			}
		}
		return nil

	case KindKP:
		idx := 0
		for _, child := range node.Children {
			start := idx
			for idx < len(keys) && l.cmp(keys[idx], child.Key) <= 0 {
				idx++
			}
			if idx == start {
				continue
			}
			if l.opts.Node != nil {
				if err := l.opts.Node(child.Ptr); err != nil {
					return &CallbackError{Err: err}
				}
			}
			if err := l.descendFetch(child.Ptr, keys[start:idx]); err != nil {
				return err
			}
		}
		return nil

	default:
		return &CorruptionError{Err: errUnknownTag}
	}
}

// descendFold emits every entry of the subtree rooted at ptr whose key is
// within [low, high] (high == nil means unbounded above).
func (l *lookupState) descendFold(ptr Pointer, low, high []byte) error {
	node, err := l.readNode(ptr)
	if err != nil {
		if isCorruption(err) && l.opts.TolerateCorruption {
			return nil
		}
		return err
	}

	switch node.Kind {
	case KindKV:
		for _, e := range node.Entries {
			if l.cmp(e.Key, low) < 0 {
				continue
			}
			if high != nil && l.cmp(e.Key, high) > 0 {
				break
			}
			if l.opts.Fetch != nil {
				if err := l.opts.Fetch(e.Key, e.Value); err != nil {
					return &CallbackError{Err: err}
				}
			}
		}
		return nil

	case KindKP:
		for _, child := range node.Children {
			if l.cmp(child.Key, low) < 0 {
				continue
			}
			if l.opts.Node != nil {
				if err := l.opts.Node(child.Ptr); err != nil {
					return &CallbackError{Err: err}
				}
			}
			if err := l.descendFold(child.Ptr, low, high); err != nil {
				return err
			}
			if high != nil && l.cmp(child.Key, high) >= 0 {
				break
			}
		}
		return nil

	default:
		return &CorruptionError{Err: errUnknownTag}
	}
}
