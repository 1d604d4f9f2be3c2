// Package btree implements the copy-on-write, reduce-annotated B+tree
// engine that backs a single vBucket document partition.
//
// The tree lives entirely inside an append-only file accessed through the
// TreeFile interface. Lookup, Modify, and Purge are the three operations a
// caller drives; none of them mutate a node once it has been written. A
// modifying call always produces a new set of nodes and hands back a new
// root Pointer, leaving every reader holding the previous root in a
// consistent, unaffected view of the file.
package btree
