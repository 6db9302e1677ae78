/*
Package lru provides an index that tracks the recency of use of a bounded set of
identifiers. It only tracks identifiers, not values; callers keep their own
table of values and drop the value for any identifier the index evicts.

All operations except Keys run in constant time. Nodes are stored in a slice and
linked to each other by their position in the slice rather than by pointer, and
a map gives direct access from an identifier to its node.
*/
package lru
