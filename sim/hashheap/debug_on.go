//go:build debugheap

package hashheap

// Built with -tags debugheap, every mutation validates the heap and its
// handle map and panics on the first inconsistency.
const debug = true
