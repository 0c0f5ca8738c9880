//go:build !debugheap

package hashheap

const debug = false
