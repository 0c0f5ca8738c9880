package sim

// Holdable is a resource a process can hold. When a holder finishes or is
// stopped, everything it still holds is dropped through this interface, and
// priority changes of a holder are forwarded to the resource's holder
// registry.
type Holdable interface {
	Name() string
	Guard() *ResourceGuard
	dropHolder(p *Process)
	reprioritizeHolder(p *Process, priority int64)
}

var (
	_ Holdable = (*Resource)(nil)
	_ Holdable = (*ResourcePool)(nil)
)
