//go:build linux

package evdev

// Registry tracks the evdev devices currently forwarded to the guest,
// keyed on both their fd (used to dispatch epoll readiness and as the
// wire device id) and their sysname (used to resolve hotplug removal
// events, which only carry a sysfs path).
type Registry struct {
	byFd      map[int]*Handle
	bySysname map[string]int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byFd:      make(map[int]*Handle),
		bySysname: make(map[string]int),
	}
}

// Add inserts a handle, keyed by its fd and sysname. A sysname already
// registered is overwritten rather than rejected: a device node can
// reappear under the same sysname with a new fd (the kernel reused the
// eventN number across an unplug/replug), and the registry tolerates
// that by replacing the stale entry. The caller owns whatever handle
// Add returns, if any, and must close it since the registry no longer
// references it.
func (r *Registry) Add(h *Handle) *Handle {
	var stale *Handle

	if fd, exists := r.bySysname[h.Sysname()]; exists {
		stale = r.byFd[fd]
		delete(r.byFd, fd)
	}

	r.byFd[h.Fd()] = h
	r.bySysname[h.Sysname()] = h.Fd()

	return stale
}

// Remove deletes the handle registered under sysname, returning it and
// true if it was present.
func (r *Registry) Remove(sysname string) (*Handle, bool) {
	fd, ok := r.bySysname[sysname]
	if !ok {
		return nil, false
	}

	h := r.byFd[fd]

	delete(r.byFd, fd)
	delete(r.bySysname, sysname)

	return h, true
}

// Get looks up the handle registered under fd.
func (r *Registry) Get(fd int) (*Handle, bool) {
	h, ok := r.byFd[fd]

	return h, ok
}

// Len returns the number of registered devices.
func (r *Registry) Len() int {
	return len(r.byFd)
}

// All returns every registered handle, in no particular order.
func (r *Registry) All() []*Handle {
	handles := make([]*Handle, 0, len(r.byFd))

	for _, h := range r.byFd {
		handles = append(handles, h)
	}

	return handles
}
