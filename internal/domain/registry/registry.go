// Package registry tracks the supervisor's app containers.
//
// Containers live on exactly one of two ordered lists: active holds apps
// that have been started and not yet observed stopped, inactive holds known
// apps that are currently stopped. Lookups are linear; app counts on a
// device are small.
package registry

// Registry holds the active and inactive container lists.
type Registry struct {
	active   []*Container
	inactive []*Container
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{}
}

// ActiveByName returns the active container for the named app.
func (r *Registry) ActiveByName(name string) *Container {
	for _, c := range r.active {
		if c.Name() == name {
			return c
		}
	}
	return nil
}

// InactiveByName returns the inactive container for the named app.
func (r *Registry) InactiveByName(name string) *Container {
	for _, c := range r.inactive {
		if c.Name() == name {
			return c
		}
	}
	return nil
}

// ByName returns the container for the named app from either list.
func (r *Registry) ByName(name string) *Container {
	if c := r.ActiveByName(name); c != nil {
		return c
	}
	return r.InactiveByName(name)
}

// ActiveByPid returns the first active container whose app still claims the
// given top-level process.
func (r *Registry) ActiveByPid(pid int) *Container {
	for _, c := range r.active {
		if c.App.HasTopLevelProc(pid) {
			return c
		}
	}
	return nil
}

// Insert adds a newly created container to the inactive list.
func (r *Registry) Insert(c *Container) {
	c.Active = false
	c.StopHandler = StopHandlerNone
	r.inactive = append(r.inactive, c)
}

// Activate moves the container from the inactive list to the tail of the
// active list.
func (r *Registry) Activate(c *Container) {
	r.inactive = remove(r.inactive, c)
	c.Active = true
	r.active = append(r.active, c)
}

// Deactivate moves the container from the active list to the tail of the
// inactive list and clears its stop handler.
func (r *Registry) Deactivate(c *Container) {
	r.active = remove(r.active, c)
	c.StopHandler = StopHandlerNone
	c.Active = false
	r.inactive = append(r.inactive, c)
}

// RemoveActive detaches the container from the active list without placing
// it on the inactive list. The container is on its way to destruction.
func (r *Registry) RemoveActive(c *Container) {
	r.active = remove(r.active, c)
}

// RemoveInactive detaches the container from the inactive list.
func (r *Registry) RemoveInactive(c *Container) {
	r.inactive = remove(r.inactive, c)
}

// PopInactive removes and returns the head of the inactive list, or nil.
func (r *Registry) PopInactive() *Container {
	if len(r.inactive) == 0 {
		return nil
	}
	c := r.inactive[0]
	r.inactive = r.inactive[1:]
	return c
}

// FirstActive returns the head of the active list, or nil.
func (r *Registry) FirstActive() *Container {
	if len(r.active) == 0 {
		return nil
	}
	return r.active[0]
}

// Active returns the active list in order. The returned slice is shared;
// callers must not mutate it.
func (r *Registry) Active() []*Container {
	return r.active
}

// Inactive returns the inactive list in order. The returned slice is
// shared; callers must not mutate it.
func (r *Registry) Inactive() []*Container {
	return r.inactive
}

// ActiveCount returns the number of active containers.
func (r *Registry) ActiveCount() int {
	return len(r.active)
}

func remove(list []*Container, c *Container) []*Container {
	for i, got := range list {
		if got == c {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
