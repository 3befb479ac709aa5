// Package guard provides a lifecycle handle for long-lived objects that are
// shared between background work items.
//
// A Guard couples a reference count with a one-way validity flag. The count
// answers "is a step still executing against this object"; the flag answers
// "is this object still part of the system". Destruction happens once both
// answers are no.
//
// Usage:
//
//	type Device struct {
//	    guard.Guard
//	    ...
//	}
//
//	d := &Device{}
//	d.Init(d.close)
//
//	if !d.AddRef() {
//	    return // invalidated
//	}
//	defer d.Unref()
package guard

import "sync"

// Guard is the reference count and validity flag embedded in a guarded
// object. The zero value is valid with no destroy callback; call Init to
// attach one. A Guard must not be copied after first use.
type Guard struct {
	mu        sync.Mutex
	count     int
	invalid   bool
	destroyed bool
	destroy   func()
}

// Init attaches the destroy callback. It must be called before the object is
// shared with other goroutines.
func (g *Guard) Init(destroy func()) {
	g.mu.Lock()
	g.destroy = destroy
	g.mu.Unlock()
}

// AddRef takes a reference. It returns false without touching the count if
// the object has been invalidated.
func (g *Guard) AddRef() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.invalid {
		return false
	}
	g.count++
	return true
}

// Unref releases a reference taken by AddRef. Releasing the last reference of
// an invalidated object fires the destroy callback.
func (g *Guard) Unref() {
	g.mu.Lock()
	if g.count <= 0 {
		g.mu.Unlock()
		panic("guard: Unref of unreferenced object")
	}
	g.count--
	fire := g.takeDestroyLocked()
	g.mu.Unlock()

	if fire != nil {
		fire()
	}
}

// Invalidate marks the object as removed. It is idempotent. If no references
// are held, the destroy callback runs before Invalidate returns.
func (g *Guard) Invalidate() {
	g.mu.Lock()
	g.invalid = true
	fire := g.takeDestroyLocked()
	g.mu.Unlock()

	if fire != nil {
		fire()
	}
}

// IsValid reports whether the object has not been invalidated.
// It never substitutes for AddRef before a mutation.
func (g *Guard) IsValid() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.invalid
}

// Refs returns the current reference count.
func (g *Guard) Refs() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.count
}

// Destroyed reports whether the destroy callback has fired.
func (g *Guard) Destroyed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.destroyed
}

// Acquire takes a reference and returns a release func that drops it.
// Calling release more than once has no further effect.
func (g *Guard) Acquire() (release func(), ok bool) {
	if !g.AddRef() {
		return func() {}, false
	}
	var once sync.Once
	return func() { once.Do(g.Unref) }, true
}

// takeDestroyLocked returns the destroy callback if it is due, marking it as
// consumed. Callers must hold g.mu and invoke the result after unlocking.
func (g *Guard) takeDestroyLocked() func() {
	if !g.invalid || g.count != 0 || g.destroyed {
		return nil
	}
	g.destroyed = true
	if g.destroy == nil {
		return func() {}
	}
	return g.destroy
}

// Guarded is implemented by any type embedding a Guard.
type Guarded interface {
	AddRef() bool
	Unref()
	Invalidate()
	IsValid() bool
}

var _ Guarded = (*Guard)(nil)
