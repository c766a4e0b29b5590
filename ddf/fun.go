package ddf

import (
	"context"
	"fmt"
	"sync"

	"github.com/ardnew/softchar/ipc"
	"github.com/ardnew/softchar/pkg"
)

// FunType distinguishes functions exposed to clients from inner nodes.
type FunType int

const (
	FunInner FunType = iota
	FunExposed
)

// String returns the function type name.
func (t FunType) String() string {
	switch t {
	case FunInner:
		return "inner"
	case FunExposed:
		return "exposed"
	default:
		return "unknown"
	}
}

// ConnHandler serves one client connection to a function. The host closes
// st when the handler returns.
type ConnHandler func(ctx context.Context, fun *Fun, st *ipc.Stream)

// Fun is a function node of a device.
type Fun struct {
	dev  *Dev
	typ  FunType
	name string

	handler    ConnHandler
	bound      bool
	destroyed  bool
	categories []string
	mutex      sync.Mutex
}

// Name returns the function name.
func (f *Fun) Name() string { return f.name }

// Type returns the function type.
func (f *Fun) Type() FunType { return f.typ }

// Dev returns the device the function belongs to.
func (f *Fun) Dev() *Dev { return f.dev }

// Path returns "device/function".
func (f *Fun) Path() string { return f.dev.name + "/" + f.name }

// SetConnHandler sets the handler that serves client connections.
func (f *Fun) SetConnHandler(h ConnHandler) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.handler = h
}

// Bind publishes the function so clients can connect to it.
func (f *Fun) Bind() error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	switch {
	case f.destroyed:
		return fmt.Errorf("bind %s: destroyed: %w", f.Path(), pkg.ErrInvalidState)
	case f.bound:
		return fmt.Errorf("bind %s: already bound: %w", f.Path(), pkg.ErrInvalidState)
	case f.typ == FunExposed && f.handler == nil:
		return fmt.Errorf("bind %s: no connection handler: %w", f.Path(), pkg.ErrInvalidState)
	}
	if err := f.dev.host.bind(f); err != nil {
		return err
	}
	f.bound = true
	pkg.LogDebug(pkg.ComponentHost, "function bound", "function", f.Path(), "type", f.typ)
	return nil
}

// Unbind withdraws the function from clients and from every category.
// Unbinding an unbound function is a no-op.
func (f *Fun) Unbind() error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if !f.bound {
		return nil
	}
	f.dev.host.unbind(f)
	f.bound = false
	f.categories = nil
	return nil
}

// AddToCategory makes a bound function reachable as "category/index".
func (f *Fun) AddToCategory(name string) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if !f.bound {
		return fmt.Errorf("add %s to %s: not bound: %w", f.Path(), name, pkg.ErrInvalidState)
	}
	for _, cat := range f.categories {
		if cat == name {
			return nil
		}
	}
	if err := f.dev.host.addToCategory(f, name); err != nil {
		return err
	}
	f.categories = append(f.categories, name)
	return nil
}

// Categories returns the categories the function has joined.
func (f *Fun) Categories() []string {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return append([]string(nil), f.categories...)
}

// Bound reports whether the function is published.
func (f *Fun) Bound() bool {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.bound
}

// Destroy releases an unbound function. Destroying a bound function
// unbinds it first.
func (f *Fun) Destroy() {
	f.Unbind()

	f.mutex.Lock()
	if f.destroyed {
		f.mutex.Unlock()
		return
	}
	f.destroyed = true
	f.handler = nil
	f.mutex.Unlock()

	f.dev.forget(f)
}

// connHandler returns the handler serving f, or pkg.ErrNoDevice if f is
// not published.
func (f *Fun) connHandler() (ConnHandler, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if !f.bound || f.handler == nil {
		return nil, fmt.Errorf("%s: %w", f.Path(), pkg.ErrNoDevice)
	}
	return f.handler, nil
}
