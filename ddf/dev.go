package ddf

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ardnew/softchar/pkg"
)

// Dev is a device node handed to a driver by the host.
type Dev struct {
	name   string
	handle uuid.UUID
	host   *Host

	data  any
	funs  []*Fun
	mutex sync.Mutex
}

// Name returns the device name.
func (d *Dev) Name() string { return d.name }

// Handle returns the unique handle assigned when the device arrived.
func (d *Dev) Handle() uuid.UUID { return d.handle }

// DataAlloc allocates the driver's soft state for dev. It fails with
// pkg.ErrBusy if soft state was already allocated.
func DataAlloc[T any](dev *Dev) (*T, error) {
	dev.mutex.Lock()
	defer dev.mutex.Unlock()

	if dev.data != nil {
		return nil, fmt.Errorf("device %s soft state: %w", dev.name, pkg.ErrBusy)
	}
	v := new(T)
	dev.data = v
	return v, nil
}

// Data returns the soft state previously allocated with DataAlloc, or nil.
func (d *Dev) Data() any {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.data
}

// CreateFun creates an unbound function node named name on the device.
func (d *Dev) CreateFun(typ FunType, name string) (*Fun, error) {
	if name == "" || strings.Contains(name, "/") {
		return nil, fmt.Errorf("function name %q: %w", name, pkg.ErrInvalidParameter)
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()

	for _, f := range d.funs {
		if f.name == name {
			return nil, fmt.Errorf("function %s/%s: %w", d.name, name, pkg.ErrBusy)
		}
	}
	fun := &Fun{dev: d, typ: typ, name: name}
	d.funs = append(d.funs, fun)
	pkg.LogDebug(pkg.ComponentDevice, "function created", "device", d.name, "function", name, "type", typ)
	return fun, nil
}

// Funs returns the functions currently created on the device.
func (d *Dev) Funs() []*Fun {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return append([]*Fun(nil), d.funs...)
}

// forget drops fun from the device's function list.
func (d *Dev) forget(fun *Fun) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	for i, f := range d.funs {
		if f == fun {
			d.funs = append(d.funs[:i], d.funs[i+1:]...)
			return
		}
	}
}

// destroyFuns unbinds and destroys every function left on the device.
func (d *Dev) destroyFuns() {
	for _, fun := range d.Funs() {
		fun.Unbind()
		fun.Destroy()
	}
}
