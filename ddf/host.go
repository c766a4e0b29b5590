package ddf

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ardnew/softchar/ipc"
	"github.com/ardnew/softchar/pkg"
)

// DefaultCategory is registered by NewHost unless categories are given.
const DefaultCategory = "serial"

// Driver is implemented by device drivers hosted by the framework.
type Driver interface {
	// Name identifies the driver in logs.
	Name() string

	// DevAdd is called when a device arrives. On failure the driver must
	// undo any partial binding before returning.
	DevAdd(dev *Dev) error

	// DevRemove is called when a device leaves.
	DevRemove(dev *Dev) error
}

// Option configures a Host.
type Option func(*Host)

// WithCategories replaces the set of categories functions may join.
func WithCategories(names ...string) Option {
	return func(h *Host) {
		h.categories = make(map[string][]*Fun, len(names))
		for _, name := range names {
			h.categories[name] = nil
		}
	}
}

// Host is one framework instance: a driver, its devices, and the bound
// functions clients can connect to.
type Host struct {
	driver Driver

	devices    map[string]*Dev
	funs       map[string]*Fun   // bound functions by path
	categories map[string][]*Fun // bound functions by category, in join order

	closed bool
	mutex  sync.RWMutex

	conns sync.WaitGroup
}

// NewHost creates a host.
func NewHost(opts ...Option) *Host {
	h := &Host{
		devices:    make(map[string]*Dev),
		funs:       make(map[string]*Fun),
		categories: map[string][]*Fun{DefaultCategory: nil},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register attaches the driver that will handle device arrivals.
func (h *Host) Register(drv Driver) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.driver != nil {
		return pkg.ErrBusy
	}
	h.driver = drv
	pkg.LogDebug(pkg.ComponentHost, "driver registered", "driver", drv.Name())
	return nil
}

// AddDevice reports the arrival of a device named name and lets the
// registered driver attach to it. If the driver fails, the device is
// dropped and the driver's error is returned.
func (h *Host) AddDevice(ctx context.Context, name string) (*Dev, error) {
	if name == "" || strings.Contains(name, "/") {
		return nil, fmt.Errorf("device name %q: %w", name, pkg.ErrInvalidParameter)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h.mutex.Lock()
	if h.closed {
		h.mutex.Unlock()
		return nil, pkg.ErrNotRunning
	}
	if h.driver == nil {
		h.mutex.Unlock()
		return nil, fmt.Errorf("no driver registered: %w", pkg.ErrInvalidState)
	}
	if _, exists := h.devices[name]; exists {
		h.mutex.Unlock()
		return nil, fmt.Errorf("device %s: %w", name, pkg.ErrBusy)
	}
	dev := &Dev{name: name, handle: uuid.New(), host: h}
	h.devices[name] = dev
	drv := h.driver
	h.mutex.Unlock()

	// The driver calls back into the host to bind functions, so the host
	// lock is not held here.
	if err := drv.DevAdd(dev); err != nil {
		h.mutex.Lock()
		delete(h.devices, name)
		h.mutex.Unlock()
		dev.destroyFuns()
		pkg.LogError(pkg.ComponentHost, "device add failed",
			"device", name,
			"driver", drv.Name(),
			"error", err)
		return nil, fmt.Errorf("add device %s: %w", name, err)
	}
	return dev, nil
}

// RemoveDevice reports that the named device left. The driver's DevRemove
// runs first; any function it left behind is then unbound and destroyed.
func (h *Host) RemoveDevice(name string) error {
	h.mutex.Lock()
	dev, ok := h.devices[name]
	if ok {
		delete(h.devices, name)
	}
	drv := h.driver
	h.mutex.Unlock()

	if !ok {
		return fmt.Errorf("device %s: %w", name, pkg.ErrNoDevice)
	}

	err := drv.DevRemove(dev)
	dev.destroyFuns()
	if err != nil {
		return fmt.Errorf("remove device %s: %w", name, err)
	}
	pkg.LogDebug(pkg.ComponentHost, "device removed", "device", name)
	return nil
}

// Device returns the named device.
func (h *Host) Device(name string) (*Dev, bool) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	dev, ok := h.devices[name]
	return dev, ok
}

// Devices returns the names of all attached devices.
func (h *Host) Devices() []string {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	names := make([]string, 0, len(h.devices))
	for name := range h.devices {
		names = append(names, name)
	}
	return names
}

// Category returns the functions bound in the named category.
func (h *Host) Category(name string) ([]*Fun, error) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	funs, ok := h.categories[name]
	if !ok {
		return nil, fmt.Errorf("category %s: %w", name, pkg.ErrNoCategory)
	}
	return append([]*Fun(nil), funs...), nil
}

// Lookup resolves a bound function by path ("dev/fun") or by category and
// index ("serial/0").
func (h *Host) Lookup(path string) (*Fun, error) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if fun, ok := h.funs[path]; ok {
		return fun, nil
	}
	cat, idx, ok := strings.Cut(path, "/")
	if ok {
		if funs, known := h.categories[cat]; known {
			if i, err := strconv.Atoi(idx); err == nil && i >= 0 && i < len(funs) {
				return funs[i], nil
			}
		}
	}
	return nil, fmt.Errorf("%s: %w", path, pkg.ErrNoDevice)
}

// Serve accepts client connections on l until ctx ends or l fails.
// Each connection is handed to the handler of the function named in its
// handshake. Serve closes l and waits for the handlers before returning.
func (h *Host) Serve(ctx context.Context, l net.Listener) error {
	h.mutex.RLock()
	closed := h.closed
	h.mutex.RUnlock()
	if closed {
		return pkg.ErrNotRunning
	}

	stop := context.AfterFunc(ctx, func() { l.Close() })
	defer stop()
	defer h.conns.Wait()

	pkg.LogInfo(pkg.ComponentHost, "serving", "addr", l.Addr().String())
	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		h.conns.Add(1)
		go func() {
			defer h.conns.Done()
			h.serveConn(ctx, conn)
		}()
	}
}

// serveConn performs the handshake on conn and runs the function handler.
func (h *Host) serveConn(ctx context.Context, conn net.Conn) {
	st := ipc.NewStream(conn)

	// A client that never completes the handshake must not outlive ctx.
	stop := context.AfterFunc(ctx, func() { st.Close() })
	var hello ipc.Connect
	err := st.Recv(&hello)
	if !stop() || err != nil {
		pkg.LogDebug(pkg.ComponentHost, "handshake failed", "error", err)
		st.Close()
		return
	}

	var handler ConnHandler
	fun, err := h.Lookup(hello.Path)
	if err == nil {
		handler, err = fun.connHandler()
	}
	if err != nil {
		st.Send(ipc.ErrorResponse(err))
		st.Close()
		return
	}
	if err := st.Send(ipc.Response{Status: ipc.StatusOK}); err != nil {
		st.Close()
		return
	}

	pkg.LogDebug(pkg.ComponentHost, "client connected",
		"function", fun.Path(),
		"remote", conn.RemoteAddr().String())
	handler(ctx, fun, st)
	st.Close()
}

// Close stops accepting devices and removes every attached device.
func (h *Host) Close() error {
	h.mutex.Lock()
	if h.closed {
		h.mutex.Unlock()
		return nil
	}
	h.closed = true
	names := make([]string, 0, len(h.devices))
	for name := range h.devices {
		names = append(names, name)
	}
	h.mutex.Unlock()

	var errs []error
	for _, name := range names {
		if err := h.RemoveDevice(name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// bind publishes fun under its path.
func (h *Host) bind(fun *Fun) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.closed {
		return pkg.ErrNotRunning
	}
	path := fun.Path()
	if _, exists := h.funs[path]; exists {
		return fmt.Errorf("function %s: %w", path, pkg.ErrBusy)
	}
	h.funs[path] = fun
	return nil
}

// unbind withdraws fun from its path and every category.
func (h *Host) unbind(fun *Fun) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	delete(h.funs, fun.Path())
	for _, cat := range fun.categories {
		funs := h.categories[cat]
		for i, f := range funs {
			if f == fun {
				h.categories[cat] = append(funs[:i:i], funs[i+1:]...)
				break
			}
		}
	}
}

// addToCategory appends fun to the named category.
func (h *Host) addToCategory(fun *Fun, name string) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	funs, ok := h.categories[name]
	if !ok {
		return fmt.Errorf("category %s: %w", name, pkg.ErrNoCategory)
	}
	h.categories[name] = append(funs, fun)
	return nil
}
