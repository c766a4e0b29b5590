package driver

import (
	"context"
	"fmt"

	"github.com/ardnew/softchar/chardev"
	"github.com/ardnew/softchar/ddf"
	"github.com/ardnew/softchar/feed"
	"github.com/ardnew/softchar/ipc"
	"github.com/ardnew/softchar/pkg"
)

const (
	// Name is the driver name.
	Name = "nstest"

	// FunName is the exposed function created on each device.
	FunName = "a"

	DefaultBufferSize = 4096
	DefaultCategory   = ddf.DefaultCategory
)

// DeviceConfig overrides driver settings for one device.
type DeviceConfig struct {
	BufferSize int
	Category   string
}

// Config holds driver settings. Zero values select the defaults.
type Config struct {
	BufferSize int
	Category   string

	// Devices holds per-device overrides keyed by device name.
	Devices map[string]DeviceConfig
}

// settings resolves the buffer size and category for the named device.
func (c Config) settings(name string) (size int, category string) {
	size, category = c.BufferSize, c.Category
	if dc, ok := c.Devices[name]; ok {
		if dc.BufferSize != 0 {
			size = dc.BufferSize
		}
		if dc.Category != "" {
			category = dc.Category
		}
	}
	if size == 0 {
		size = DefaultBufferSize
	}
	if category == "" {
		category = DefaultCategory
	}
	return size, category
}

// state is the per-device soft state.
type state struct {
	fun     *ddf.Fun
	core    *chardev.Core
	service *chardev.Service
}

// Driver implements ddf.Driver.
type Driver struct {
	cfg Config
}

// Compile-time interface check
var _ ddf.Driver = (*Driver)(nil)

// New creates a driver.
func New(cfg Config) *Driver {
	return &Driver{cfg: cfg}
}

// Name returns the driver name.
func (d *Driver) Name() string { return Name }

// DevAdd attaches a character device to dev. On failure everything bound
// so far is undone before returning.
func (d *Driver) DevAdd(dev *ddf.Dev) (err error) {
	var (
		fun   *ddf.Fun
		bound bool
	)

	pkg.LogDebug(pkg.ComponentDriver, "dev_add",
		"device", dev.Name(),
		"handle", dev.Handle())

	defer func() {
		if err == nil {
			return
		}
		if bound {
			fun.Unbind()
		}
		if fun != nil {
			fun.Destroy()
		}
	}()

	st, err := ddf.DataAlloc[state](dev)
	if err != nil {
		return fmt.Errorf("allocate soft state: %w", err)
	}

	size, category := d.cfg.settings(dev.Name())
	st.core, err = chardev.NewCore(size)
	if err != nil {
		return err
	}
	st.service = chardev.NewService(st.core)

	fun, err = dev.CreateFun(ddf.FunExposed, FunName)
	if err != nil {
		pkg.LogError(pkg.ComponentDriver, "failed creating function", "device", dev.Name(), "error", err)
		return err
	}
	st.fun = fun

	fun.SetConnHandler(func(ctx context.Context, fun *ddf.Fun, stream *ipc.Stream) {
		if err := chardev.Conn(ctx, stream, st.service); err != nil {
			pkg.LogDebug(pkg.ComponentDriver, "connection ended",
				"function", fun.Path(),
				"error", err)
		}
	})

	if err = fun.Bind(); err != nil {
		pkg.LogError(pkg.ComponentDriver, "failed binding function", "function", fun.Path(), "error", err)
		return err
	}
	bound = true

	if err = fun.AddToCategory(category); err != nil {
		pkg.LogError(pkg.ComponentDriver, "error adding function to category",
			"function", fun.Path(),
			"category", category,
			"error", err)
		return err
	}

	pkg.LogInfo(pkg.ComponentDriver, "device successfully initialized",
		"device", dev.Name(),
		"category", category,
		"buffer", size)
	return nil
}

// DevRemove detaches the character device from dev. Blocked readers
// return end-of-device.
func (d *Driver) DevRemove(dev *ddf.Dev) error {
	st, ok := dev.Data().(*state)
	if !ok || st.core == nil {
		return fmt.Errorf("device %s: %w", dev.Name(), pkg.ErrInvalidState)
	}

	st.core.MarkRemoved()
	if st.fun != nil {
		st.fun.Unbind()
		st.fun.Destroy()
	}

	stats := st.core.Stats()
	pkg.LogInfo(pkg.ComponentDriver, "device removed",
		"device", dev.Name(),
		"accepted", stats.Accepted,
		"rejected", stats.Rejected,
		"delivered", stats.Delivered,
		"sessions", st.service.Sessions())
	return nil
}

// Core returns the character device core attached to dev.
func Core(dev *ddf.Dev) (*chardev.Core, error) {
	st, ok := dev.Data().(*state)
	if !ok || st.core == nil {
		return nil, fmt.Errorf("device %s: %w", dev.Name(), pkg.ErrNoDevice)
	}
	return st.core, nil
}

// Feeder returns the producer port of dev, the place where incoming
// bytes are pushed.
func Feeder(dev *ddf.Dev) (feed.Sink, error) {
	core, err := Core(dev)
	if err != nil {
		return nil, err
	}
	return core, nil
}
