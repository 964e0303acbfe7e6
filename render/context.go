package render

import (
	"log/slog"
	"sync/atomic"

	"github.com/andewx/vkframe/gpu"
)

// Context is the process-wide graphics context. It is created once, shared read-only by
// every window and destroyed after all of them.
type Context struct {
	inst    gpu.Instance
	log     *slog.Logger
	windows atomic.Int32
}

func NewContext(inst gpu.Instance, log *slog.Logger) *Context {
	if log == nil {
		log = slog.Default()
	}
	return &Context{inst: inst, log: log}
}

func (c *Context) Instance() gpu.Instance {
	return c.inst
}

func (c *Context) Logger() *slog.Logger {
	return c.log
}

// Windows returns the number of windows that have not been closed.
func (c *Context) Windows() int {
	return int(c.windows.Load())
}

// Destroy destroys the instance. It fails with ErrWindowsAlive while a window is open.
func (c *Context) Destroy() error {
	if n := c.windows.Load(); n > 0 {
		c.log.Error("context destroyed with open windows", "windows", n)
		return ErrWindowsAlive
	}
	c.inst.Destroy()
	return nil
}
