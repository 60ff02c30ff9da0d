package server

import (
	"context"
	"sync"

	"mysql-dbdriver/internal/command"
	"mysql-dbdriver/internal/driver"
)

// Admin runs ns_mysql subcommands on a handle of its own, one at a time.
// Worker handles are never touched.
type Admin struct {
	mu   sync.Mutex
	d    *driver.Driver
	h    *driver.Handle
	name string
	cmd  *command.Command
}

// NewAdmin registers h under a fresh name. h need not be connected yet.
func NewAdmin(d *driver.Driver, h *driver.Handle) *Admin {
	reg := command.NewRegistry()
	return &Admin{
		d:    d,
		h:    h,
		name: reg.Add(h),
		cmd:  command.New("", d, reg),
	}
}

// Run executes subcommand with args on the admin handle, connecting it
// first if needed.
func (a *Admin) Run(ctx context.Context, subcommand string, args []string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.h.Connected() {
		if err := a.d.Open(ctx, a.h); err != nil {
			return "", err
		}
	}
	return a.cmd.Run(ctx, append([]string{subcommand, a.name}, args...))
}

// Describe returns the driver and server description.
func (a *Admin) Describe() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.d.DbType(a.h)
}

// Close disconnects the admin handle.
func (a *Admin) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.d.Close(a.h)
}
