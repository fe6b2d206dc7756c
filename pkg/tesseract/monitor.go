package tesseract

import (
	"fmt"
	"runtime"
)

// Monitor reports progress of a running recognition and carries its deadline.
// The deadline is advisory: the library checks it while recognizing.
type Monitor struct {
	o *owner[struct{}]
	c *capi
}

func NewMonitor() (*Monitor, error) {
	c, err := loadedAPI()
	if err != nil {
		return nil, err
	}
	return newMonitor(c)
}

func newMonitor(c *capi) (*Monitor, error) {
	o, err := newHandle("TessMonitor", "TessMonitorCreate", c.TessMonitorCreate(), struct{}{},
		func(p uintptr, _ *struct{}) { c.TessMonitorDelete(p) })
	if err != nil {
		return nil, err
	}
	return wrapMonitor(c, o), nil
}

func wrapMonitor(c *capi, o *owner[struct{}]) *Monitor {
	m := &Monitor{o: o, c: c}
	runtime.AddCleanup(m, func(o *owner[struct{}]) { o.close() }, o)
	return m
}

func (m *Monitor) Clone() *Monitor {
	return wrapMonitor(m.c, m.o.clone())
}

func (m *Monitor) Close() error {
	m.o.close()
	return nil
}

// SetDeadline sets the deadline to ms milliseconds from now.
func (m *Monitor) SetDeadline(ms int) error {
	const op = "TessMonitorSetDeadlineMSecs"
	if ms < 0 {
		return newError(ErrInvalidParameter, op, fmt.Errorf("deadline %dms", ms))
	}
	return m.o.do(op, func(p uintptr, _ *struct{}) error {
		m.c.TessMonitorSetDeadlineMSecs(p, int32(ms))
		return nil
	})
}

// Progress returns the progress of the recognition in percent.
func (m *Monitor) Progress() (int, error) {
	const op = "TessMonitorGetProgress"
	if m.c.TessMonitorGetProgress == nil {
		return 0, newError(ErrLibrary, op, nil)
	}
	return with(m.o, op, func(p uintptr, _ *struct{}) (int, error) {
		return int(m.c.TessMonitorGetProgress(p)), nil
	})
}
