package pskrx

import (
	"fmt"
	"io"
)

// Pump is a source of input samples. Pump fills the buffer and returns
// number of written samples. io.EOF is returned when the source is done,
// samples returned along with it are still processed.
type Pump interface {
	Pump(buf []complex64) (int, error)
}

// Run starts pumping samples into the graph in a separate goroutine. The
// returned channel delivers the first error and is closed when streaming
// is done. Buffer size must be positive.
func (c *Controller) Run(pump Pump, bufferSize int) chan error {
	errc := make(chan error, 1)
	if bufferSize < 1 {
		errc <- fmt.Errorf("%w: buffer size %d", ErrInvalidParameter, bufferSize)
		close(errc)
		return errc
	}
	c.mu.Lock()
	if err := c.ready(); err != nil {
		c.mu.Unlock()
		errc <- err
		close(errc)
		return errc
	}
	if c.running() {
		c.mu.Unlock()
		errc <- ErrRunning
		close(errc)
		return errc
	}
	cancel, done := make(chan struct{}), make(chan struct{})
	c.cancel, c.done = cancel, done
	c.mu.Unlock()

	c.log.Debug(fmt.Sprintf("%v: run with buffer size %d", c, bufferSize))
	go func() {
		defer close(done)
		defer close(errc)
		buf := make([]complex64, bufferSize)
		for {
			select {
			case <-cancel:
				return
			default:
			}
			n, err := pump.Pump(buf)
			if n > 0 {
				if perr := c.Process(buf[:n]); perr != nil {
					errc <- perr
					return
				}
			}
			if err != nil {
				if err != io.EOF {
					errc <- err
				}
				return
			}
		}
	}()
	return errc
}

// Stop interrupts streaming and waits for it to finish. It's a no-op if
// controller is not running.
func (c *Controller) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	close(cancel)
	<-done
}

// running returns true if streaming goroutine is active.
func (c *Controller) running() bool {
	if c.done == nil {
		return false
	}
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// Wait for error from channel. Returns nil if channel was closed without
// errors.
func Wait(errc chan error) error {
	for err := range errc {
		if err != nil {
			return err
		}
	}
	return nil
}
