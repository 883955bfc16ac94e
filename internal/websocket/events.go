package websocket

// emit queues a handler call. Must be called with mu held.
func (c *Conn) emit(fn func()) {
	c.events.Add(fn)
}

// unlockAndDeliver hands queued handler calls to the executor in order and
// releases mu. Only one goroutine submits at a time; any other caller
// leaves its events for the one already submitting, so events reach the
// executor in the order they were queued even when an inline handler
// re-enters the connection.
func (c *Conn) unlockAndDeliver() {
	if c.delivering {
		c.mu.Unlock()
		return
	}
	c.delivering = true
	for c.events.Length() > 0 {
		fn := c.events.Remove().(func())
		c.mu.Unlock()
		c.exec.Submit(fn)
		c.mu.Lock()
	}
	c.delivering = false
	stop := c.terminated && c.ownExec != nil
	c.mu.Unlock()

	if stop {
		// queued tasks still run
		c.ownExec.Stop()
	}
}
