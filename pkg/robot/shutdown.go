package robot

import (
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// coordinator is the single process-wide shutdown funnel. Connected
// manipulators register here; on SIGINT or SIGTERM every registered
// manipulator is force-disconnected, then the original signal disposition
// is restored and the signal re-delivered so the process terminates
// normally. Registration is explicit and tied to connect/disconnect, never
// ambient state.
type coordinator struct {
	mu      sync.Mutex
	targets map[*Manipulator]struct{}
	sigCh   chan os.Signal
	stop    chan struct{}
}

var shutdownHooks = &coordinator{targets: map[*Manipulator]struct{}{}}

func (c *coordinator) register(m *Manipulator) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.targets[m] = struct{}{}
	if c.sigCh != nil {
		return
	}

	c.sigCh = make(chan os.Signal, 1)
	c.stop = make(chan struct{})
	signal.Notify(c.sigCh, os.Interrupt, syscall.SIGTERM)
	go c.wait(c.sigCh, c.stop)
}

func (c *coordinator) unregister(m *Manipulator) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.targets, m)
	if len(c.targets) > 0 || c.sigCh == nil {
		return
	}
	signal.Stop(c.sigCh)
	close(c.stop)
	c.sigCh = nil
	c.stop = nil
}

func (c *coordinator) wait(sigCh chan os.Signal, stop chan struct{}) {
	select {
	case sig := <-sigCh:
		log.Printf("received signal %v, disconnecting manipulators", sig)
		c.mu.Lock()
		targets := make([]*Manipulator, 0, len(c.targets))
		for m := range c.targets {
			targets = append(targets, m)
		}
		c.mu.Unlock()

		for _, m := range targets {
			m.forceDisconnect()
		}

		// Restore the original disposition and re-deliver so the process
		// exits the way the signal intended.
		signal.Reset(sig)
		if s, ok := sig.(syscall.Signal); ok {
			_ = syscall.Kill(os.Getpid(), s)
		}
	case <-stop:
	}
}
