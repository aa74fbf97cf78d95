// File: facade/hioload.go
// Unified facade layer for hioload-net.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Node owns one session.Manager and the goroutine that runs its loop. It opens
// the listeners and connectors named by the configuration and exposes the
// thread-safe subset of the manager to the rest of the process.

package facade

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/samber/oops"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/control"
	"github.com/momentics/hioload-net/internal/concurrency"
	"github.com/momentics/hioload-net/session"
)

// Node runs a session.Manager on a dedicated goroutine.
type Node struct {
	cfg control.Config
	mgr *session.Manager
	log logrus.FieldLogger

	started  atomic.Bool
	done     chan struct{}
	stopOnce sync.Once
	stopErr  error
}

// NewNode builds a Node for cfg. The handler may be nil.
func NewNode(cfg control.Config, handler api.Handler, log logrus.FieldLogger, opts ...session.Option) *Node {
	if log == nil {
		log = logrus.StandardLogger()
	}
	opts = append([]session.Option{
		session.WithHandler(handler),
		session.WithLogger(log.WithField("component", "session")),
	}, opts...)
	return &Node{
		cfg:  cfg,
		mgr:  session.New(opts...),
		log:  log.WithField("component", "facade"),
		done: make(chan struct{}),
	}
}

// Manager returns the underlying manager. Outside handler callbacks only
// Post, the Stop* calls and Stats may be used.
func (n *Node) Manager() *session.Manager { return n.mgr }

// Stats implements control.StatsSource.
func (n *Node) Stats() session.Stats { return n.mgr.Stats() }

// Post runs task on the loop goroutine.
func (n *Node) Post(task api.Task) { n.mgr.Post(task) }

// Done is closed once the loop goroutine has exited and released the manager.
func (n *Node) Done() <-chan struct{} { return n.done }

// Start launches the loop and waits until every configured endpoint is open.
// Calling it twice fails.
func (n *Node) Start(ctx context.Context) error {
	if !n.started.CompareAndSwap(false, true) {
		return api.ErrAlreadyInitialized
	}
	ready := make(chan error, 1)
	go n.loop(ready)
	select {
	case err := <-ready:
		return err
	case <-ctx.Done():
		n.mgr.Stop()
		return oops.In("facade").Wrapf(ctx.Err(), "start node")
	}
}

func (n *Node) loop(ready chan<- error) {
	defer close(n.done)
	if cpu := n.cfg.LoopCPU; cpu >= 0 {
		if err := concurrency.PinCurrentThread(cpu); err != nil {
			ready <- err
			return
		}
		n.log.WithField("cpu", cpu).Info("loop thread pinned")
	}
	if err := n.mgr.Start(); err != nil {
		ready <- err
		return
	}
	if err := n.open(); err != nil {
		if cerr := n.mgr.Close(); cerr != nil {
			n.log.WithError(cerr).Warn("close manager")
		}
		ready <- err
		return
	}
	ready <- nil

	n.mgr.Run()
	if err := n.mgr.Close(); err != nil {
		n.log.WithError(err).Warn("close manager")
	}
	n.log.Info("loop exited")
}

func (n *Node) open() error {
	var err error
	for i, l := range n.cfg.Listeners {
		if _, aerr := n.mgr.AddAcceptor(l); aerr != nil {
			err = multierr.Append(err, oops.In("facade").With("listener", i).Wrap(aerr))
		}
	}
	for i, c := range n.cfg.Connectors {
		if _, cerr := n.mgr.AddConnector(c); cerr != nil {
			err = multierr.Append(err, oops.In("facade").With("connector", i).Wrap(cerr))
		}
	}
	n.log.WithFields(logrus.Fields{
		"listeners":  len(n.cfg.Listeners),
		"connectors": len(n.cfg.Connectors),
	}).Info("endpoints opened")
	return err
}

// Stop runs the staged Shutdown and waits for the loop to exit. Later calls
// return the first result.
func (n *Node) Stop(ctx context.Context) error {
	n.stopOnce.Do(func() {
		if !n.started.Load() {
			return
		}
		select {
		case <-n.done:
			return
		default:
		}
		err := Shutdown(ctx, n.mgr)
		select {
		case <-n.done:
		case <-ctx.Done():
			err = multierr.Append(err, oops.In("facade").Wrapf(ctx.Err(), "wait for loop"))
		}
		n.stopErr = err
	})
	return n.stopErr
}
