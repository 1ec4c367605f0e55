// Package listener accepts TCP connections on the control port, shares the
// process-wide concurrency cap with every spawned session, and hands each
// accepted connection to its own goroutine.
package listener

import (
	"fmt"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/kestrelsec/ftphoney/internal/dataprovider"
	"github.com/kestrelsec/ftphoney/internal/events"
	"github.com/kestrelsec/ftphoney/internal/ftpsession"
	"github.com/kestrelsec/ftphoney/internal/loginpolicy"
	"github.com/kestrelsec/ftphoney/internal/metrics"
	"github.com/kestrelsec/ftphoney/internal/realfs"
)

// Listener owns the control-port socket and the shared session counter.
type Listener struct {
	addr      string
	counter   *ftpsession.Counter
	cfg       ftpsession.Config
	provider  dataprovider.Provider
	policy    *loginpolicy.Policy
	emitter   *events.Emitter
	fsAdapter *realfs.Adapter
	log       zerolog.Logger
	metrics   *metrics.Registry

	mu       sync.Mutex
	ln       net.Listener
	draining bool
}

func New(
	addr string,
	maxConcurrent int,
	cfg ftpsession.Config,
	provider dataprovider.Provider,
	policy *loginpolicy.Policy,
	emitter *events.Emitter,
	fsAdapter *realfs.Adapter,
	reg *metrics.Registry,
	log zerolog.Logger,
) *Listener {
	return &Listener{
		addr:      addr,
		counter:   ftpsession.NewCounter(maxConcurrent),
		cfg:       cfg,
		provider:  provider,
		policy:    policy,
		emitter:   emitter,
		fsAdapter: fsAdapter,
		metrics:   reg,
		log:       log.With().Str("component", "listener").Logger(),
	}
}

// Serve binds the control port and accepts connections until the listener
// is closed or Stop is called.
func (l *Listener) Serve() error {
	ln, err := net.Listen("tcp", l.addr)
	if err != nil {
		return fmt.Errorf("listener: bind %q: %w", l.addr, err)
	}
	l.mu.Lock()
	l.ln = ln
	l.mu.Unlock()

	l.log.Info().Str("addr", l.addr).Msg("ftp honeypot listening")

	for {
		conn, err := ln.Accept()
		if err != nil {
			l.mu.Lock()
			draining := l.draining
			l.mu.Unlock()
			if draining {
				return nil
			}
			l.log.Warn().Err(err).Msg("accept failed")
			continue
		}

		go l.handle(conn)
	}
}

var sessionSeedCounter int64

// sessionSeed derives a per-session random seed from wall-clock time mixed
// with a monotonically increasing counter, so concurrently accepted
// connections never share a seed.
func sessionSeed() int64 {
	return time.Now().UnixNano() + atomic.AddInt64(&sessionSeedCounter, 1)
}

func (l *Listener) handle(conn net.Conn) {
	r := rand.New(rand.NewSource(sessionSeed()))
	s := ftpsession.New(conn, l.counter, l.cfg, l.provider, l.policy, l.emitter, l.fsAdapter, l.metrics, r, l.log)
	if l.metrics != nil {
		l.metrics.SessionStarted()
		defer l.metrics.SessionEnded()
	}
	s.Serve()
}

// Stop stops accepting new connections. It does not wait for in-flight
// sessions; they keep running until they end or the process exits.
func (l *Listener) Stop() error {
	l.mu.Lock()
	l.draining = true
	ln := l.ln
	l.mu.Unlock()
	if ln == nil {
		return nil
	}
	return ln.Close()
}
