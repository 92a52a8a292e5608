// Package ipcserver implements the IPC server component (§4.8): a
// single-subscriber, message-framed local endpoint that broadcasts
// duplicate-detection alerts and acknowledges arbitrary client commands.
//
// The teacher's own IPC layer (pkg/ipc, pkg/daemon/ipc_posix.go,
// pkg/daemon/ipc_windows.go) establishes a local duplex channel the same
// way this package does — a Unix domain socket on POSIX, a named pipe via
// github.com/Microsoft/go-winio on Windows — but then hands the
// connection to a gRPC server for framing. This service's wire format is
// explicitly newline-delimited JSON, not RPC (§4.8, §6), so only the
// teacher's listener-construction primitives are reused; the framing and
// session-state machine below are this package's own, grounded on the
// session lifecycle the specification names in §3 (IpcSession).
package ipcserver

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/ddas/ddas/internal/aggregate"
	"github.com/ddas/ddas/internal/ddaserrors"
	"github.com/ddas/ddas/internal/logging"
)

// sessionState mirrors the IpcSession states named in §3.
type sessionState int

const (
	sessionIdle sessionState = iota
	sessionConnected
	sessionDraining
)

func (s sessionState) String() string {
	switch s {
	case sessionIdle:
		return "idle"
	case sessionConnected:
		return "connected"
	case sessionDraining:
		return "draining"
	default:
		return "unknown"
	}
}

// Server is the IPC endpoint described in §4.8: exactly one subscriber at
// a time, newline-JSON framing, a replay on connect driven by the
// aggregator.
type Server struct {
	logger     *logging.Logger
	endpoint   string
	aggregator *aggregate.Aggregator

	listener net.Listener

	// sessionLock serializes state transitions and protects conn against
	// being closed out from under an in-flight write (§5: "per-session
	// lock serialising writes and protecting the session handle against
	// close-during-write").
	sessionLock sync.Mutex
	state       sessionState
	conn        net.Conn
	sessionID   string

	done chan struct{}
}

// New constructs a Server bound to endpoint (the well-known IPC name) but
// does not yet start listening; call Start for that.
func New(logger *logging.Logger, endpoint string, aggregator *aggregate.Aggregator) *Server {
	return &Server{
		logger:     logger,
		endpoint:   endpoint,
		aggregator: aggregator,
		state:      sessionIdle,
		done:       make(chan struct{}),
	}
}

// Start creates the platform-native listener and launches the accept
// loop. A failure here is an IpcInitError (§7): logged as a warning, not
// fatal to the rest of the service, which continues producing alerts that
// are discarded until a client eventually connects — so Start's caller
// should treat a non-nil error as "no listener available" rather than
// abort the whole process.
func (s *Server) Start(ctx context.Context) error {
	listener, err := listen(s.endpoint)
	if err != nil {
		return ddaserrors.NewIpcInitError(err)
	}
	s.listener = listener
	s.aggregator.AttachSink(s)

	go s.acceptLoop(ctx)
	return nil
}

// acceptLoop implements the §4.8 accept loop: create the endpoint → wait
// for client (multiplexed with cancellation) → on connect, replay → enter
// the command loop → on disconnect, tear down and re-accept.
func (s *Server) acceptLoop(ctx context.Context) {
	defer close(s.done)

	type acceptResult struct {
		conn net.Conn
		err  error
	}

	for {
		accepted := make(chan acceptResult, 1)
		go func() {
			conn, err := s.listener.Accept()
			accepted <- acceptResult{conn, err}
		}()

		var result acceptResult
		select {
		case <-ctx.Done():
			s.listener.Close()
			<-accepted // let the blocked Accept goroutine unwind
			return
		case result = <-accepted:
		}

		if result.err != nil {
			// The listener was closed (normal shutdown) or failed
			// (transient); either way there's nothing left to accept.
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn(ddaserrors.NewIpcInitError(result.err))
			return
		}

		s.handleConnection(ctx, result.conn)
	}
}

// handleConnection owns one client's lifetime: transition to Connected,
// replay outstanding groups, run the inbound command loop until the
// client disconnects or ctx is cancelled, then transition back to Idle.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	id := uuid.New().String()
	s.logger.Tagged("IPC", "client connected (session %s)", id)

	s.sessionLock.Lock()
	s.state = sessionConnected
	s.conn = conn
	s.sessionID = id
	s.sessionLock.Unlock()

	s.aggregator.ReplayActiveGroups(s)

	s.commandLoop(ctx, conn, id)

	s.sessionLock.Lock()
	s.state = sessionDraining
	s.conn = nil
	s.sessionLock.Unlock()
	conn.Close()

	s.aggregator.OnClientDisconnect()

	s.sessionLock.Lock()
	s.state = sessionIdle
	s.sessionID = ""
	s.sessionLock.Unlock()

	s.logger.Tagged("IPC", "client disconnected (session %s)", id)
}

// commandLoop reads newline-delimited JSON commands from conn and
// acknowledges each with the generic RESPONSE envelope (§4.8, §6). It
// returns when the connection is closed, a read error occurs, or ctx is
// cancelled.
func (s *Server) commandLoop(ctx context.Context, conn net.Conn, sessionID string) {
	type readResult struct {
		line []byte
		err  error
	}
	lines := make(chan readResult)

	go func() {
		decoder := json.NewDecoder(conn)
		for {
			var raw json.RawMessage
			if err := decoder.Decode(&raw); err != nil {
				lines <- readResult{nil, err}
				return
			}
			lines <- readResult{raw, nil}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case r := <-lines:
			if r.err != nil {
				if r.err != io.EOF {
					s.logger.Warn(ddaserrors.NewClientProtocolError(r.err))
				}
				return
			}
			if err := s.writeMessage(newCommandAck()); err != nil {
				s.logger.Warn(err)
				return
			}
		}
	}
}

// Stop shuts down the endpoint: closes the listener (unblocking Accept),
// closes any live connection, and waits for the accept loop to exit
// (§4.9: "disconnects client, closes endpoint, joins accept thread").
func (s *Server) Stop() error {
	if s.listener == nil {
		// Start never succeeded, so no accept loop is running to wait for.
		return nil
	}
	s.listener.Close()

	s.sessionLock.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.sessionLock.Unlock()

	<-s.done
	return nil
}
