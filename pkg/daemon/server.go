package daemon

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/b/procrastabs/pkg/engine"
)

var ErrAlreadyRunning = errors.New("daemon already running")

// ClientInfo tracks per-client state
type ClientInfo struct {
	Conn       net.Conn
	Subscribed bool
	writeMu    sync.Mutex
}

// Server publishes engine status to local clients over a unix socket
type Server struct {
	socketPath string
	pidPath    string
	runID      string
	logger     *slog.Logger
	listener   net.Listener
	clients    map[string]*ClientInfo
	clientsMu  sync.RWMutex
	done       chan struct{}
	stopOnce   sync.Once
	anonymous  uint64

	sequenceNum uint64
	seqMu       sync.Mutex

	// Status returns the snapshot sent to clients. Must be safe to call
	// from any goroutine.
	Status func() engine.Status
}

// NewServer creates a new daemon server
func NewServer(sessionID, runID string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		socketPath:  SocketPath(sessionID),
		pidPath:     PidPath(sessionID),
		runID:       runID,
		logger:      logger.With("component", "daemon"),
		clients:     make(map[string]*ClientInfo),
		done:        make(chan struct{}),
		sequenceNum: 1,
	}
}

// Start begins listening for client connections
func (s *Server) Start() error {
	// Check if another daemon is already running
	if err := s.checkAndClaimPid(); err != nil {
		return err
	}

	// Remove stale socket if exists (safe now that we own the pidfile)
	os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		os.Remove(s.pidPath)
		return fmt.Errorf("failed to listen on socket: %w", err)
	}
	s.listener = listener
	s.logger.Info("listening", "socket", s.socketPath)

	go s.acceptLoop()
	return nil
}

// checkAndClaimPid checks for existing daemon and claims pidfile
func (s *Server) checkAndClaimPid() error {
	if data, err := os.ReadFile(s.pidPath); err == nil {
		pidStr := strings.TrimSpace(string(data))
		if pid, err := strconv.Atoi(pidStr); err == nil && pid > 0 && pid != os.Getpid() {
			if process, err := os.FindProcess(pid); err == nil {
				// On Unix, FindProcess always succeeds, so we need to send signal 0
				if err := process.Signal(syscall.Signal(0)); err == nil {
					return fmt.Errorf("%w with pid %d", ErrAlreadyRunning, pid)
				}
			}
		}
		// Stale pidfile
		os.Remove(s.pidPath)
	}

	if err := os.WriteFile(s.pidPath, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		return fmt.Errorf("failed to write pidfile: %w", err)
	}
	return nil
}

// Stop shuts down the server
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		if s.listener != nil {
			s.listener.Close()
		}
		s.clientsMu.Lock()
		for id, client := range s.clients {
			client.Conn.Close()
			delete(s.clients, id)
		}
		s.clientsMu.Unlock()
		os.Remove(s.socketPath)
		os.Remove(s.pidPath)
	})
}

// ClientCount returns the number of connected clients
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// GetSocketPath returns the socket path
func (s *Server) GetSocketPath() string {
	return s.socketPath
}

// PidPath returns the pidfile path
func (s *Server) PidPath() string {
	return s.pidPath
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				s.logger.Debug("accept failed", "error", err)
				continue
			}
		}
		go s.handleClient(conn)
	}
}

func (s *Server) handleClient(conn net.Conn) {
	defer conn.Close()

	s.clientsMu.Lock()
	s.anonymous++
	clientID := fmt.Sprintf("client-%d", s.anonymous)
	client := &ClientInfo{Conn: conn}
	s.clients[clientID] = client
	s.clientsMu.Unlock()

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, clientID)
		s.clientsMu.Unlock()
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		var msg Message
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			s.sendError(client, "malformed message")
			continue
		}

		switch msg.Type {
		case MsgSubscribe:
			if msg.ClientID != "" && msg.ClientID != clientID {
				if !s.rename(clientID, msg.ClientID) {
					s.sendError(client, fmt.Sprintf("client id %q already in use", msg.ClientID))
					continue
				}
				clientID = msg.ClientID
			}
			s.clientsMu.Lock()
			client.Subscribed = true
			s.clientsMu.Unlock()
			s.sendStatus(client)

		case MsgUnsubscribe:
			return

		case MsgStatus:
			s.sendStatus(client)

		case MsgPing:
			s.sendMessage(client, Message{Type: MsgPong})

		default:
			s.sendError(client, fmt.Sprintf("unknown message type %q", msg.Type))
		}
	}
}

// rename re-keys a connected client under the id it asked for. An id that
// is already taken keeps its owner and rename reports false.
func (s *Server) rename(from, to string) bool {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	if _, taken := s.clients[to]; taken {
		return false
	}
	s.clients[to] = s.clients[from]
	delete(s.clients, from)
	return true
}

// BroadcastStatus pushes the current status to every subscriber
func (s *Server) BroadcastStatus() {
	s.clientsMu.RLock()
	subs := make([]*ClientInfo, 0, len(s.clients))
	for _, c := range s.clients {
		if c.Subscribed {
			subs = append(subs, c)
		}
	}
	s.clientsMu.RUnlock()

	for _, c := range subs {
		s.sendStatus(c)
	}
}

func (s *Server) sendStatus(client *ClientInfo) {
	if s.Status == nil {
		s.sendError(client, "status unavailable")
		return
	}

	s.seqMu.Lock()
	seq := s.sequenceNum
	s.sequenceNum++
	s.seqMu.Unlock()

	msg, err := NewMessage(MsgStatus, "", StatusPayload{SequenceNum: seq, RunID: s.runID, Status: s.Status()})
	if err != nil {
		s.logger.Error("status encode failed", "error", err)
		return
	}
	s.sendMessage(client, msg)
}

func (s *Server) sendError(client *ClientInfo, text string) {
	msg, _ := NewMessage(MsgError, "", ErrorPayload{Message: text})
	s.sendMessage(client, msg)
}

func (s *Server) sendMessage(client *ClientInfo, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	client.writeMu.Lock()
	defer client.writeMu.Unlock()
	client.Conn.SetWriteDeadline(time.Now().Add(time.Second))
	_, err = client.Conn.Write(append(data, '\n'))
	if err != nil {
		s.logger.Debug("write to client failed", "error", err)
	}
	return err
}
