package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"msgport/internal/broker"
	"msgport/internal/logging"
)

// rpcName is the JSON-RPC service name control methods are registered
// under.
const rpcName = "Msgport"

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	broker    *broker.Broker
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the control server at the given socket path.
// requestStop is invoked when a Stop RPC arrives; it must not block.
func NewServer(ctx context.Context, path string, b *broker.Broker, requestStop func(), logger *slog.Logger) (*Server, error) {
	if b == nil {
		return nil, errors.New("control server requires broker")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	svc := &service{
		broker:      b,
		controlPath: path,
		requestStop: requestStop,
		logger:      logging.NewComponentLogger(logger, "control"),
		ctx:         ctx,
	}
	if err := rpcServer.RegisterName(rpcName, svc); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		broker:    b,
		logger:    logging.NewComponentLogger(logger, "control"),
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("control server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "control_accept_failed"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "control_socket_cleanup_failed"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually or rerun msgport daemon stop"))
	}
}

type service struct {
	broker      *broker.Broker
	controlPath string
	requestStop func()
	logger      *slog.Logger
	ctx         context.Context
}

func (s *service) Ping(_ PingRequest, resp *PingResponse) error {
	resp.Pong = true
	resp.PID = os.Getpid()
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.broker.Status()
	resp.Running = status.Running
	resp.SocketPath = status.SocketPath
	resp.ControlPath = s.controlPath
	resp.LockPath = status.LockPath
	resp.JournalPath = status.JournalPath
	resp.PID = status.PID
	resp.Sessions = status.Sessions
	resp.Services = status.Services
	if !status.StartedAt.IsZero() {
		resp.StartedAt = status.StartedAt.Format(time.RFC3339)
		resp.Uptime = time.Since(status.StartedAt).Round(time.Second).String()
	}
	return nil
}

func (s *service) Services(_ ServicesRequest, resp *ServicesResponse) error {
	resp.Names = s.broker.Services()
	return nil
}

func (s *service) JournalTail(req JournalTailRequest, resp *JournalTailResponse) error {
	store := s.broker.Journal()
	if store == nil {
		resp.Enabled = false
		return nil
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 20
	}
	entries, err := store.Recent(s.ctx, req.Service, limit)
	if err != nil {
		return err
	}
	resp.Enabled = true
	resp.Entries = make([]JournalEntry, 0, len(entries))
	for _, e := range entries {
		resp.Entries = append(resp.Entries, JournalEntry{
			ID:         e.ID,
			At:         e.At.Format(time.RFC3339),
			Service:    e.Service,
			Direction:  e.Direction,
			Kind:       e.Kind,
			ObjectType: e.ObjectType,
			Bytes:      e.Bytes,
			Peer:       e.Peer,
		})
	}
	return nil
}

func (s *service) JournalStats(_ JournalStatsRequest, resp *JournalStatsResponse) error {
	store := s.broker.Journal()
	if store == nil {
		resp.Enabled = false
		return nil
	}
	stats, err := store.ServiceStats(s.ctx)
	if err != nil {
		return err
	}
	resp.Enabled = true
	resp.Stats = make(map[string]ServiceStats, len(stats))
	for name, st := range stats {
		resp.Stats[name] = ServiceStats{
			Total:    st.Total,
			Inbound:  st.Inbound,
			Outbound: st.Outbound,
			Bytes:    st.Bytes,
		}
	}
	return nil
}

func (s *service) JournalPurge(req JournalPurgeRequest, resp *JournalPurgeResponse) error {
	store := s.broker.Journal()
	if store == nil {
		return errors.New("journaling is disabled")
	}
	if req.Days <= 0 {
		return fmt.Errorf("invalid purge age %d days", req.Days)
	}
	removed, err := store.PurgeOlderThanDays(s.ctx, req.Days)
	if err != nil {
		return err
	}
	resp.Removed = removed
	s.logger.Info("journal purged via control",
		logging.String(logging.FieldEventType, "journal_purge"),
		logging.Int("age_days", req.Days),
		logging.Int64("removed_count", removed))
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.logger.Info("daemon stop requested via control",
		logging.String(logging.FieldEventType, "daemon_stop"))
	if s.requestStop != nil {
		s.requestStop()
	}
	resp.Stopped = true
	return nil
}
