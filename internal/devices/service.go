package devices

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"msgport/internal/broker"
	"msgport/internal/config"
	"msgport/internal/logging"
	"msgport/internal/object"
)

// ServiceName is the built-in device event endpoint.
const ServiceName = "port.devices"

// Service bridges kernel udev netlink events onto the message plane.
// Peers bind to port.devices and subscribe; every matched uevent is
// pushed to all subscribers as an event dictionary.
type Service struct {
	cfg    *config.Config
	logger *slog.Logger

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
	subs    map[uint64]*broker.Session
}

// NewService creates the device event service. It returns nil when the
// feature is disabled in configuration.
func NewService(cfg *config.Config, logger *slog.Logger) *Service {
	if cfg == nil || !cfg.Devices.Enabled {
		return nil
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "devices"),
		subs:   make(map[uint64]*broker.Session),
	}
}

func (s *Service) Name() string {
	return ServiceName
}

// Handle processes subscribe, unsubscribe, and status commands.
func (s *Service) Handle(_ context.Context, sess *broker.Session, msg object.Dict) (object.Dict, error) {
	cmd := msg.GetString("cmd", "")
	switch cmd {
	case "subscribe":
		s.subscribe(sess)
		return object.Dict{"subscribed": "true"}, nil
	case "unsubscribe":
		s.unsubscribe(sess.ID())
		return object.Dict{"subscribed": "false"}, nil
	case "status":
		return s.status(), nil
	default:
		return nil, fmt.Errorf("unknown command %q", cmd)
	}
}

func (s *Service) subscribe(sess *broker.Session) {
	s.mu.Lock()
	_, already := s.subs[sess.ID()]
	s.subs[sess.ID()] = sess
	s.mu.Unlock()
	if already {
		return
	}
	sess.OnClose(func() { s.unsubscribe(sess.ID()) })
	s.logger.Debug("subscriber added", logging.Int64(logging.FieldSession, int64(sess.ID())))
}

func (s *Service) unsubscribe(id uint64) {
	s.mu.Lock()
	delete(s.subs, id)
	s.mu.Unlock()
}

func (s *Service) status() object.Dict {
	s.mu.Lock()
	running := s.running
	count := int64(len(s.subs))
	s.mu.Unlock()

	subsystems := make(object.Array, len(s.cfg.Devices.Subsystems))
	for i, sub := range s.cfg.Devices.Subsystems {
		subsystems[i] = sub
	}
	state := "stopped"
	if running {
		state = "running"
	}
	return object.Dict{
		"monitor":     state,
		"subscribers": count,
		"subsystems":  subsystems,
	}
}

// Start connects to the udev netlink socket and begins broadcasting.
// A connect failure is non-fatal; the service still answers commands
// but pushes no events.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		s.logger.Warn("failed to connect to netlink socket; device events unavailable",
			logging.Error(err),
			logging.String(logging.FieldEventType, "devices_netlink_unavailable"),
			logging.String(logging.FieldErrorHint, "ensure the daemon may open netlink sockets"))
		return nil
	}

	s.conn = conn
	s.quit = make(chan struct{})
	s.running = true

	quit := s.quit
	go s.monitorLoop(ctx, quit)

	s.logger.Info("device monitor started",
		logging.String(logging.FieldEventType, "devices_monitor_started"),
		logging.String("subsystems", strings.Join(s.cfg.Devices.Subsystems, ",")))
	return nil
}

// Stop shuts the netlink monitor down.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	if s.quit != nil {
		close(s.quit)
		s.quit = nil
	}
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	s.running = false
	s.logger.Info("device monitor stopped",
		logging.String(logging.FieldEventType, "devices_monitor_stopped"))
}

func (s *Service) monitorLoop(ctx context.Context, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return
	}

	monitorQuit := conn.Monitor(queue, errs, s.buildMatcher())
	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			s.broadcast(eventDict(uevent))
		case err := <-errs:
			s.logger.Warn("netlink monitor error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "devices_monitor_error"))
		}
	}
}

// buildMatcher restricts events to the configured subsystems. An empty
// list matches every subsystem.
func (s *Service) buildMatcher() netlink.Matcher {
	rules := &netlink.RuleDefinitions{}
	if len(s.cfg.Devices.Subsystems) == 0 {
		rules.AddRule(netlink.RuleDefinition{})
		return rules
	}
	for _, subsystem := range s.cfg.Devices.Subsystems {
		rules.AddRule(netlink.RuleDefinition{
			Env: map[string]string{"SUBSYSTEM": subsystem},
		})
	}
	return rules
}

func (s *Service) broadcast(event object.Dict) {
	s.mu.Lock()
	targets := make([]*broker.Session, 0, len(s.subs))
	for _, sess := range s.subs {
		targets = append(targets, sess)
	}
	s.mu.Unlock()

	for _, sess := range targets {
		if err := sess.Push(event); err != nil {
			s.logger.Debug("event push failed",
				logging.Int64(logging.FieldSession, int64(sess.ID())),
				logging.Error(err))
		}
	}
}

// eventDict converts a uevent to the message-plane representation.
func eventDict(uevent netlink.UEvent) object.Dict {
	env := object.Dict{}
	for key, value := range uevent.Env {
		env[key] = value
	}
	return object.Dict{
		"action":    string(uevent.Action),
		"kobj":      uevent.KObj,
		"subsystem": uevent.Env["SUBSYSTEM"],
		"devname":   deviceName(uevent),
		"env":       env,
	}
}

// deviceName resolves /dev paths from DEVNAME or, failing that, the
// final DEVPATH component.
func deviceName(uevent netlink.UEvent) string {
	if devname := uevent.Env["DEVNAME"]; devname != "" {
		if strings.HasPrefix(devname, "/") {
			return devname
		}
		return "/dev/" + devname
	}
	devpath := uevent.Env["DEVPATH"]
	if devpath == "" {
		return ""
	}
	parts := strings.Split(devpath, "/")
	return "/dev/" + parts[len(parts)-1]
}
