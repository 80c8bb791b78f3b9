//go:build linux

package ime

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/godbus/dbus/v5"

	"textservice/internal/config"
	"textservice/internal/logging"
)

// IBus D-Bus constants
const (
	IBusFactoryPath      = "/org/freedesktop/IBus/Factory"
	IBusFactoryInterface = "org.freedesktop.IBus.Factory"
	IBusEngineInterface  = "org.freedesktop.IBus.Engine"
	IBusServiceInterface = "org.freedesktop.IBus.Service"
)

// Server owns the bus name and creates one Engine per IBus engine object.
type Server struct {
	cfg    config.IBusConfig
	opts   EngineOptions
	logger *logging.Logger

	mu      sync.Mutex
	conn    *dbus.Conn
	engines map[dbus.ObjectPath]*Engine
	nextID  uint32
}

// NewServer returns a server that is not yet connected.
func NewServer(cfg config.IBusConfig, opts EngineOptions) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Server{
		cfg:     cfg,
		opts:    opts,
		logger:  logger.WithComponent("ibus_server"),
		engines: make(map[dbus.ObjectPath]*Engine),
	}
}

func connect() (*dbus.Conn, error) {
	if addr := os.Getenv("IBUS_ADDRESS"); addr != "" {
		return dbus.Connect(addr)
	}
	return dbus.SessionBus()
}

// Run connects, registers the factory and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	conn, err := connect()
	if err != nil {
		return fmt.Errorf("connect to bus: %w", err)
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	reply, err := conn.RequestName(s.cfg.BusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		conn.Close()
		return fmt.Errorf("request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		conn.Close()
		return errors.New("bus name already taken")
	}

	if err := conn.Export(&factory{server: s}, IBusFactoryPath, IBusFactoryInterface); err != nil {
		conn.Close()
		return fmt.Errorf("export factory: %w", err)
	}
	s.logger.Info("ibus engine started", "bus_name", s.cfg.BusName, "engine", s.cfg.EngineName)

	<-ctx.Done()
	return s.Stop()
}

// Stop ends every engine session and closes the connection.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for path, e := range s.engines {
		if err := e.Close(); err != nil {
			s.logger.Warn("close engine", "path", path, "error", err)
		}
		delete(s.engines, path)
	}
	if s.conn != nil {
		err := s.conn.Close()
		s.conn = nil
		return err
	}
	return nil
}

func (s *Server) createEngine(name string) (dbus.ObjectPath, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name != s.cfg.EngineName {
		return "", fmt.Errorf("unknown engine: %s", name)
	}
	s.nextID++
	path := dbus.ObjectPath(fmt.Sprintf("/org/freedesktop/IBus/Engine/%d", s.nextID))

	e, err := NewEngine(&busClient{conn: s.conn, path: path}, s.opts)
	if err != nil {
		return "", err
	}
	obj := &engineObject{engine: e, server: s, path: path}
	if err := s.conn.Export(obj, path, IBusEngineInterface); err != nil {
		_ = e.Close()
		return "", err
	}
	if err := s.conn.Export(obj, path, IBusServiceInterface); err != nil {
		_ = e.Close()
		return "", err
	}
	s.engines[path] = e
	s.logger.Info("engine created", "path", path)
	return path, nil
}

func (s *Server) destroyEngine(path dbus.ObjectPath) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.engines[path]
	if !ok {
		return
	}
	delete(s.engines, path)
	if err := e.Close(); err != nil {
		s.logger.Warn("close engine", "path", path, "error", err)
	}
	if s.conn != nil {
		_ = s.conn.Export(nil, path, IBusEngineInterface)
		_ = s.conn.Export(nil, path, IBusServiceInterface)
	}
	s.logger.Info("engine destroyed", "path", path)
}

// factory implements the IBus Factory D-Bus interface.
type factory struct {
	server *Server
}

func (f *factory) CreateEngine(name string) (dbus.ObjectPath, *dbus.Error) {
	path, err := f.server.createEngine(name)
	if err != nil {
		return "", dbus.NewError("org.freedesktop.IBus.NoEngine", []any{err.Error()})
	}
	return path, nil
}

// engineObject implements the IBus Engine D-Bus interface.
type engineObject struct {
	engine *Engine
	server *Server
	path   dbus.ObjectPath
}

func (o *engineObject) ProcessKeyEvent(keyval, keycode, state uint32) (bool, *dbus.Error) {
	return o.engine.ProcessKeyEvent(keyval, keycode, state), nil
}

func (o *engineObject) FocusIn() *dbus.Error {
	o.engine.FocusIn()
	return nil
}

func (o *engineObject) FocusOut() *dbus.Error {
	o.engine.FocusOut()
	return nil
}

func (o *engineObject) Enable() *dbus.Error {
	o.engine.Enable()
	return nil
}

func (o *engineObject) Disable() *dbus.Error {
	o.engine.Disable()
	return nil
}

func (o *engineObject) Reset() *dbus.Error {
	o.engine.Reset()
	return nil
}

// The remaining Engine methods have nothing to do for a text service
// without candidates or properties.

func (o *engineObject) SetCapabilities(caps uint32) *dbus.Error {
	return nil
}

func (o *engineObject) SetCursorLocation(x, y, w, h int32) *dbus.Error {
	return nil
}

func (o *engineObject) SetContentType(purpose, hints uint32) *dbus.Error {
	return nil
}

func (o *engineObject) SetSurroundingText(text dbus.Variant, cursorPos, anchorPos uint32) *dbus.Error {
	return nil
}

func (o *engineObject) PropertyActivate(name string, state uint32) *dbus.Error {
	return nil
}

func (o *engineObject) PageUp() *dbus.Error {
	return nil
}

func (o *engineObject) PageDown() *dbus.Error {
	return nil
}

func (o *engineObject) CursorUp() *dbus.Error {
	return nil
}

func (o *engineObject) CursorDown() *dbus.Error {
	return nil
}

func (o *engineObject) CandidateClicked(index, button, state uint32) *dbus.Error {
	return nil
}

// Destroy is the IBus Service method that releases the engine.
func (o *engineObject) Destroy() *dbus.Error {
	o.server.destroyEngine(o.path)
	return nil
}

// busClient emits engine signals for one object path.
type busClient struct {
	conn *dbus.Conn
	path dbus.ObjectPath
}

func (c *busClient) CommitText(text string) error {
	return c.conn.Emit(c.path, IBusEngineInterface+".CommitText", dbus.MakeVariant(newIBusText(text, false)))
}

func (c *busClient) UpdatePreedit(text string, cursor int, visible bool) error {
	return c.conn.Emit(c.path, IBusEngineInterface+".UpdatePreeditText",
		dbus.MakeVariant(newIBusText(text, true)), uint32(cursor), visible, uint32(0))
}
