package xmlrpc

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/divan/gorilla-xmlrpc/xml"
	"github.com/gorilla/rpc"

	"github.com/nnarain/backlight/internal/backlight"
	"github.com/nnarain/backlight/internal/logging"
)

// BacklightService exposes the legacy XML-RPC control surface. Older
// wall-mounted panels only speak XML-RPC, so the daemon keeps serving the
// original on/off methods alongside REST and MQTT.
type BacklightService struct {
	controller *backlight.Controller
	fade       time.Duration
	logger     *slog.Logger
}

// Reply is the response for all backlight methods.
type Reply struct {
	State string
}

// On powers the backlight on with the last selected effect.
func (s *BacklightService) On(_ *http.Request, _ *struct{}, reply *Reply) error {
	s.logger.Info("XML-RPC command", "method", "on")
	if err := s.controller.TurnOn(); err != nil {
		return err
	}
	reply.State = string(backlight.PowerOn)
	return nil
}

// Off fades the backlight out with the configured wipe delay.
func (s *BacklightService) Off(_ *http.Request, _ *struct{}, reply *Reply) error {
	s.logger.Info("XML-RPC command", "method", "off")
	if err := s.controller.TurnOff(s.fade); err != nil {
		return err
	}
	reply.State = string(backlight.PowerOff)
	return nil
}

// Server hosts the XML-RPC endpoint on its own listener, mirroring the
// stand-alone port the original panel integration expects.
type Server struct {
	rpcServer  *rpc.Server
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates the XML-RPC server bound to the controller. fade is
// the per-pixel wipe delay used by Off; zero or negative falls back to the
// controller default.
func NewServer(controller *backlight.Controller, fade time.Duration) *Server {
	logger := logging.GetLogger("xmlrpc")

	if fade <= 0 {
		fade = backlight.DefaultFade
	}

	rpcServer := rpc.NewServer()
	rpcServer.RegisterCodec(xml.NewCodec(), "text/xml")
	if err := rpcServer.RegisterService(&BacklightService{
		controller: controller,
		fade:       fade,
		logger:     logger,
	}, "Backlight"); err != nil {
		// Registration only fails for malformed service types.
		logger.Error("Failed to register XML-RPC service", "error", err)
	}

	return &Server{
		rpcServer: rpcServer,
		logger:    logger,
	}
}

// Handler returns the HTTP handler serving XML-RPC requests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	// Serve both the bare root and the conventional /RPC2 path.
	mux.Handle("/", s.rpcServer)
	mux.Handle("/RPC2", s.rpcServer)
	return mux
}

// Start serves XML-RPC on addr until Stop is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting XML-RPC server", "addr", addr)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Stop shuts the listener down.
func (s *Server) Stop() error {
	s.logger.Info("Stopping XML-RPC server")
	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}
