package rest

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/www"
	"github.com/go-chi/httprate"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	app "chip-counter/internal/application"
)

// Options configure the HTTP transport.
type Options struct {
	MaxUploadBytes     int64
	AllowedOrigins     []string
	RateLimitPerMinute int // per client IP on counting routes, 0 disables
}

// Server exposes the counting service over HTTP and websockets.
type Server struct {
	log     logs.Log
	counter *app.CountingService
	opts    Options
	router  *httprouter.Router

	upgrader   websocket.Upgrader
	httpServer *http.Server

	connsLock sync.Mutex
	conns     map[*websocket.Conn]struct{}
}

func NewServer(log logs.Log, counter *app.CountingService, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 20 << 20
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	s := &Server{
		log:     log,
		counter: counter,
		opts:    opts,
		router:  httprouter.New(),
		conns:   map[*websocket.Conn]struct{}{},
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(s.opts.AllowedOrigins, r.Header.Get("Origin"))
		},
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	plain := func(method, route string, handle httprouter.Handle) {
		www.Handle(s.log, s.router, method, route, handle)
	}

	// counting routes share one limiter per route, keyed by client IP
	limited := func(method, route string, handle httprouter.Handle) {
		if s.opts.RateLimitPerMinute <= 0 {
			plain(method, route, handle)
			return
		}
		limiter := httprate.Limit(s.opts.RateLimitPerMinute, time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				sendError(w, http.StatusTooManyRequests, msgRateLimited)
			}),
		)
		www.Handle(s.log, s.router, method, route, func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
			limiter(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				handle(w, r, params)
			})).ServeHTTP(w, r)
		})
	}

	plain("GET", "/", s.httpHealth)
	plain("GET", "/health", s.httpHealth)
	limited("POST", "/predict", s.httpPredict)
	limited("POST", "/predict/", s.httpPredict)
	limited("POST", "/predict/annotated", s.httpPredictAnnotated)
	plain("GET", "/history", s.httpHistory)
	limited("GET", "/ws/predict", s.httpPredictWebsocket)
}

// Handler is the full HTTP handler, including CORS.
func (s *Server) Handler() http.Handler {
	return cors(s.opts.AllowedOrigins, s.router)
}

// ListenAndServe blocks until the server stops. It returns nil after Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Infof("Listening on %v", addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests, waits for in-flight ones and closes websockets.
func (s *Server) Shutdown(ctx context.Context) error {
	s.connsLock.Lock()
	for c := range s.conns {
		c.Close()
	}
	s.connsLock.Unlock()

	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) addConn(c *websocket.Conn) {
	s.connsLock.Lock()
	s.conns[c] = struct{}{}
	s.connsLock.Unlock()
}

func (s *Server) removeConn(c *websocket.Conn) {
	s.connsLock.Lock()
	delete(s.conns, c)
	s.connsLock.Unlock()
}
