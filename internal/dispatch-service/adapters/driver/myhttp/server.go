package myhttp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"courier-dispatch/internal/config"
	"courier-dispatch/internal/dispatch-service/adapters/driven/bm"
	"courier-dispatch/internal/dispatch-service/adapters/driven/db"
	"courier-dispatch/internal/dispatch-service/adapters/driver/myhttp/handle"
	"courier-dispatch/internal/dispatch-service/adapters/driver/myhttp/middleware"
	"courier-dispatch/internal/dispatch-service/adapters/driver/myhttp/ws"
	ports "courier-dispatch/internal/dispatch-service/core/ports/driven"
	"courier-dispatch/internal/dispatch-service/core/services"
	"courier-dispatch/internal/mylogger"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const WaitTime = 10

type Server struct {
	mux    *http.ServeMux
	cfg    *config.Config
	srv    *http.Server
	mylog  mylogger.Logger
	db     *db.DataBase
	mb     ports.ITelemetryBroker
	ctx    context.Context
	appCtx context.Context
	mu     sync.Mutex
}

func NewServer(ctx, appCtx context.Context, mylog mylogger.Logger, cfg *config.Config) *Server {
	return &Server{
		ctx:    ctx,
		appCtx: appCtx,
		cfg:    cfg,
		mylog:  mylog,
		mux:    http.NewServeMux(),
	}
}

// Run initializes routes and starts listening. It returns when the server stops.
func (s *Server) Run() error {
	mylog := s.mylog.Action("server_started")

	database, err := db.ConnectDB(s.ctx, s.cfg.DB, s.mylog)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	s.db = database
	mylog.Info("Successful database connection")

	mb, err := bm.New(s.appCtx, *s.cfg.RabbitMq, s.mylog)
	if err != nil {
		return fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	s.mb = mb
	mylog.Info("Successful message broker connection")

	if err := s.Configure(); err != nil {
		return fmt.Errorf("failed to configure routes: %w", err)
	}

	s.mu.Lock()
	s.srv = &http.Server{
		Addr:    fmt.Sprintf(":%v", s.cfg.Srv.DispatchServicePort),
		Handler: s.mux,
	}
	s.mu.Unlock()

	mylog = mylog.WithGroup("details").With("port", s.cfg.Srv.DispatchServicePort)

	mylog.Info("server is running")
	return s.startHTTPServer()
}

// Stop provides a programmatic shutdown. Accepts a context for timeout control.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mylog.Info("Shutting down HTTP server...")

	if s.srv != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, WaitTime*time.Second)
		defer cancel()

		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.mylog.Error("Failed to shut down HTTP server gracefully", err)
			return fmt.Errorf("http server shutdown: %w", err)
		}
	}

	if s.mb != nil {
		if err := s.mb.Close(); err != nil {
			s.mylog.Error("Failed to close message broker", err)
		}
	}

	if s.db != nil {
		s.db.Close()
		s.mylog.Info("Database closed")
	}

	s.mylog.Info("HTTP server shut down gracefully")
	return nil
}

func (s *Server) startHTTPServer() error {
	errCh := make(chan error, 1)

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		} else {
			errCh <- nil
		}
	}()

	select {
	case <-s.ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Configure wires repositories, services, handlers and routes, and starts the
// telemetry consumer.
func (s *Server) Configure() error {
	// Repositories
	repos := db.New(s.db)

	// Services
	authService := services.NewAuthService(s.cfg.App.JwtSecret)
	identityCache := services.NewIdentityCache(
		repos.CourierRepository,
		time.Duration(s.cfg.Cache.IdentityTTLSeconds)*time.Second,
		s.mylog,
	)
	dispatcher := ws.NewDispatcher(authService, s.mylog)
	deliveryService := services.NewDeliveryService(repos.DeliveryRepository, repos.CourierRepository, repos.LocationRepository, s.mylog)
	syncService := services.NewSyncService(repos.DeliveryRepository, repos.LocationRepository, s.mylog)
	trackingService := services.NewTrackingService(repos.DeliveryRepository, repos.LocationRepository, repos.CourierRepository, s.mylog)
	ingestService := services.NewIngestService(authService, identityCache, repos.LocationRepository, repos.DeliveryRepository, dispatcher, s.mylog)

	// Telemetry consumer
	consumer := bm.NewTelemetryConsumer(s.appCtx, s.mb, ingestService, s.cfg.App.TopicPrefix, s.mylog)
	consumer.SubscribeForMessages()

	// Handlers
	deliveryHandler := handle.NewDeliveryHandler(deliveryService, s.mylog)
	syncHandler := handle.NewSyncHandler(syncService, s.mylog)
	trackingHandler := handle.NewTrackingHandler(trackingService, s.mylog)

	authMiddleware := middleware.NewAuthMiddleware(authService)

	// Register routes
	s.mux.Handle("POST /deliveries", authMiddleware.WrapBackOffice(deliveryHandler.CreateDelivery()))
	s.mux.Handle("GET /deliveries", authMiddleware.Wrap(deliveryHandler.ListDeliveries()))
	s.mux.Handle("GET /deliveries/{delivery_id}", authMiddleware.Wrap(deliveryHandler.GetDelivery()))
	s.mux.Handle("POST /deliveries/{delivery_id}/assign", authMiddleware.WrapBackOffice(deliveryHandler.AssignDelivery()))
	s.mux.Handle("POST /deliveries/{delivery_id}/start", authMiddleware.WrapCourier(deliveryHandler.StartDelivery()))
	s.mux.Handle("POST /deliveries/{delivery_id}/complete", authMiddleware.WrapCourier(deliveryHandler.CompleteDelivery()))
	s.mux.Handle("POST /deliveries/{delivery_id}/fail", authMiddleware.WrapCourier(deliveryHandler.FailDelivery()))
	s.mux.Handle("POST /deliveries/{delivery_id}/reschedule", authMiddleware.WrapBackOffice(deliveryHandler.RescheduleDelivery()))
	s.mux.Handle("POST /deliveries/{delivery_id}/cancel", authMiddleware.WrapBackOffice(deliveryHandler.CancelDelivery()))
	s.mux.Handle("DELETE /deliveries/{delivery_id}", authMiddleware.WrapBackOffice(deliveryHandler.DeleteDelivery()))

	s.mux.Handle("POST /sync", authMiddleware.WrapCourier(syncHandler.Sync()))

	s.mux.Handle("GET /couriers/locations", authMiddleware.Wrap(deliveryHandler.CourierLocations()))
	s.mux.Handle("GET /couriers/{courier_id}/active", authMiddleware.WrapCourier(deliveryHandler.CourierActive()))

	// public tracking routes
	s.mux.Handle("GET /track/{token}", trackingHandler.Snapshot())
	s.mux.Handle("GET /track/{token}/location", trackingHandler.Location())
	s.mux.Handle("GET /track/{token}/route", trackingHandler.Route())

	// websocket routes
	s.mux.Handle("GET /ws/dashboard", dispatcher.WsHandler())

	s.mux.Handle("GET /health", s.healthHandler())
	s.mux.Handle("GET /metrics", promhttp.Handler())

	return nil
}

func (s *Server) healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{"db": "ok", "broker": "ok"}
		code := http.StatusOK

		if err := s.db.IsAlive(r.Context()); err != nil {
			status["db"] = "down"
			code = http.StatusServiceUnavailable
		}
		if !s.mb.IsAlive() {
			status["broker"] = "down"
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		fmt.Fprintf(w, `{"db":%q,"broker":%q}`, status["db"], status["broker"])
	}
}
