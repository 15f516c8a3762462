package web

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/atlassian/galerasync/pkg/healthcheck"
	"github.com/atlassian/galerasync/pkg/reconciler"
)

// StatusProvider reports the state of the reconciliation.
type StatusProvider interface {
	Status() reconciler.Status
}

type httpServer struct {
	logger  logrus.FieldLogger
	address string
	Router  *mux.Router
}

type route struct {
	path    string
	handler http.HandlerFunc
	method  string
	name    string
}

var done = struct{}{}

// NewHttpServer creates a server exposing health checks, Prometheus metrics from gatherer, and the membership
// status.  gatherer and status may be nil, in which case their routes are not registered.
func NewHttpServer(
	logger logrus.FieldLogger,
	address string,
	healthChecks []healthcheck.HealthcheckFunc,
	gatherer prometheus.Gatherer,
	status StatusProvider,
) (*httpServer, error) {
	server := &httpServer{
		logger:  logger,
		address: address,
	}

	hc := &healthChecker{logger: logger, healthChecks: healthChecks}
	routes := []route{
		{path: "/healthcheck", handler: hc.healthCheck, method: "GET", name: "healthcheck_get"},
	}

	if gatherer != nil {
		routes = append(routes,
			route{path: "/metrics", handler: promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}).ServeHTTP, method: "GET", name: "metrics_get"},
		)
	}

	if status != nil {
		mh := &membershipHandler{status: status}
		routes = append(routes,
			route{path: "/membership", handler: mh.membership, method: "GET", name: "membership_get"},
		)
	}

	router, err := createRoutes(routes)
	if err != nil {
		return nil, err
	}
	router.NotFoundHandler = server.logRequest(http.HandlerFunc(server.notFound))
	router.Use(server.logRequest)
	server.Router = router

	logger.WithFields(logrus.Fields{
		"address":           address,
		"enable-metrics":    gatherer != nil,
		"enable-membership": status != nil,
	}).Info("Created server")

	return server, nil
}

func (hs *httpServer) notFound(w http.ResponseWriter, req *http.Request) {
	w.WriteHeader(404)
	_, _ = w.Write([]byte("not found"))
}

func createRoutes(routes []route) (*mux.Router, error) {
	router := mux.NewRouter()

	for _, route := range routes {
		r := router.HandleFunc(route.path, route.handler).Methods(route.method).Name(route.name)
		if err := r.GetError(); err != nil {
			return nil, fmt.Errorf("error creating route %s: %v", route.name, err)
		}
	}

	return router, nil
}

func (hs *httpServer) logRequest(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		logFields := logrus.Fields{
			"srcip": strings.Split(req.RemoteAddr, ":")[0],
			"path":  req.URL.Path,
		}
		if route := mux.CurrentRoute(req); route == nil {
			logFields["method"] = req.Method
		} else {
			logFields["route"] = route.GetName()
		}
		if source := req.Header.Get("X-Forwarded-For"); source != "" {
			logFields["forwarded_for"] = source
		}

		start := time.Now()
		handler.ServeHTTP(w, req)
		dur := time.Since(start)

		logFields["duration"] = float64(dur) / float64(time.Millisecond)
		hs.logger.WithFields(logFields).Debug("request")
	})
}

// Run serves until the context is closed, then shuts down gracefully.
func (hs *httpServer) Run(ctx context.Context) {
	server := &http.Server{
		Addr:    hs.address,
		Handler: hs.Router,
	}

	chStopped := make(chan struct{}, 1)
	go hs.waitAndStop(ctx, server, chStopped)

	hs.logger.WithField("address", server.Addr).Info("listening")

	err := server.ListenAndServe()
	if err != http.ErrServerClosed {
		hs.logger.WithError(err).Error("web server failed")
		return
	}

	// Wait for graceful shutdown of existing connections
	select {
	case <-chStopped:
		// happy
	case <-time.After(6 * time.Second):
		hs.logger.Info("timeout waiting for webserver to stop")
	}
}

// waitAndStop will gracefully shut down the Server when the Context passed is cancelled.  It signals
// on chStopped when it is done.  There is no guarantee that it will actually signal, if the server
// does not shutdown.
func (hs *httpServer) waitAndStop(ctx context.Context, server *http.Server, chStopped chan<- struct{}) {
	<-ctx.Done()

	hs.logger.Info("shutting down web server")
	timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := server.Shutdown(timeoutCtx)
	if err != nil {
		hs.logger.WithError(err).Warn("failed to stop web server")
	}
	chStopped <- done
}
