package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"

	"github.com/labstack/echo-contrib/pprof"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/tmdnlcl/relay-worker/internal/config"
	"github.com/tmdnlcl/relay-worker/internal/jobs"
	"github.com/tmdnlcl/relay-worker/internal/jobs/stats"
	"github.com/tmdnlcl/relay-worker/internal/metrics"
)

// JobServer is what the API reads from the running job server.
type JobServer interface {
	Readiness
	SweepReader
}

// Deps are the services the API serves.
type Deps struct {
	Archive   *jobs.Archive
	Accounts  AccountCounter
	Liveness  LivenessReader
	Collector *stats.StatsCollector
	JobServer JobServer
	DB        Pinger
}

// New builds the Echo instance with every route registered.
func New(jc config.JobConfiguration, d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	switch strings.ToLower(jc.GetString("log_level", "info")) {
	case "debug":
		e.Logger.SetLevel(log.DEBUG)
	case "warn", "warning":
		e.Logger.SetLevel(log.WARN)
	case "error":
		e.Logger.SetLevel(log.ERROR)
	default:
		e.Logger.SetLevel(log.INFO)
	}

	healthMetrics := NewHealthMetrics()

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(APIKeyAuthMiddleware(jc))
	e.Use(HealthMetricsMiddleware(healthMetrics))

	// Health check endpoints (no auth required)
	e.GET(HealthCheckPath, Healthz())
	var readiness Readiness
	var sweeps SweepReader
	if d.JobServer != nil {
		readiness, sweeps = d.JobServer, d.JobServer
	}
	e.GET(ReadinessCheckPath, Readyz(readiness, d.DB, healthMetrics))

	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	e.GET("/stats", statsHandler(d.Accounts, d.Liveness, sweeps, d.Collector))

	/*
		- POST   /accounts: register an account
		- PUT    /accounts/:id/mode: switch between instant and archive
		- GET    /accounts/:id/tweets: list archived tweets
		- POST   /accounts/:id/tweets/:tweet_id/post: publish an archived tweet
		- DELETE /accounts/:id/tweets/:tweet_id: discard an archived tweet
	*/
	accounts := e.Group("/accounts")
	accounts.POST("", register(d.Archive))
	accounts.PUT("/:id/mode", setMode(d.Archive))
	accounts.GET("/:id/tweets", listTweets(d.Archive))
	accounts.POST("/:id/tweets/:tweet_id/post", postTweet(d.Archive))
	accounts.DELETE("/:id/tweets/:tweet_id", deleteTweet(d.Archive))

	if jc.GetBool("profiling_enabled", false) {
		pprof.Register(e)
		enableProfiling(e)

		debug := e.Group("/debug/pprof")
		debug.POST("/enable", func(c echo.Context) error {
			enableProfiling(e)
			return c.String(http.StatusOK, "pprof enabled")
		})
		debug.POST("/disable", func(c echo.Context) error {
			disableProfiling(e)
			return c.String(http.StatusOK, "pprof disabled")
		})
	}

	return e
}

// Start serves e on listenAddress until ctx is done.
func Start(ctx context.Context, listenAddress string, e *echo.Echo) error {
	go func() {
		<-ctx.Done()
		if err := e.Close(); err != nil {
			e.Logger.Error("Failed to close Echo server: ", err)
		}
	}()

	e.Logger.Info(fmt.Sprintf("Starting server on %s", listenAddress))
	if err := e.Start(listenAddress); err != nil && !errors.Is(err, http.ErrServerClosed) {
		e.Logger.Error(err)
		return err
	}
	return nil
}

// enableProfiling turns on the block and mutex sampling probes.
func enableProfiling(e *echo.Echo) {
	e.Logger.Info("Enabling profiling - this may impact performance")

	// Sample time in nanoseconds, see https://github.com/DataDog/go-profiler-notes/blob/main/block.md#usage
	runtime.SetBlockProfileRate(500)
	runtime.SetMutexProfileFraction(1)
}

// disableProfiling stops the sampling probes. The pprof routes stay registered.
func disableProfiling(e *echo.Echo) {
	e.Logger.Info("Disabling performance-intensive profiling probes")

	runtime.SetBlockProfileRate(0)
	runtime.SetMutexProfileFraction(0)
}
