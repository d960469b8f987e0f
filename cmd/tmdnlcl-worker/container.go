package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"go.uber.org/dig"

	"github.com/tmdnlcl/relay-worker/internal/api"
	"github.com/tmdnlcl/relay-worker/internal/classify"
	"github.com/tmdnlcl/relay-worker/internal/config"
	"github.com/tmdnlcl/relay-worker/internal/jobs"
	"github.com/tmdnlcl/relay-worker/internal/jobs/stats"
	"github.com/tmdnlcl/relay-worker/internal/jobs/twitter"
	"github.com/tmdnlcl/relay-worker/internal/jobserver"
	"github.com/tmdnlcl/relay-worker/internal/media"
	"github.com/tmdnlcl/relay-worker/internal/store"
)

const mediaFetchRetries = 3

func ProvideStore(jc config.JobConfiguration) (*store.Store, error) {
	return store.Open(jc.GetStoreConfig())
}

func ProvideLiveness(st *store.Store) (*store.StatsHandle, error) {
	return st.OpenStats(context.Background())
}

func ProvideCollector(jc config.JobConfiguration) *stats.StatsCollector {
	return stats.StartCollector(jc.GetWorkerConfig().StatsBufSize)
}

func ProvideAuthenticator(jc config.JobConfiguration) (twitter.Authenticator, error) {
	tc := jc.GetTwitterConfig()
	if tc.ConsumerKey == "" || tc.ConsumerSecret == "" {
		return nil, fmt.Errorf("TWITTER_API_KEY and TWITTER_API_SECRET must be set")
	}
	auth, err := twitter.NewAuthenticator(tc,
		twitter.RateLimit(tc.RequestsPerSec, tc.Burst),
		twitter.Timeout(tc.HTTPTimeout),
		twitter.UserCache(tc.UserCacheSize, tc.UserCacheTTL),
	)
	if err != nil {
		return nil, err
	}
	lim := auth.Limiter()
	logrus.Infof("Pacing X API calls at %.2f/s with burst %d, timeout %v", float64(lim.Limit()), lim.Burst(), auth.ClientTimeout())
	return auth, nil
}

func ProvideClassifier(jc config.JobConfiguration) *classify.Classifier {
	return classify.New(jc.GetPatternConfig())
}

func ProvideTransformer(jc config.JobConfiguration, c *classify.Classifier) *jobs.Transformer {
	client := &http.Client{Timeout: jc.GetTwitterConfig().HTTPTimeout}
	return jobs.NewTransformer(c, media.NewResolver(media.NewHTTPFetcher(client, mediaFetchRetries)))
}

func ProvideRelay(jc config.JobConfiguration, st *store.Store, liveness *store.StatsHandle, auth twitter.Authenticator, t *jobs.Transformer, c *stats.StatsCollector) *jobs.Relay {
	tc := jc.GetTwitterConfig()
	return jobs.NewRelay(st, st, liveness, auth, t, c, jobs.RelayOptions{
		APIMode:             tc.APIMode,
		SearchKeyword:       tc.SearchKeyword,
		ArchiveDeleteRemote: jc.GetWorkerConfig().ArchiveDeleteRemote,
	})
}

func ProvideArchive(st *store.Store, auth twitter.Authenticator, c *classify.Classifier, collector *stats.StatsCollector) *jobs.Archive {
	return jobs.NewArchive(st, st, auth, c, collector)
}

func ProvideJobServer(jc config.JobConfiguration, st *store.Store, relay *jobs.Relay, c *stats.StatsCollector) *jobserver.JobServer {
	return jobserver.NewJobServer(jc.GetWorkerConfig(), st, relay, c)
}

func ProvideEcho(jc config.JobConfiguration, st *store.Store, liveness *store.StatsHandle, archive *jobs.Archive, collector *stats.StatsCollector, js *jobserver.JobServer) *echo.Echo {
	return api.New(jc, api.Deps{
		Archive:   archive,
		Accounts:  st,
		Liveness:  liveness,
		Collector: collector,
		JobServer: js,
		DB:        st,
	})
}

// Application runs the job server and the API until the context is done.
type Application struct {
	jc        config.JobConfiguration
	store     *store.Store
	jobServer *jobserver.JobServer
	echo      *echo.Echo
}

func NewApplication(jc config.JobConfiguration, st *store.Store, js *jobserver.JobServer, e *echo.Echo) *Application {
	return &Application{jc: jc, store: st, jobServer: js, echo: e}
}

func (app *Application) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	apiErr := make(chan error, 1)
	go func() {
		apiErr <- api.Start(ctx, app.jc.ListenAddress(), app.echo)
	}()

	done := make(chan error, 1)
	go func() {
		done <- app.jobServer.Run(ctx)
	}()

	select {
	case err := <-apiErr:
		if err != nil {
			logrus.WithError(err).Error("API server stopped")
		}
		cancel()
		<-done
		return err
	case err := <-done:
		return err
	}
}

func (app *Application) Shutdown() {
	app.jobServer.Shutdown()
	if err := app.store.Close(); err != nil {
		logrus.WithError(err).Warn("Failed to close the database")
	}
}

func BuildContainer(jc config.JobConfiguration) (*dig.Container, error) {
	container := dig.New()

	providers := []struct {
		name string
		fn   any
	}{
		{"config", func() config.JobConfiguration { return jc }},
		{"store", ProvideStore},
		{"liveness", ProvideLiveness},
		{"stats collector", ProvideCollector},
		{"authenticator", ProvideAuthenticator},
		{"classifier", ProvideClassifier},
		{"transformer", ProvideTransformer},
		{"relay", ProvideRelay},
		{"archive", ProvideArchive},
		{"job server", ProvideJobServer},
		{"echo", ProvideEcho},
		{"application", NewApplication},
	}
	for _, p := range providers {
		if err := container.Provide(p.fn); err != nil {
			return nil, fmt.Errorf("failed to provide %s: %w", p.name, err)
		}
	}

	return container, nil
}
