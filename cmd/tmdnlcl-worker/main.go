package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/tmdnlcl/relay-worker/internal/config"
)

func main() {
	flags := pflag.NewFlagSet("tmdnlcl-worker", pflag.ExitOnError)
	workers := flags.Int("workers", 0, "number of polling workers (overrides WORKERS)")
	listen := flags.String("listen", "", "API listen address (overrides LISTEN_ADDRESS)")
	envFile := flags.String("env", "", "extra env file loaded before the configuration")
	_ = flags.Parse(os.Args[1:])

	if _, err := maxprocs.Set(maxprocs.Logger(logrus.Debugf)); err != nil {
		logrus.WithError(err).Warn("Failed to set GOMAXPROCS")
	}

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			logrus.WithError(err).Fatalf("Failed reading env file %s", *envFile)
		}
	}

	jc := config.ReadConfig()
	if flags.Changed("workers") {
		jc["workers"] = *workers
	}
	if flags.Changed("listen") {
		jc["listen_address"] = *listen
	}

	container, err := BuildContainer(jc)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to build container")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = container.Invoke(func(app *Application) error {
		defer app.Shutdown()
		return app.Run(ctx)
	})
	if err != nil {
		logrus.WithError(err).Fatal("Worker stopped with an error")
	}
	logrus.Info("Bye")
}
