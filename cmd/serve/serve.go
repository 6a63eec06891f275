package serve

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/aerodesk/aerodesk/internal/app"
	"github.com/aerodesk/aerodesk/internal/buildinfo"
	"github.com/aerodesk/aerodesk/internal/conf"
	"github.com/aerodesk/aerodesk/internal/logger"
)

// Command creates the command that runs the notification bus server.
func Command(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the notification bus",
		Long:  "Serve the HTTP API and change streams for the ATC and ground crew panels until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen != "" {
				settings.WebServer.Listen = listen
			}
			return run(cmd.Context(), settings, build)
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "Listen address, overrides webserver.listen")
	return cmd
}

func run(parent context.Context, settings *conf.Settings, build *buildinfo.Context) error {
	log := logger.Global().Module("main")
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(settings, build)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error("failed to close store", logger.Error(err))
		}
		_ = logger.Global().Close()
	}()

	if err := a.Start(ctx); err != nil {
		return err
	}
	log.Info("aerodesk started",
		logger.String("version", build.Version()),
		logger.String("store", settings.Notifications.Store.Type),
		logger.Bool("mqtt", settings.MQTT.Enabled),
		logger.Bool("push", settings.Push.Enabled))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.Serve(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		return nil
	})
	return g.Wait()
}
