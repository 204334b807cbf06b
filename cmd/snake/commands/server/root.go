package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gridsnake/engine/api"
	"github.com/gridsnake/engine/controller"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	listen      = ":3005"
	backend     = "inmem"
	backendArgs = ""
	promEnable  = true
	promListen  = ":9000"
)

// RootCmd provides the relay server command.
var RootCmd = &cobra.Command{
	Use:    "server",
	Short:  "serve the room relay and its api",
	PreRun: func(c *cobra.Command, args []string) { prometheus() },
	Run: func(c *cobra.Command, args []string) {
		store, closeStore, err := openStore(backend, backendArgs)
		if err != nil {
			log.WithError(err).WithField("backend", backend).Error("unable to start up backend store")
			os.Exit(1)
		}
		defer closeStore()

		store = controller.InstrumentStore(store)
		srv := api.New(listen, store, controller.NewServer(store))

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt)
		go func() {
			<-sig
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				log.WithError(err).Warn("unclean shutdown")
			}
		}()

		srv.WaitForExit()
	},
}

func init() {
	RootCmd.Flags().StringVarP(&listen, "listen", "l", listen, "address for the relay to bind to")
	RootCmd.Flags().StringVarP(&backend, "backend", "b", backend, "store backend, as one of: [inmem, file, redis, sql]")
	RootCmd.Flags().StringVarP(&backendArgs, "backend-args", "a", backendArgs, "options to pass to the backend being used")
	RootCmd.Flags().BoolVar(&promEnable, "prometheus", promEnable, "enable prometheus metrics")
	RootCmd.Flags().StringVar(&promListen, "prometheus-listen", promListen, "prometheus http endpoint")
}

func prometheus() {
	if !promEnable {
		log.Info("prometheus exporter not enabled")
		return
	}

	log.WithField("addr", promListen).Info("starting prometheus exporter")
	go func() {
		r := http.NewServeMux()
		r.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(promListen, r); err != nil {
			log.WithError(err).Warn("prometheus failed to listen")
		}
	}()
}
