package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"navbridge/internal/app"
	"navbridge/internal/telemetry"
)

func ServeCmd() *cobra.Command {
	var (
		listen   string
		mesh     string
		tickRate int
		nav      bool
		pprof    bool
		logJSON  string
	)
	c := &cobra.Command{
		Use:   "serve",
		Short: "run the bridge server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := telemetry.WrapLogger(log.New(cmd.ErrOrStderr(), "", log.LstdFlags))
			cfg := app.ApplyEnv(app.DefaultConfig(), os.Getenv, logger)
			cfg.Logger = logger

			flags := cmd.Flags()
			if flags.Changed("listen") {
				cfg.ListenAddr = listen
			}
			if flags.Changed("mesh") {
				cfg.MeshPath = mesh
			}
			if flags.Changed("tick-rate") && tickRate > 0 {
				cfg.TickRate = tickRate
			}
			if flags.Changed("nav") {
				cfg.NavEnabled = nav
			}
			if flags.Changed("pprof") {
				cfg.Observability.EnablePprofTrace = pprof
			}
			if flags.Changed("log-json") {
				cfg.LogJSONPath = logJSON
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return app.Run(ctx, cfg)
		},
	}
	c.Flags().StringVar(&listen, "listen", ":8080", "listen address")
	c.Flags().StringVar(&mesh, "mesh", "", "mesh file loaded at startup (.nav, .hjson or .json)")
	c.Flags().IntVar(&tickRate, "tick-rate", 15, "simulation ticks per second")
	c.Flags().BoolVar(&nav, "nav", true, "enable navigation natives")
	c.Flags().BoolVar(&pprof, "pprof", false, "mount /debug/pprof")
	c.Flags().StringVar(&logJSON, "log-json", "", "append structured events to this file")
	return c
}
