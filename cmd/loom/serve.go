package main

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	loomhttp "github.com/weftworks/loom/pkg/adapters/http"
	"github.com/weftworks/loom/pkg/definition"
	"github.com/weftworks/loom/pkg/machine"
	"github.com/weftworks/loom/pkg/render"
	"github.com/weftworks/loom/pkg/workflow"
)

var serveCmd = &cobra.Command{
	Use:   "serve <definition.yaml>",
	Short: "Serve a workflow over HTTP with SSE streaming",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := buildLogger(cmd)

		def, err := definition.Load(args[0])
		if err != nil {
			return err
		}

		registry := prometheus.NewRegistry()
		metrics := machine.NewMetrics(registry)

		m, err := definition.NewCompiler(definition.WithLogger(logger)).Compile(def, machine.WithMetrics(metrics))
		if err != nil {
			return err
		}

		session, err := buildSession(cmd, logger)
		if err != nil {
			return err
		}
		killStore, resumeStore, closeStores, err := buildStores(cmd)
		if err != nil {
			return err
		}
		defer closeStores()

		driver := workflow.NewDriver(m, session, killStore,
			workflow.WithResumeStore(resumeStore),
			workflow.WithRenderer(render.New(render.WithLogger(logger))),
			workflow.WithLogger(logger),
		)

		addr, _ := cmd.Flags().GetString("addr")
		handler := loomhttp.NewHandler(driver, killStore,
			loomhttp.WithLogger(logger),
			loomhttp.WithMetricsRegistry(registry),
		)

		server := &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}
		logger.Info("serving workflow", "machine", m.Name(), "addr", addr)
		return server.ListenAndServe()
	},
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "Listen address")
	serveCmd.Flags().String("model-cmd", "", "Program invoked for model completions")
	rootCmd.AddCommand(serveCmd)
}
