// Command satellite-server runs the satellite data API as a standalone
// HTTP server. Region detection jobs run in process unless a worker
// Lambda or state machine is configured.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/agrisa/satellite-data-service/internal/boot"
	"github.com/agrisa/satellite-data-service/internal/httpapi"
	"github.com/agrisa/satellite-data-service/internal/logging"
)

var (
	hostFlag     string
	portFlag     int
	logLevelFlag string
)

var rootCmd = &cobra.Command{
	Use:   "satellite-server",
	Short: "Serve the satellite data API",
	Long: `satellite-server exposes NDVI, NDMI and radar time series, farm imagery
and field boundary detection over HTTP. Configuration comes from the
environment (GEE_PROJECT_ID, GEE_SERVICE_ACCOUNT_KEY, ...); flags override
the listen address and log level.

Examples:
  satellite-server
  satellite-server --port 9000 --log-level debug`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().StringVar(&hostFlag, "host", "", "Host to bind (default from HOST)")
	rootCmd.Flags().IntVar(&portFlag, "port", 0, "Port to listen on (default from PORT)")
	rootCmd.Flags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn, error")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) {
	logging.Init()
	if logLevelFlag != "" {
		logging.SetLevel(logLevelFlag)
	}

	app := boot.New(context.Background(), "satellite-server")
	if hostFlag != "" {
		app.Config.Host = hostFlag
	}
	if portFlag != 0 {
		app.Config.Port = portFlag
	}
	app.StartupLog(commitHash, buildTime)

	srv := &http.Server{
		Addr:         app.Config.Addr(),
		Handler:      httpapi.New(app.Service, httpapi.Options{AllowedOrigins: app.Config.AllowedOrigins}),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info().Msg("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("Shutdown incomplete")
		}
	}()

	log.Info().Str("addr", srv.Addr).Msg("Starting satellite data server")
	fmt.Printf("\n  Satellite API: http://%s/satellite/health\n\n", srv.Addr)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed")
	}
	<-done
	app.Close()
}
