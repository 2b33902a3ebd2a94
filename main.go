package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rtcbridge/rtcbridge/internal/admin"
	"github.com/rtcbridge/rtcbridge/internal/conf"
	"github.com/rtcbridge/rtcbridge/internal/limiting"
	"github.com/rtcbridge/rtcbridge/internal/metrics"
	"github.com/rtcbridge/rtcbridge/internal/platform"
	"github.com/rtcbridge/rtcbridge/internal/sessions"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Info().Msg("Starting RTC Bridge")
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Msgf("Could not load .env file: %v", err)
	}

	config := conf.NewConfig()
	client := platform.NewClient(config)
	coordinator := limiting.NewCoordinator(config)
	manager := sessions.NewManager(config, coordinator, client)
	adminServer := admin.NewServer(config, coordinator, manager)

	if err := client.Init(); err != nil {
		log.Fatal().Err(err)
	}

	if err := adminServer.Init(); err != nil {
		log.Fatal().Err(err)
	}

	// Initialization phase ended
	log.Info().Msg("Start accepting connections")

	if err := adminServer.AcceptConnections(); err != nil {
		log.Fatal().Err(err)
	}

	metrics.Serve(config.MetricsPort())

	log.Info().Msg("RTC Bridge started")

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)
	<-sigc

	log.Info().Msg("Shutting down")
	manager.Close()
	coordinator.Close()
	client.Close()
}
