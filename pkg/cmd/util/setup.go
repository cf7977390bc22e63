package util

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/mpapenbr/itslogin/log"
	"github.com/mpapenbr/itslogin/pkg/config"
	"github.com/mpapenbr/itslogin/pkg/utils"
)

func parseLogLevel(l string, defaultVal log.Level) log.Level {
	level, err := log.ParseLevel(l)
	if err != nil {
		return defaultVal
	}
	return level
}

// SetupLogger installs the default logger according to the log flags
func SetupLogger() *log.Logger {
	var logger *log.Logger
	switch config.LogFormat {
	case "json":
		logger = log.New(
			os.Stderr,
			parseLogLevel(config.LogLevel, log.InfoLevel),
			log.WithCaller(true),
			log.AddCallerSkip(1))
	default:
		logger = log.DevLogger(
			os.Stderr,
			parseLogLevel(config.LogLevel, log.WarnLevel),
			log.WithCaller(true),
			log.AddCallerSkip(1))
	}
	if config.LogFilter != "" {
		filtered, err := logger.WithFilter(config.LogFilter)
		if err != nil {
			logger.Warn("invalid log filter, ignoring it",
				log.String("filter", config.LogFilter),
				log.ErrorField(err))
		} else {
			logger = filtered
		}
	}
	log.ResetDefault(logger)
	return logger
}

// SetupTelemetry enables telemetry if requested. The returned func must be
// called before the program exits.
func SetupTelemetry(ctx context.Context) func() {
	if !config.EnableTelemetry {
		return func() {}
	}
	log.Info("Enabling telemetry")
	telemetry, err := config.SetupTelemetry(ctx)
	if err != nil {
		log.Warn("Could not setup telemetry", log.ErrorField(err))
		return func() {}
	}
	return telemetry.Shutdown
}

// WaitForRequiredServices blocks until the auth service (and NATS, if used)
// can be reached. An empty WaitForServices disables the check.
func WaitForRequiredServices() error {
	if config.WaitForServices == "" {
		return nil
	}
	timeout, err := time.ParseDuration(config.WaitForServices)
	if err != nil {
		log.Warn("Invalid duration value. Setting default 60s", log.ErrorField(err))
		timeout = 60 * time.Second
	}

	wg := sync.WaitGroup{}
	errs := make(chan error, 2)
	check := func(probe func() error) {
		defer wg.Done()
		if err := probe(); err != nil {
			errs <- err
		}
	}
	wg.Add(1)
	go check(func() error {
		return utils.WaitForHTTPResponse(config.AuthServiceURL, timeout)
	})
	if config.SessionStore == "nats" {
		if addr := utils.AddrFromURL(config.NATSURL); addr != "" {
			wg.Add(1)
			go check(func() error { return utils.WaitForTCP(addr, timeout) })
		}
	}
	log.Debug("Waiting for connection checks to return")
	wg.Wait()
	close(errs)
	if err := <-errs; err != nil {
		return err
	}
	log.Debug("Required services are available")
	return nil
}
