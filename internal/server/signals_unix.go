//go:build !windows

package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// listenEnableDebugLogging flips the global level to trace on SIGUSR2.
func listenEnableDebugLogging(ctx context.Context) {
	if zerolog.GlobalLevel() == zerolog.TraceLevel {
		return
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGUSR2)

	go func() {
		defer signal.Stop(c)

		select {
		case <-c:
			zerolog.SetGlobalLevel(zerolog.TraceLevel)
			log.Trace().Msg("trace logging enabled")
		case <-ctx.Done():
		}
	}()
}
