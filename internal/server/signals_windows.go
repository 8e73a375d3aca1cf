//go:build windows

package server

import "context"

// no SIGUSR2 on windows
func listenEnableDebugLogging(ctx context.Context) {}
