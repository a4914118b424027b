package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"authflow/internal/app"
)

// @title        authflow API
// @version      1.0
// @description  Credential and OAuth sign-in, email verification, password reset and settings.
// @BasePath     /
func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.Run(ctx); err != nil {
		slog.Error("server terminated with error", "error", err)
		os.Exit(1)
	}
}
