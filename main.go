package main

import (
	"context"
	"os/signal"
	"syscall"

	huddle "github.com/huddle-chat/huddle/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)
	defer stop()

	app := huddle.New(ctx, nil)
	app.Start()
}
