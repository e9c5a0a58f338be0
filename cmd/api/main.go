package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sandeepkv93/crowdprice-backend/internal/di"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := di.InitializeApp()
	if err != nil {
		log.Fatal(err)
	}
	if err := a.Run(ctx); err != nil {
		a.Logger.Error("server exited with errors", "error", err)
		os.Exit(1)
	}
}
