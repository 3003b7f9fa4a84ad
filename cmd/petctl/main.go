package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/cli"
	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/config"
)

func main() {
	v, err := config.NewClientViper()
	if err != nil {
		fmt.Fprintf(os.Stderr, "petctl: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx, v, os.Stdin, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "petctl: %v\n", err)
		stop()
		os.Exit(1)
	}
}
