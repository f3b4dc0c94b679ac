// Command hotspotd turns a Linux host into a dedicated Wi-Fi access point
// for tethering a VR headset. It runs as a single foreground process that
// owns one lifecycle.Core value; stdout/stderr are the only outputs until
// an external control plane is wired in (see requestQueue).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		cancel()
	}()

	if err := Execute(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "hotspotd: %v\n", err)
		os.Exit(1)
	}
}
