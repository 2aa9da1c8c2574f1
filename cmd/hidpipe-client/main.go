//go:build linux

// Package main implements the hidpipe-client binary, which runs inside
// the guest: it dials the host over vsock, recreates every announced
// device with uinput, and replays forwarded input events.
package main

import (
	"fmt"
	"os"

	"github.com/hidpipe/hidpipe/internal/client"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

func main() {
	log := newLogger().Sugar()
	defer log.Sync()

	c, err := client.Connect(log, unix.VMADDR_CID_HOST)
	if err != nil {
		log.Fatalw("failed to connect to host", "error", err)
	}
	defer c.Close()

	log.Infow("connected to host", "port", client.HostPort)

	err = c.Run()
	if err != nil {
		log.Fatalw("client exited", "error", err)
	}
}

func newLogger() *zap.Logger {
	var (
		log *zap.Logger
		err error
	)

	if os.Getenv("HIDPIPE_DEBUG") != "" {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "hidpipe-client: failed to build logger:", err)
		os.Exit(1)
	}

	return log
}
