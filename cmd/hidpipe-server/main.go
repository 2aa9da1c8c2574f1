//go:build linux

// Package main implements the hidpipe-server binary, which runs on the
// host: it discovers joystick-shaped evdev devices, announces them to
// connecting guests over a Unix socket, and forwards their input
// events.
package main

import (
	"fmt"
	"os"

	"github.com/hidpipe/hidpipe/internal/server"
	"github.com/hidpipe/hidpipe/linux/xdg"
	"go.uber.org/zap"
)

const socketName = "hidpipe.sock"

func main() {
	log := newLogger().Sugar()
	defer log.Sync()

	sockPath, err := xdg.SocketPath(os.Getenv, socketName)
	if err != nil {
		log.Fatalw("cannot locate runtime directory", "error", err)
	}

	srv, err := server.New(log, sockPath)
	if err != nil {
		log.Fatalw("failed to start server", "error", err)
	}
	defer srv.Close()

	err = srv.ScanDevices()
	if err != nil {
		log.Fatalw("initial device scan failed", "error", err)
	}

	log.Infow("listening", "socket", sockPath)

	err = srv.Run()
	if err != nil {
		log.Fatalw("server exited", "error", err)
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
		fmt.Fprintln(os.Stderr, "hidpipe-server: failed to build logger:", err)
		os.Exit(1)
	}

	return log
}
