//go:build linux

// Package xdg implements the slice of the [XDG Base Directory
// Specification] that a session-scoped socket service needs: locating
// $XDG_RUNTIME_DIR.
//
// [XDG Base Directory Specification]: https://specifications.freedesktop.org/basedir-spec/latest
package xdg

import (
	"errors"
	"fmt"
	"path/filepath"
)

// ErrRuntimeDirUnset is returned by RuntimeDir when $XDG_RUNTIME_DIR is
// not present in the environment.
var ErrRuntimeDirUnset error = errors.New("XDG_RUNTIME_DIR is not set")

// RuntimeDir returns the value of $XDG_RUNTIME_DIR.
//
// From the [XDG Base Directory Specification]:
//
// $XDG_RUNTIME_DIR defines the base directory relative to which
// user-specific non-essential runtime files and other file objects
// (such as sockets, named pipes, ...) should be stored. The directory
// MUST be owned by the user, and they MUST be the only one having read
// and write access to it.
//
// Unlike most consumers of this variable, RuntimeDir does not fall back to
// a substitute directory when it is unset: a socket placed in the wrong
// location silently breaks session isolation, so callers are expected to
// treat ErrRuntimeDirUnset as fatal.
//
// [XDG Base Directory Specification]: https://specifications.freedesktop.org/basedir-spec/latest
func RuntimeDir(env func(string) string) (string, error) {
	var dir string

	dir = env("XDG_RUNTIME_DIR")
	if dir == "" || !filepath.IsAbs(dir) {
		return "", ErrRuntimeDirUnset
	}

	return dir, nil
}

// SocketPath returns the path of the named socket inside $XDG_RUNTIME_DIR.
func SocketPath(env func(string) string, name string) (string, error) {
	var (
		dir string
		err error
	)

	dir, err = RuntimeDir(env)
	if err != nil {
		return "", fmt.Errorf("xdg.SocketPath: %w", err)
	}

	return filepath.Join(dir, name), nil
}
