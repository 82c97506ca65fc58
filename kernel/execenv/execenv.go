package execenv

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// FileSystem defines file operations for tools. Implementations can target
// the host filesystem or a test double.
type FileSystem interface {
	Getwd() (string, error)
	Stat(path string) (os.FileInfo, error)
	ReadDir(path string) ([]os.DirEntry, error)
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte, perm os.FileMode) error
	MkdirAll(path string, perm os.FileMode) error
	WalkDir(root string, fn fs.WalkDirFunc) error
}

// CommandRequest is one command execution request. Timeout is caller
// specified; runners clamp it to their configured ceiling.
type CommandRequest struct {
	Command string
	Dir     string
	Timeout time.Duration
}

// CommandResult is one command execution result. A timeout is reported via
// TimedOut, never as a hang and never as a Go error.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
}

// CommandRunner executes shell commands for tools.
type CommandRunner interface {
	Run(context.Context, CommandRequest) (CommandResult, error)
}

type hostFileSystem struct{}

// NewHostFileSystem returns the host-backed FileSystem.
func NewHostFileSystem() FileSystem {
	return &hostFileSystem{}
}

func (h *hostFileSystem) Getwd() (string, error) {
	return os.Getwd()
}

func (h *hostFileSystem) Stat(path string) (os.FileInfo, error) {
	return os.Stat(path)
}

func (h *hostFileSystem) ReadDir(path string) ([]os.DirEntry, error) {
	return os.ReadDir(path)
}

func (h *hostFileSystem) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (h *hostFileSystem) WriteFile(path string, data []byte, perm os.FileMode) error {
	return os.WriteFile(path, data, perm)
}

func (h *hostFileSystem) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (h *hostFileSystem) WalkDir(root string, fn fs.WalkDirFunc) error {
	return filepath.WalkDir(root, fn)
}
