package mcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// StdioConfig describes how to spawn an MCP server using the stdio transport.
type StdioConfig struct {
	Command string
	Args    []string
	Dir     string
	Env     []string

	// Stderr, when provided, receives the standard error stream of the
	// spawned server process. Defaults to os.Stderr if nil.
	Stderr io.Writer

	Options Options
}

// NewStdioClient starts the configured command and binds its stdin/stdout
// pipes to the client transport. The caller owns the session and must invoke
// Close when it ends; any failure during initialisation stops the process
// before returning.
func NewStdioClient(ctx context.Context, cfg StdioConfig) (*Client, error) {
	if strings.TrimSpace(cfg.Command) == "" {
		return nil, errors.New("mcp: stdio command is required")
	}

	cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)
	cmd.Dir = cfg.Dir
	if len(cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), cfg.Env...)
	}
	if cfg.Stderr != nil {
		cmd.Stderr = cfg.Stderr
	} else {
		cmd.Stderr = os.Stderr
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("mcp: stdout pipe: %w", err)
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("mcp: stdin pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("mcp: start command: %w", err)
	}

	transport := NewStreamTransport(stdout, stdin, stdout, stdin)
	client, err := NewClient(ctx, transport, cfg.Options)
	if err != nil {
		transport.Close()
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, err
	}

	// Close the transport when the process exits to unblock any pending
	// reads; closing the transport in turn lets the process see EOF.
	var once sync.Once
	go func() {
		_ = cmd.Wait()
		once.Do(func() {
			_ = transport.Close()
		})
	}()

	return client, nil
}

// ServeStdio runs a server over the current process's standard streams until
// the peer disconnects or the context is cancelled. Intended as the body of
// a tool-provider binary.
func ServeStdio(ctx context.Context, srv *Server) error {
	transport := NewStreamTransport(os.Stdin, os.Stdout, nil, nil)
	return srv.Serve(ctx, transport)
}
