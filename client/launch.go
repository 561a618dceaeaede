package voxcli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/bosley/voxchat/capture"
	"github.com/bosley/voxchat/capture/mic"
	"github.com/bosley/voxchat/conversation"
	"github.com/bosley/voxchat/transport"
)

// Options configures an interactive session.
type Options struct {
	Transport transport.Config

	// Input device, 0 for the default
	DeviceID int

	// Address of the browser chat view; disabled when empty
	ViewAddr string
}

// Launch runs an interactive chat session against the backend until the
// input ends, /quit is read or ctx is cancelled.
func Launch(ctx context.Context, opts Options, in io.Reader, out io.Writer) error {
	slog.Debug("Starting client",
		"serverURL", opts.Transport.BaseURL,
		"deviceID", opts.DeviceID,
		"viewAddr", opts.ViewAddr)

	backend, err := transport.New(opts.Transport)
	if err != nil {
		return fmt.Errorf("failed to create transport: %w", err)
	}

	var renderer conversation.Renderer = conversation.NewTerminalRenderer(out)
	if opts.ViewAddr != "" {
		ws := conversation.NewWebSocketRenderer()
		view := newViewServer(opts.ViewAddr, ws)
		view.start()
		defer view.stop()
		renderer = conversation.Tee{renderer, ws}
	}

	log := conversation.NewLog(renderer)
	rec := capture.New(mic.Opener{DeviceID: opts.DeviceID})

	coord := New(ctx, rec, backend, log)
	defer coord.Close()

	err = NewTerminal(coord, mic.PlayWAV, out).Run(ctx, in)

	slog.Debug("Client shutting down", "messages", log.Len())
	return err
}
