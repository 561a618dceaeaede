package voxcli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/bosley/voxchat/audio"
)

const (
	cmdRecord = "/rec"
	cmdReplay = "/replay"
	cmdQuit   = "/quit"
)

// PlayFunc plays a WAV recording.
type PlayFunc func(ctx context.Context, data []byte) error

// Terminal reads commands and chat text from a line-oriented input.
type Terminal struct {
	coord *Coordinator
	play  PlayFunc
	out   io.Writer
}

func NewTerminal(coord *Coordinator, play PlayFunc, out io.Writer) *Terminal {
	return &Terminal{coord: coord, play: play, out: out}
}

// Run processes input until it is exhausted, /quit is read or ctx is
// cancelled.
func (t *Terminal) Run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	readErr := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	t.printHelp()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}
			if !t.handle(ctx, line) {
				return nil
			}
		}
	}
}

// handle returns false when the session should end.
func (t *Terminal) handle(ctx context.Context, line string) bool {
	switch strings.TrimSpace(line) {
	case cmdQuit:
		return false

	case cmdRecord:
		stopping := t.coord.Recording()
		if err := t.coord.Toggle(ctx); err != nil {
			if stopping {
				fmt.Fprintln(t.out, "failed to stop recording, nothing was sent")
			} else {
				fmt.Fprintf(t.out, "recording unavailable (%s)\n", t.coord.Label())
			}
			return true
		}
		fmt.Fprintf(t.out, "%s with %s\n", t.nextAction(), cmdRecord)

	case cmdReplay:
		t.replay(ctx)

	default:
		t.coord.Submit(line)
	}
	return true
}

func (t *Terminal) nextAction() string {
	if t.coord.Label() == LabelStop {
		return "Recording... " + LabelStop
	}
	return LabelStart
}

func (t *Terminal) replay(ctx context.Context) {
	rec, ok := t.coord.LastRecording()
	if !ok {
		fmt.Fprintln(t.out, "nothing recorded yet")
		return
	}
	if rec.MediaType != audio.WAVMediaType || t.play == nil {
		fmt.Fprintf(t.out, "cannot play %s recordings\n", rec.MediaType)
		return
	}
	if err := t.play(ctx, rec.Data); err != nil {
		slog.Error("Failed to play recording", "error", err)
	}
}

func (t *Terminal) printHelp() {
	fmt.Fprintf(t.out, "Type a message and press Enter. %s: %s, %s: play last recording, %s: exit\n",
		cmdRecord, t.coord.Label(), cmdReplay, cmdQuit)
}
