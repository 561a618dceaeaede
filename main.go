package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bosley/voxchat/capture/mic"
	voxcli "github.com/bosley/voxchat/client"
	"github.com/bosley/voxchat/config"
	devserv "github.com/bosley/voxchat/devserver"
	"github.com/bosley/voxchat/transport"
)

func main() {
	envFile := flag.String("env", "", "Path to an env file (defaults to ./.env when present)")
	serverURL := flag.String("server", "", "Backend base URL, e.g. https://host:8444")
	serve := flag.Bool("serve", false, "Run the local development backend instead of the client")
	playFile := flag.String("play", "", "Play a WAV file and exit")
	insecureMode := flag.Bool("insecure", false, "Enable insecure mode (skip certificate verification)")
	certFile := flag.String("cert", "", "Path to server certificate file")
	keyFile := flag.String("key", "", "Path to server key file (development backend)")
	whisperPath := flag.String("whisper", "", "Path to whisper executable (development backend)")
	whisperModel := flag.String("model", "", "Path to whisper model file (development backend)")
	listDevices := flag.Bool("list-devices", false, "List available audio input devices")
	deviceID := flag.Int("device", 0, "Audio input device ID to use")
	viewAddr := flag.String("view", "", "Serve the browser chat view on this address, e.g. localhost:8080")
	flag.Parse()

	// Configuration loading logs too, so install a handler before the
	// configured level is known.
	slog.SetDefault(newLogger(os.Stderr, slog.LevelDebug))

	cfg, err := config.Load(*envFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Explicit flags win over the environment.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "server":
			cfg.ServerURL = *serverURL
		case "insecure":
			cfg.Insecure = *insecureMode
		case "cert":
			cfg.CertFile = *certFile
		case "key":
			cfg.KeyFile = *keyFile
		case "whisper":
			cfg.WhisperPath = *whisperPath
		case "model":
			cfg.WhisperModel = *whisperModel
		case "device":
			cfg.Device = *deviceID
		case "view":
			cfg.ViewAddr = *viewAddr
		}
	})

	slog.SetDefault(newLogger(os.Stderr, cfg.SlogLevel()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Debug("Received shutdown signal")
		cancel()
	}()

	if *playFile != "" {
		data, err := os.ReadFile(*playFile)
		if err != nil {
			slog.Error("Failed to read audio file", "error", err)
			os.Exit(1)
		}
		if err := mic.PlayWAV(ctx, data); err != nil {
			slog.Error("Failed to play audio file", "error", err)
		}
		return
	}

	if *listDevices {
		devices, err := mic.ListDevices()
		if err != nil {
			slog.Error("Failed to list audio devices", "error", err)
			os.Exit(1)
		}

		fmt.Println("Available audio input devices:")
		for _, device := range devices {
			fmt.Printf("[%d] %s\n", device.ID, device.Name)
			fmt.Printf("    Max Input Channels: %d\n", device.MaxInputChannels)
			fmt.Printf("    Default Sample Rate: %f\n", device.DefaultSampleRate)
			fmt.Println()
		}
		return
	}

	if *serve {
		if (cfg.CertFile == "") != (cfg.KeyFile == "") {
			slog.Error("Certificate and key files must be provided together")
			flag.Usage()
			os.Exit(1)
		}
		if cfg.WhisperPath != "" && cfg.WhisperModel == "" {
			slog.Error("Whisper model path must be provided with a whisper executable")
			flag.Usage()
			os.Exit(1)
		}

		var transcriber devserv.Transcriber = devserv.CannedTranscriber{}
		if cfg.WhisperPath != "" {
			transcriber = devserv.WhisperTranscriber{Path: cfg.WhisperPath, Model: cfg.WhisperModel}
		} else {
			slog.Warn("No whisper executable configured, uploads get a canned transcript")
		}

		srv := devserv.New(devserv.Config{
			Addr:          cfg.ListenAddr,
			CertFile:      cfg.CertFile,
			KeyFile:       cfg.KeyFile,
			RecordingsDir: cfg.RecordingsDir,
			Workers:       2,
		}, transcriber, devserv.NewVehicleController())

		if err := srv.Start(ctx); err != nil {
			slog.Error("Development backend failed", "error", err)
			os.Exit(1)
		}
		slog.Debug("Program exiting")
		return
	}

	if cfg.ServerURL == "" {
		slog.Error("Server URL must be provided with -server or VOXCHAT_SERVER_URL")
		flag.Usage()
		os.Exit(1)
	}

	err = voxcli.Launch(ctx, voxcli.Options{
		Transport: transport.Config{
			BaseURL:  cfg.ServerURL,
			Token:    cfg.Token,
			Timeout:  cfg.Timeout,
			Insecure: cfg.Insecure,
			CertFile: cfg.CertFile,
		},
		DeviceID: cfg.Device,
		ViewAddr: cfg.ViewAddr,
	}, os.Stdin, os.Stdout)
	if err != nil {
		slog.Error("Client failed", "error", err)
		os.Exit(1)
	}

	slog.Debug("Program exiting")
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
