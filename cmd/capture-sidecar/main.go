package main

import (
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/breeze-rmm/capture-sidecar/internal/capture"
	"github.com/breeze-rmm/capture-sidecar/internal/config"
	"github.com/breeze-rmm/capture-sidecar/internal/logging"
	"github.com/breeze-rmm/capture-sidecar/internal/parentwatch"
	"github.com/breeze-rmm/capture-sidecar/internal/websocket"
)

const (
	version        = "0.1.0"
	defaultFPS     = 60
	defaultPARNum  = 1
	defaultPARDen  = 1
)

var (
	cfgFile   string
	serverURL string
	pid       uint32
	gpuIndex  uint32
	streamKey string
	sessionID string
	quality   string
	logLevel  string
	logFormat string
	logFile   string
)

var log = logging.L("main")

var rootCmd = &cobra.Command{
	Use:   "capture-sidecar",
	Short: "Window capture, H.264 encode, and fMP4-over-WebSocket streaming sidecar",
	Run: func(cmd *cobra.Command, args []string) {
		run()
	},
}

func init() {
	rootCmd.Flags().StringVarP(&serverURL, "url", "u", "", "server WebSocket URL")
	rootCmd.Flags().Uint32VarP(&pid, "pid", "p", 0, "parent/target process ID")
	rootCmd.Flags().Uint32VarP(&gpuIndex, "gpu", "g", 0, "GPU device index (0 = default adapter)")
	rootCmd.Flags().StringVar(&streamKey, "stream-key", "", "stream authentication key")
	rootCmd.Flags().StringVar(&sessionID, "session-id", "", "session identifier (generated if omitted)")
	rootCmd.Flags().StringVar(&quality, "quality", "", "quality preset: low, medium, or high")
	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file (default ./sidecar.yaml)")

	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.Flags().StringVar(&logFormat, "log-format", "", "log format: text or json")
	rootCmd.Flags().StringVar(&logFile, "log-file", "", "rotating log file path (stdout only if empty)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initLogging(cfg *config.Config) {
	var output io.Writer = os.Stdout
	if cfg.LogFile != "" {
		rw, err := logging.NewRotatingWriter(cfg.LogFile, cfg.LogMaxSizeMB, cfg.LogMaxBackups)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file %s: %v (logging to stdout)\n", cfg.LogFile, err)
		} else {
			output = logging.TeeWriter(os.Stdout, rw)
		}
	}
	logging.Init(cfg.LogFormat, cfg.LogLevel, output)
	log = logging.L("main")
}

// applyFlags overlays flags the user actually set on top of the layered
// file/env config, since cobra owns precedence over config.Load's own
// file/env layers (§10.2).
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("url") {
		cfg.ServerURL = serverURL
	}
	if cmd.Flags().Changed("pid") {
		cfg.PID = pid
	}
	if cmd.Flags().Changed("gpu") {
		cfg.GPUIndex = &gpuIndex
	}
	if cmd.Flags().Changed("stream-key") {
		cfg.StreamKey = streamKey
	}
	if cmd.Flags().Changed("session-id") {
		cfg.SessionID = sessionID
	}
	if cmd.Flags().Changed("quality") {
		cfg.Quality = quality
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.LogFormat = logFormat
	}
	if cmd.Flags().Changed("log-file") {
		cfg.LogFile = logFile
	}
}

func run() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	applyFlags(rootCmd, cfg)

	initLogging(cfg)

	for _, verr := range cfg.Validate() {
		log.Warn("config problem", "error", verr.Error())
	}

	if cfg.SessionID == "" || cfg.SessionID == "current-session" {
		cfg.SessionID = uuid.NewString()
	}
	log = logging.WithSession(log, cfg.SessionID)

	if cfg.PID == 0 {
		log.Error("pid required")
		os.Exit(1)
	}

	log.Info("starting capture sidecar",
		"version", version,
		"server", cfg.ServerURL,
		"pid", cfg.PID,
		"quality", cfg.Quality,
	)

	hwnd, err := findMainWindow(cfg.PID)
	if err != nil {
		log.Error("failed to find target window", "error", err.Error())
		os.Exit(1)
	}
	width, height, err := windowClientSize(hwnd)
	if err != nil {
		log.Error("failed to read window client size", "error", err.Error())
		os.Exit(1)
	}

	wsClient := websocket.New(&websocket.Config{
		ServerURL: cfg.ServerURL,
		SessionID: cfg.SessionID,
		AuthToken: cfg.StreamKey,
	})
	go wsClient.Start()

	log.Info("waiting for websocket connection")
	wsClient.WaitConnected()
	log.Info("websocket connected, starting capture")

	video := capture.VideoSettings{
		Width:          width,
		Height:         height,
		FPSNumerator:   defaultFPS,
		AvgBitrate:     config.QualityPreset(cfg.Quality).Bitrate(),
		PARNumerator:   defaultPARNum,
		PARDenominator: defaultPARDen,
	}
	audio := capture.AudioSettings{Disabled: true}

	encoder, err := capture.NewEncoder(video, audio, wsClient)
	if err != nil {
		log.Error("failed to start encoder", "error", err.Error())
		wsClient.Stop()
		os.Exit(1)
	}

	shutdown := make(chan struct{})
	go parentwatch.Watch(cfg.PID, func() { close(shutdown) })

	source := capture.NewWindowSource(hwnd, video.FPSNumerator)
	stopCapture := make(chan struct{})
	captureDone := make(chan struct{})
	go func() {
		defer close(captureDone)
		source.Run(stopCapture, encoder.SendFrame)
	}()

	// The session ends when the parent exits, or when capture stops on its
	// own because the encoder rejected a frame with a fatal error.
	select {
	case <-shutdown:
	case <-captureDone:
	}
	log.Info("shutting down")

	close(stopCapture)
	<-captureDone
	source.Close()

	if err := encoder.Finish(); err != nil {
		log.Error("encoder finish reported an error", "error", err.Error())
	}
	wsClient.Stop()

	log.Info("capture sidecar stopped")
}
