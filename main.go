// murmur is a local daemon that turns push-to-toggle shortcuts into
// voice-driven actions: dictation into the focused window, voice questions
// about the current screen, and meeting recording with minutes.
//
// The daemon listens on a unix socket; shortcut daemons talk to it through
// the bundled client:
//
//	murmur ctl start dictate
//	murmur ctl start meeting
//	murmur ctl status
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"sync"

	"murmur/audio"
	"murmur/beep"
	"murmur/capture"
	"murmur/config"
	"murmur/ctl"
	"murmur/deliver"
	"murmur/doctor"
	"murmur/history"
	"murmur/log"
	"murmur/notify"
	"murmur/postproc"
	"murmur/screenshot"
	"murmur/server"
	"murmur/session"
	"murmur/shutdown"
	"murmur/transcriber"
)

var version = "dev"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "ctl" {
		os.Exit(runCtl(os.Args[2:]))
	}
	run()
}

func runCtl(args []string) int {
	fs := flag.NewFlagSet("ctl", flag.ExitOnError)
	socketFlag := fs.String("socket", server.DefaultSocketPath(), "daemon control socket")
	fs.Parse(args)
	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: murmur ctl <start dictate|start screenshot|start meeting|stop|status|cancel|history [n]|ping|quit>")
		return 2
	}

	resp, err := ctl.Send(*socketFlag, strings.Join(fs.Args(), " "))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Println(ctl.Render(resp))
	if strings.HasPrefix(resp, "error ") {
		return 1
	}
	return 0
}

func run() {
	configFlag := flag.String("config", "", "config file path (default: ./murmur.yaml, then XDG config dir)")
	socketFlag := flag.String("socket", server.DefaultSocketPath(), "control socket path")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	consoleFlag := flag.Bool("console", false, "Also log to stderr")
	doctorFlag := flag.Bool("doctor", false, "Run environment diagnostics and exit")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("murmur %s\n", version)
		return
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	if *doctorFlag {
		os.Exit(doctor.Run(cfg))
	}

	logDir, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "log path: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logDir)
	if err := log.Init(*consoleFlag); err != nil {
		fmt.Fprintf(os.Stderr, "log init: %v\n", err)
		os.Exit(1)
	}

	audioCtx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio init: %v", err)
		fmt.Fprintf(os.Stderr, "audio init: %v\n", err)
		os.Exit(1)
	}
	defer audioCtx.Close()

	mic, err := resolveMic(audioCtx, cfg.Meeting.MicSource)
	if err != nil {
		log.Errorf("mic device: %v", err)
		fmt.Fprintf(os.Stderr, "mic device: %v\n", err)
		os.Exit(1)
	}

	var store *history.Store
	if cfg.History.Enabled {
		store, err = history.Open(cfg.History.Path)
		if err != nil {
			// History is a convenience; the daemon runs without it.
			log.Warnf("history disabled: %v", err)
			store = nil
		}
	}

	if !cfg.Notifications.Sound {
		beep.Disable()
	}
	beep.Init()

	env := session.Env{
		Opener: &capture.DeviceOpener{
			Audio:         audioCtx,
			SampleRate:    cfg.Audio.SampleRate,
			MicDevice:     mic,
			MonitorSource: cfg.Meeting.MonitorSource,
		},
		Transcriber: transcriber.NewWhisper(cfg.Whisper.URL, cfg.Whisper.APIKey,
			cfg.Whisper.Model, cfg.Whisper.Language, cfg.Whisper.Timeout()),
		Processor:      newProcessor(cfg),
		Screen:         screenshot.NewTool(),
		Deliverer:      &deliver.Text{AutoPaste: cfg.Typing.AutoPaste},
		Notifier:       notify.New(cfg.Notifications.Enabled),
		History:        store,
		MeetingDir:     cfg.Meeting.OutputDir,
		Chunk:          transcriber.ChunkConfig{ChunkS: cfg.Meeting.ChunkS, OverlapS: cfg.Meeting.OverlapS},
		CaptureMonitor: cfg.Dictate.CaptureMonitor,
		Cues:           cfg.Notifications.Sound,
	}
	mgr := session.NewManager(env)

	var stopOnce sync.Once
	var srv *server.Server
	stop := func() {
		stopOnce.Do(func() {
			mgr.Shutdown()
			srv.Close()
			if store != nil {
				store.Close()
			}
			log.DaemonStop()
			log.Close()
		})
	}

	srv, err = server.Listen(*socketFlag, mgr, store, stop)
	if err != nil {
		log.Errorf("startup: %v", err)
		fmt.Fprintf(os.Stderr, "murmur: %v\n", err)
		os.Exit(1)
	}
	log.DaemonStart(*socketFlag)

	sig := make(chan os.Signal, 1)
	shutdown.Notify(sig)
	go func() {
		<-sig
		log.Info("signal received, shutting down")
		stop()
	}()

	srv.Serve()
	stop()
}

func newProcessor(cfg config.Config) *postproc.Processor {
	return &postproc.Processor{
		Gen:           postproc.NewOllama(cfg.Ollama.BaseURL, cfg.Ollama.Timeout()),
		CleanupModel:  cfg.Ollama.CleanupModel,
		VisionModel:   cfg.Ollama.VisionModel,
		SummaryModel:  cfg.Ollama.SummaryModel,
		CleanupPrompt: cfg.Ollama.CleanupPrompt,
		SummaryPrompt: cfg.Ollama.SummaryPrompt,
	}
}

// resolveMic matches the configured device name against the available
// capture devices. Empty or "default" uses the system default.
func resolveMic(ctx audio.Context, name string) (*audio.DeviceInfo, error) {
	if name == "" || name == "default" {
		return nil, nil
	}
	devices, err := ctx.Devices()
	if err != nil {
		return nil, err
	}
	for i := range devices {
		if devices[i].Name == name || devices[i].ID == name {
			return &devices[i], nil
		}
	}
	for i := range devices {
		if strings.Contains(strings.ToLower(devices[i].Name), strings.ToLower(name)) {
			return &devices[i], nil
		}
	}
	return nil, fmt.Errorf("no capture device matching %q", name)
}
