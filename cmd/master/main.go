package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	arg "github.com/alexflint/go-arg"
	"github.com/sirupsen/logrus"

	"presence-go/config"
	"presence-go/node"
	"presence-go/notify"
	"presence-go/radio"
	"presence-go/sensing"
	"presence-go/store"
	"presence-go/timeutil"
	"presence-go/web"
)

var version = "No version provided"

var log = logrus.New()

type argSpec struct {
	ConfigDir string   `arg:"--config" help:"Directory containing presence.yaml"`
	RadioPort int      `arg:"--port" help:"UDP port for node-to-node traffic"`
	HTTPPort  int      `arg:"--http" help:"HTTP/WebSocket port, 0 to disable"`
	FeedPort  int      `arg:"--feed" help:"Loopback UDP port for the sample feed"`
	StorePath string   `arg:"--store" help:"Path to the settings database"`
	NotifyTCP []string `arg:"--notify-tcp,separate" help:"TCP address to push occupancy transitions to (repeatable)"`
	NotifyUDP []string `arg:"--notify-udp,separate" help:"UDP address to push occupancy transitions to (repeatable)"`
	LogLevel  string   `arg:"-l, --log-level" default:"info" help:"Set the logging level (debug, info, warn, error)"`
}

func (argSpec) Version() string {
	return version
}

func procArgs() argSpec {
	args := argSpec{
		HTTPPort: -1,
		FeedPort: -1,
	}
	arg.MustParse(&args)
	return args
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		log.SetLevel(logrus.DebugLevel)
	case "info":
		log.SetLevel(logrus.InfoLevel)
	case "warn":
		log.SetLevel(logrus.WarnLevel)
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}
}

func main() {
	if err := runMain(); err != nil {
		log.Fatal(err)
	}
}

func runMain() error {
	args := procArgs()
	setLogLevel(args.LogLevel)
	log.Printf("running version: %s", version)

	cfg, err := config.Load(args.ConfigDir)
	if err != nil {
		return err
	}
	if args.RadioPort > 0 {
		cfg.RadioPort = args.RadioPort
	}
	if args.HTTPPort >= 0 {
		cfg.HTTPPort = args.HTTPPort
	}
	if args.FeedPort >= 0 {
		cfg.FeedPort = args.FeedPort
	}
	if args.StorePath != "" {
		cfg.StorePath = args.StorePath
	}

	db, err := store.Open(cfg.StorePath)
	if err != nil {
		return fmt.Errorf("open settings store: %w", err)
	}
	defer db.Close()

	transport, err := radio.NewTransport(cfg.RadioPort, log)
	if err != nil {
		return fmt.Errorf("open radio: %w", err)
	}
	defer transport.Stop()

	feed, err := sensing.NewUDPSource(cfg.FeedPort, log)
	if err != nil {
		return fmt.Errorf("open sample feed: %w", err)
	}
	defer feed.Close()

	opts := node.MasterOptions{
		Log:                 log,
		Clock:               timeutil.RealClock{},
		Settings:            db,
		Radio:               transport,
		Indicator:           node.NewLogIndicator(log),
		CalibrationDuration: cfg.CalibrationDuration(),
	}

	notifier := notify.NewSender(log)
	for _, addr := range args.NotifyTCP {
		notifier.AddTCPTarget(addr)
	}
	for _, addr := range args.NotifyUDP {
		if err := notifier.AddUDPTarget(addr); err != nil {
			return fmt.Errorf("notify target %s: %w", addr, err)
		}
	}
	if notifier.Targets() > 0 {
		if err := notifier.Start(); err != nil {
			return fmt.Errorf("start notifier: %w", err)
		}
		defer notifier.Stop()
		log.Printf("pushing occupancy transitions to %d consumers", notifier.Targets())
	}

	var hub *web.Hub
	opts.OnStatus = func(s node.Snapshot) {
		notifier.Publish(notify.Event{
			Time:        time.Now(),
			Room:        s.Room,
			Motion:      s.Motion,
			Calibrating: s.Calibrating,
		})
		if hub == nil {
			return
		}
		buf, err := json.Marshal(s)
		if err != nil {
			return
		}
		hub.Broadcast(buf)
	}

	master := node.NewMaster(opts)

	if cfg.HTTPPort > 0 {
		srv := web.NewServer(master, log)
		hub = srv.Hub
		go func() {
			if err := srv.Start(cfg.HTTPPort); err != nil {
				log.Errorf("web server: %v", err)
			}
		}()
		log.Printf("serving status on :%d", cfg.HTTPPort)
	}

	go transport.Start(func(data []byte, _ *net.UDPAddr) {
		master.HandleDatagram(data)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		master.Run(ctx, feed.Samples())
		close(done)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("shutting down")
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		log.Warn("event loop did not stop in time")
	}
	return nil
}
