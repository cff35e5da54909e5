package main

import (
	"context"
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
	"presence-go/radio"
	"presence-go/sensing"
	"presence-go/store"
	"presence-go/timeutil"
)

var version = "No version provided"

var log = logrus.New()

type argSpec struct {
	ConfigDir string `arg:"--config" help:"Directory containing presence.yaml"`
	NodeID    int    `arg:"--node" help:"Link slot on the master (1 or 2)"`
	Master    string `arg:"--master" help:"Master address, host:port. Empty broadcasts on the local subnet"`
	RadioPort int    `arg:"--port" help:"UDP port for node-to-node traffic"`
	FeedPort  int    `arg:"--feed" help:"Loopback UDP port for the sample feed"`
	StorePath string `arg:"--store" help:"Path to the settings database"`
	LogLevel  string `arg:"-l, --log-level" default:"info" help:"Set the logging level (debug, info, warn, error)"`
}

func (argSpec) Version() string {
	return version
}

func procArgs() argSpec {
	args := argSpec{
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
	if args.NodeID != 0 {
		cfg.NodeID = args.NodeID
	}
	if args.RadioPort > 0 {
		cfg.RadioPort = args.RadioPort
	}
	if args.FeedPort >= 0 {
		cfg.FeedPort = args.FeedPort
	}
	if args.StorePath != "" {
		cfg.StorePath = args.StorePath
	}
	if cfg.NodeID < 1 || cfg.NodeID > 2 {
		return fmt.Errorf("node id %d is not a valid link slot (1 or 2)", cfg.NodeID)
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

	if args.Master != "" {
		addr, err := net.ResolveUDPAddr("udp4", args.Master)
		if err != nil {
			return fmt.Errorf("resolve master address: %w", err)
		}
		transport.SetPeer(addr)
	}

	feed, err := sensing.NewUDPSource(cfg.FeedPort, log)
	if err != nil {
		return fmt.Errorf("open sample feed: %w", err)
	}
	defer feed.Close()

	slave := node.NewSlave(node.SlaveOptions{
		NodeID:    uint8(cfg.NodeID),
		Log:       log,
		Clock:     timeutil.RealClock{},
		Settings:  db,
		Radio:     transport,
		Indicator: node.NewLogIndicator(log),
	})

	go transport.Start(func(data []byte, _ *net.UDPAddr) {
		slave.HandleDatagram(data)
	})
	log.Printf("node %d up, feed on :%d", cfg.NodeID, cfg.FeedPort)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		slave.Run(ctx, feed.Samples())
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
