package main

import (
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	arg "github.com/alexflint/go-arg"
	"github.com/sirupsen/logrus"

	"presence-go/capture"
)

var version = "No version provided"

var log = logrus.New()

type argSpec struct {
	Listen  int    `arg:"--listen" default:"44002" help:"UDP port to capture the sample feed on"`
	Out     string `arg:"--out,required" help:"Capture file to write"`
	Forward string `arg:"--forward" help:"Optional address to forward each datagram to, e.g. 127.0.0.1:44001"`
}

func (argSpec) Version() string {
	return version
}

func main() {
	var args argSpec
	arg.MustParse(&args)

	w, err := capture.NewWriter(args.Out)
	if err != nil {
		log.Fatalf("create capture: %v", err)
	}
	defer w.Close()

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: args.Listen})
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	defer conn.Close()

	var fwd *net.UDPConn
	if args.Forward != "" {
		addr, err := net.ResolveUDPAddr("udp4", args.Forward)
		if err != nil {
			log.Fatalf("resolve forward address: %v", err)
		}
		fwd, err = net.DialUDP("udp4", nil, addr)
		if err != nil {
			log.Fatalf("dial forward address: %v", err)
		}
		defer fwd.Close()
	}

	log.Printf("recording feed on :%d to %s", args.Listen, args.Out)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		conn.Close()
	}()

	count := 0
	buf := make([]byte, 512)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			break
		}
		if err := w.WriteRecord(time.Now(), buf[:n]); err != nil {
			log.Fatalf("write record: %v", err)
		}
		count++
		if fwd != nil {
			fwd.Write(buf[:n])
		}
	}

	log.Printf("recorded %d datagrams", count)
}
