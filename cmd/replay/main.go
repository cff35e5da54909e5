package main

import (
	"io"
	"net"
	"time"

	arg "github.com/alexflint/go-arg"
	"github.com/sirupsen/logrus"

	"presence-go/capture"
)

var version = "No version provided"

var log = logrus.New()

type argSpec struct {
	In    string  `arg:"--in,required" help:"Capture file to replay"`
	Dest  string  `arg:"--dest" default:"127.0.0.1:44001" help:"Destination feed address"`
	Speed float64 `arg:"--speed" default:"1.0" help:"Replay speed multiplier, 0 for max speed"`
}

func (argSpec) Version() string {
	return version
}

func main() {
	var args argSpec
	arg.MustParse(&args)

	raddr, err := net.ResolveUDPAddr("udp4", args.Dest)
	if err != nil {
		log.Fatalf("resolve destination: %v", err)
	}
	conn, err := net.DialUDP("udp4", nil, raddr)
	if err != nil {
		log.Fatalf("dial destination: %v", err)
	}
	defer conn.Close()

	r, err := capture.Open(args.In)
	if err != nil {
		log.Fatalf("open capture: %v", err)
	}
	defer r.Close()

	log.Printf("replaying %s to %s", args.In, args.Dest)

	var firstTs time.Time
	var startReal time.Time
	count := 0

	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatalf("read capture: %v", err)
		}

		if args.Speed > 0 {
			if firstTs.IsZero() {
				firstTs = rec.Time
				startReal = time.Now()
			} else {
				elapsed := rec.Time.Sub(firstTs)
				due := startReal.Add(time.Duration(float64(elapsed) / args.Speed))
				if d := time.Until(due); d > 0 {
					time.Sleep(d)
				}
			}
		}

		if _, err := conn.Write(rec.Data); err != nil {
			log.Fatalf("send: %v", err)
		}
		count++
	}

	log.Printf("replayed %d datagrams", count)
}
