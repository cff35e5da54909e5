package main

import (
	"fmt"
	"io"
	"os"

	arg "github.com/alexflint/go-arg"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"presence-go/capture"
	"presence-go/detect"
	"presence-go/sensing"
)

var version = "No version provided"

var log = logrus.New()

type argSpec struct {
	In         string  `arg:"--in,required" help:"Capture file to analyze"`
	WanderTh   float64 `arg:"--wander-th" help:"Classify presence against this threshold"`
	JitterTh   float64 `arg:"--jitter-th" help:"Classify motion against this threshold"`
	WanderSens float64 `arg:"--wander-sens" default:"0.15" help:"Wander sensitivity for classification"`
	JitterSens float64 `arg:"--jitter-sens" default:"0.20" help:"Jitter sensitivity for classification"`
}

func (argSpec) Version() string {
	return version
}

func main() {
	var args argSpec
	arg.MustParse(&args)

	r, err := capture.Open(args.In)
	if err != nil {
		log.Fatalf("open capture: %v", err)
	}
	defer r.Close()

	var wander, jitter []float64
	window := &detect.Window{}
	cal := detect.Calibration{
		WanderThreshold: args.WanderTh,
		JitterThreshold: args.JitterTh,
	}
	sens := detect.Sensitivity{Wander: args.WanderSens, Jitter: args.JitterSens}
	roomSamples := 0
	motionSamples := 0
	dropped := 0

	first, last := float64(0), float64(0)
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatalf("read capture: %v", err)
		}
		smp, ok := sensing.DecodeSample(rec.Data)
		if !ok {
			dropped++
			continue
		}
		if len(wander) == 0 {
			first = float64(rec.Time.UnixMilli())
		}
		last = float64(rec.Time.UnixMilli())
		wander = append(wander, smp.Wander)
		jitter = append(jitter, smp.Jitter)

		window.Push(smp.Wander, smp.Jitter)
		if window.Ready() {
			res := detect.ClassifyVoting(window, cal, sens)
			if res.Room {
				roomSamples++
			}
			if res.Motion {
				motionSamples++
			}
		}
	}

	if len(wander) == 0 {
		fmt.Println("no samples in capture")
		os.Exit(1)
	}

	wMean, wStd := stat.MeanStdDev(wander, nil)
	jMean, jStd := stat.MeanStdDev(jitter, nil)
	if len(wander) < 2 {
		wStd, jStd = 0, 0
	}

	fmt.Printf("samples:  %d (%.1fs, %d undecodable)\n",
		len(wander), (last-first)/1000, dropped)
	fmt.Printf("wander:   mean=%.6f stddev=%.6f\n", wMean, wStd)
	fmt.Printf("jitter:   mean=%.6f stddev=%.6f\n", jMean, jStd)
	// The same rule the nodes train with: an empty-room capture makes these
	// directly usable as thresholds.
	fmt.Printf("suggest:  wander_th=%.6f jitter_th=%.6f\n",
		wMean+2*wStd, jMean+2*jStd)
	if cal.Valid() {
		fmt.Printf("classify: room %d/%d samples, motion %d/%d\n",
			roomSamples, len(wander), motionSamples, len(wander))
	}
}
