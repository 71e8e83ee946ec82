// trackdemo drives pkg/track and pkg/audio against a synthetic feed, the way
// cmd/cyclops drives the camera/monitor subsystems against a live one. It
// exists for manual exercising of the tracker and sampler outside of tests.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/akamensky/argparse"
	"github.com/coreos/go-systemd/daemon"
	"github.com/cyclopcam/logs"
	"github.com/pion/rtp"

	"github.com/cyclopcam/objtrack/pkg/audio"
	"github.com/cyclopcam/objtrack/pkg/geom"
	"github.com/cyclopcam/objtrack/pkg/track"
)

func check(err error) {
	if err != nil {
		panic(err)
	}
}

func main() {
	parser := argparse.NewParser("trackdemo", "Feed a synthetic detection + RTP stream through the tracker and sampler")
	frames := parser.Int("", "frames", &argparse.Options{Help: "Number of synthetic frames to run", Default: 10})
	configFile := parser.String("c", "config", &argparse.Options{Help: "Tracker config JSON file", Default: ""})
	if err := parser.Parse(os.Args); err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	log, err := logs.NewLog()
	check(err)
	defer log.Close()

	cfg := track.NewConfig()
	if *configFile != "" {
		loaded, err := track.LoadConfig(*configFile)
		check(err)
		cfg = loaded
	}

	tracker := track.NewTracker(cfg)
	tracker.SetLog(log)
	runSyntheticFrames(tracker, log, *frames)
	runSyntheticAudio(log)

	daemon.SdNotify(false, daemon.SdNotifyReady)
}

// runSyntheticFrames walks a box across the frame for a handful of frames so
// that a single track is created, confirmed, and reported moving.
func runSyntheticFrames(tracker *track.Tracker, log logs.Log, numFrames int) {
	const sourceID = "demo-camera"
	for i := 0; i < numFrames; i++ {
		box := geom.Box{X: float32(10 + i*12), Y: 10, Width: 50, Height: 50}
		frame := track.Frame{
			Detections: []track.Detection{
				{ClassName: "person", Score: 0.9, BoundingBox: &box},
			},
			InputWidth:  1280,
			InputHeight: 720,
			Timestamp:   float64(i),
		}
		result := tracker.Update(sourceID, frame, nil, false)
		log.Infof("frame %d: active=%d pending=%d detectionId=%q", i, len(result.Active), len(result.Pending), result.DetectionID)
	}
}

// runSyntheticAudio feeds a short burst of quiet RTP packets, whose level
// steps up from silence in a repeating 8-packet cycle, through a Sampler and
// prints each emitted Level.
func runSyntheticAudio(log logs.Log) {
	sampler := audio.NewSampler(200*time.Millisecond, func(level audio.Level) {
		log.Infof("audio level: dBFS=%.2f stddev=%.2f", level.DBFS, level.DBStdDev)
	})
	sampler.Start()
	defer sampler.Stop()

	now := time.Now()
	for i := 0; i < 30; i++ {
		payload := make([]byte, 160)
		for b := range payload {
			payload[b] = byte(128 + (i % 8))
		}
		pkt := &rtp.Packet{
			Header:  rtp.Header{SequenceNumber: uint16(i), Timestamp: uint32(i * 160)},
			Payload: payload,
		}
		sampler.OnPacket(pkt, now.Add(time.Duration(i)*20*time.Millisecond))
	}
}
