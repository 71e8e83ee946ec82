// Package audio implements the Audio Level Sampler: it turns a stream of RTP
// packets carrying 8 kHz mono 8-bit PCM (the mu-law family payload that
// sources label pcm_u8) into periodic windowed dBFS readings.
package audio

import (
	"math"
	"sync"
	"time"

	"github.com/bmharper/ringbuffer"
	"github.com/pion/rtp"
)

// rtpHeaderSize is the minimum size of an RTP packet; payloads this size or
// smaller carry no audio.
const rtpHeaderSize = 12

// silenceFloor is the rms floor used before taking log10, so a fully silent
// packet doesn't produce -Inf dBFS.
const silenceFloor = 1e-5

// DefaultWindow is the default sampling window length.
const DefaultWindow = 2 * time.Second

// defaultBufferCapacity bounds the ring buffer of per-packet dB readings
// held within one window; at 20ms/packet this comfortably covers windows
// well beyond the default 2s.
const defaultBufferCapacity = 512

// Level is one windowed volume reading, emitted at the sampler's cadence.
type Level struct {
	DBFS     float64 // log-domain mean of the window's per-packet dB readings
	DBStdDev float64 // arithmetic-mean standard deviation of the same readings
}

// PacketDB computes the dBFS of a single RTP payload.
// Packets no larger than the RTP header carry no audio and are skipped by
// the caller; PacketDB itself just computes the value for whatever payload
// it's given.
func PacketDB(payload []byte) float64 {
	n := len(payload)
	if n == 0 {
		return 20 * math.Log10(silenceFloor)
	}
	var sumSq float64
	for _, b := range payload {
		s := (float64(b) - 128) / 128
		sumSq += s * s
	}
	rms := math.Sqrt(sumSq / float64(n))
	return 20 * math.Log10(math.Max(rms, silenceFloor))
}

// Sampler accumulates per-packet dB readings into a wall-clock window and
// emits a Level each time the window elapses with a non-empty buffer.
// Grounded on server/monitor/analyzer.go's ring-buffered per-track history,
// generalized from position samples to dB samples.
type Sampler struct {
	window time.Duration
	emit   func(Level)

	mu          sync.Mutex
	buf         ringbuffer.RingP[float64]
	windowStart time.Time
	running     bool
}

// NewSampler constructs a Sampler. window <= 0 means DefaultWindow. emit is
// called synchronously from OnPacket whenever a window elapses with
// readings to report; it must not block.
func NewSampler(window time.Duration, emit func(Level)) *Sampler {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Sampler{
		window: window,
		emit:   emit,
		buf:    ringbuffer.NewRingP[float64](defaultBufferCapacity),
	}
}

// Start (re)initializes the sampler's window clock. It is safe to call again
// after Stop.
func (s *Sampler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = ringbuffer.NewRingP[float64](defaultBufferCapacity)
	s.windowStart = time.Time{}
	s.running = true
}

// Stop releases all resources and clears the buffer. No pending window is
// flushed; a window that hasn't elapsed yet is discarded.
func (s *Sampler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.buf = ringbuffer.NewRingP[float64](defaultBufferCapacity)
}

// OnPacket feeds one RTP packet's payload through the sampler. now is the
// wall-clock time the packet was received; it is a parameter (rather than
// time.Now()) so callers can drive the sampler deterministically in tests.
func (s *Sampler) OnPacket(pkt *rtp.Packet, now time.Time) {
	if pkt == nil || len(pkt.Payload) <= rtpHeaderSize {
		return
	}
	s.observe(PacketDB(pkt.Payload), now)
}

func (s *Sampler) observe(db float64, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	if s.windowStart.IsZero() {
		s.windowStart = now
	}
	s.buf.Add(db)
	s.checkWindow(now)
}

// Tick checks whether the current window has elapsed, even if no packet has
// arrived recently. A caller that wants an empty window to actually suppress
// an emission — rather than simply deferring the check to whenever the next
// packet shows up — should call this from its own poll loop alongside OnPacket.
func (s *Sampler) Tick(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || s.windowStart.IsZero() {
		return
	}
	s.checkWindow(now)
}

// checkWindow must be called with s.mu held.
func (s *Sampler) checkWindow(now time.Time) {
	if now.Sub(s.windowStart) < s.window {
		return
	}

	n := s.buf.Len()
	if n == 0 {
		// Window elapsed with nothing buffered: suppress emission rather
		// than reporting a fabricated zero level, and just restart the window.
		s.windowStart = now
		return
	}

	level := summarize(&s.buf, n)
	s.buf = ringbuffer.NewRingP[float64](defaultBufferCapacity)
	s.windowStart = now

	if s.emit != nil {
		s.emit(level)
	}
}

// summarize computes the log-domain mean and arithmetic-mean stddev of the
// n dB readings in buf.
func summarize(buf *ringbuffer.RingP[float64], n int) Level {
	var sumPow, sumLinear float64
	for i := 0; i < n; i++ {
		d := buf.Peek(i)
		sumPow += math.Pow(10, d/10)
		sumLinear += d
	}
	meanDb := 10 * math.Log10(sumPow/float64(n))
	arithmeticMean := sumLinear / float64(n)

	var sumSqDev float64
	for i := 0; i < n; i++ {
		dev := buf.Peek(i) - arithmeticMean
		sumSqDev += dev * dev
	}
	stddev := math.Sqrt(sumSqDev / float64(n))

	return Level{DBFS: meanDb, DBStdDev: stddev}
}
