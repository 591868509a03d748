// Package audio turns a stream URL into opus frames for a voice connection.
package audio

import (
	"context"
	"encoding/binary"
	"io"
	"math"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/shinonome/internal/domain/track"
)

const (
	Channels     = 2
	SampleRate   = 48000
	FrameSize    = 960 // 20ms at 48kHz
	MaxFrameSize = 4000
)

// Encoder encodes one frame of interleaved PCM into opus.
type Encoder interface {
	Encode(pcm []int16, frameSize, maxDataBytes int) ([]byte, error)
}

// Opener opens a raw PCM stream (s16le, 48kHz, stereo) for a media URL.
type Opener interface {
	Open(ctx context.Context, url string) (io.ReadCloser, error)
}

// Sink receives encoded frames.
type Sink struct {
	Frames   chan<- []byte
	Speaking func(bool) error // optional
}

// Stream plays one track into a Sink. It is started at most once and finishes exactly once.
type Stream struct {
	mu       sync.Mutex
	track    track.Track
	volume   float64
	started  bool
	finished bool
	resume   chan struct{} // non-nil while paused
	err      error

	opener     Opener
	newEncoder func() (Encoder, error)
	sink       Sink
	onFinish   func(*Stream)
	finishOnce sync.Once

	ctx    context.Context
	cancel context.CancelFunc
}

// NewStream prepares a stream without starting it.
func NewStream(t track.Track, opener Opener, newEncoder func() (Encoder, error), sink Sink, onFinish func(*Stream)) *Stream {
	ctx, cancel := context.WithCancel(context.Background())
	return &Stream{
		track:      t,
		volume:     1.0,
		opener:     opener,
		newEncoder: newEncoder,
		sink:       sink,
		onFinish:   onFinish,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Track returns the track being played.
func (s *Stream) Track() track.Track {
	return s.track
}

// Start begins playback in the background.
func (s *Stream) Start() {
	s.mu.Lock()
	if s.started || s.finished {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	go s.run()
}

// Stop ends playback. onFinish runs even if the stream was never started.
func (s *Stream) Stop() {
	s.cancel()

	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		s.finish(nil)
	}
}

// Pause holds playback until Resume.
func (s *Stream) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resume == nil && !s.finished {
		s.resume = make(chan struct{})
	}
}

// Resume continues a paused stream.
func (s *Stream) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resume != nil {
		close(s.resume)
		s.resume = nil
	}
}

// IsFinished reports whether playback has ended.
func (s *Stream) IsFinished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}

// Volume returns the volume as a fraction (1.0 = unchanged).
func (s *Stream) Volume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

// SetVolume sets the volume; it applies from the next frame.
func (s *Stream) SetVolume(v float64) {
	if v < 0 {
		v = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = v
}

// Err returns the error that ended playback, nil on natural end or Stop.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Stream) run() {
	err := s.play()
	if err != nil && s.ctx.Err() == nil {
		zlog.Warn().Msgf("playback of %q failed: %v", s.track.Title, err)
	} else {
		err = nil
	}
	s.finish(err)
}

func (s *Stream) play() error {
	enc, err := s.newEncoder()
	if err != nil {
		return errors.Wrap(err, "failed to create encoder")
	}

	rc, err := s.opener.Open(s.ctx, s.track.StreamURL)
	if err != nil {
		return errors.Wrap(err, "failed to open stream")
	}
	defer rc.Close()

	if s.sink.Speaking != nil {
		if err := s.sink.Speaking(true); err != nil {
			zlog.Debug().Msgf("speaking(true) failed: %v", err)
		}
		defer func() {
			if err := s.sink.Speaking(false); err != nil {
				zlog.Debug().Msgf("speaking(false) failed: %v", err)
			}
		}()
	}

	pcm := make([]int16, FrameSize*Channels)
	for {
		if err := s.waitIfPaused(); err != nil {
			return nil
		}

		if err := binary.Read(rc, binary.LittleEndian, pcm); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			if s.ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "failed to read PCM")
		}

		applyVolume(pcm, s.Volume())

		frame, err := enc.Encode(pcm, FrameSize, MaxFrameSize)
		if err != nil {
			return errors.Wrap(err, "failed to encode frame")
		}

		select {
		case s.sink.Frames <- frame:
		case <-s.ctx.Done():
			return nil
		}
	}
}

// waitIfPaused blocks while paused; it returns an error once the stream is stopped.
func (s *Stream) waitIfPaused() error {
	s.mu.Lock()
	resume := s.resume
	s.mu.Unlock()

	if resume != nil {
		select {
		case <-resume:
		case <-s.ctx.Done():
			return s.ctx.Err()
		}
	}
	return s.ctx.Err()
}

func (s *Stream) finish(err error) {
	s.finishOnce.Do(func() {
		s.mu.Lock()
		s.finished = true
		s.err = err
		if s.resume != nil {
			close(s.resume)
			s.resume = nil
		}
		s.mu.Unlock()

		s.cancel()
		if s.onFinish != nil {
			s.onFinish(s)
		}
	})
}

// applyVolume scales samples in place, saturating at the int16 range.
func applyVolume(pcm []int16, volume float64) {
	if volume == 1.0 {
		return
	}
	for i, v := range pcm {
		scaled := float64(v) * volume
		switch {
		case scaled > math.MaxInt16:
			pcm[i] = math.MaxInt16
		case scaled < math.MinInt16:
			pcm[i] = math.MinInt16
		default:
			pcm[i] = int16(scaled)
		}
	}
}
