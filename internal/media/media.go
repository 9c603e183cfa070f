// Package media provides the local audio/video capture stream fed to the
// media call. Capture sources are raw elementary streams (Annex-B H264
// video, raw PCMU audio) read from a file or FIFO, typically produced by
// an external encoder such as ffmpeg.
package media

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"pairdesk/native/internal/domain"

	"github.com/pion/webrtc/v4/pkg/media"

	pion "github.com/pion/webrtc/v4"
)

// ErrNoCapture is returned by Acquire when no capture source is
// configured. Callers treat it as "local stream absent", not a failure.
var ErrNoCapture = errors.New("no capture source configured")

const (
	videoFrameInterval = 33 * time.Millisecond
	audioFrameInterval = 20 * time.Millisecond
	// pcmuFrameSize is 20ms of 8kHz mono PCMU.
	pcmuFrameSize = 160
	// pcmuSilence is the mu-law encoding of zero amplitude.
	pcmuSilence = 0xFF
)

// Device opens capture streams from configured source paths. It
// implements domain.Capture.
type Device struct {
	H264Path string
	PCMUPath string

	mu     sync.Mutex
	stream *Stream
}

// NewDevice creates a capture device. Either path may be empty; with both
// empty, Acquire reports capture as unavailable.
func NewDevice(h264Path, pcmuPath string) *Device {
	return &Device{H264Path: h264Path, PCMUPath: pcmuPath}
}

// Acquire returns the local capture stream, opening it on first use. The
// same stream is shared by every caller so that call placing and call
// answering never trigger duplicate capture.
func (d *Device) Acquire() (domain.Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stream != nil {
		return d.stream, nil
	}
	if d.H264Path == "" && d.PCMUPath == "" {
		return nil, ErrNoCapture
	}

	s := &Stream{done: make(chan struct{})}
	s.micEnabled.Store(true)
	s.camEnabled.Store(true)

	if d.PCMUPath != "" {
		track, err := pion.NewTrackLocalStaticSample(
			pion.RTPCodecCapability{MimeType: pion.MimeTypePCMU, ClockRate: 8000, Channels: 1},
			"audio", "pairdesk",
		)
		if err != nil {
			return nil, fmt.Errorf("create audio track: %w", err)
		}
		file, err := os.Open(d.PCMUPath)
		if err != nil {
			return nil, fmt.Errorf("open audio source: %w", err)
		}
		s.audio = track
		s.audioSrc = file
		go s.pumpAudio()
	}

	if d.H264Path != "" {
		track, err := pion.NewTrackLocalStaticSample(
			pion.RTPCodecCapability{MimeType: pion.MimeTypeH264, ClockRate: 90000},
			"video", "pairdesk",
		)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("create video track: %w", err)
		}
		file, err := os.Open(d.H264Path)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("open video source: %w", err)
		}
		s.video = track
		s.videoSrc = file
		go s.pumpVideo()
	}

	d.stream = s
	return s, nil
}

// Stream is one local capture stream: up to one audio and one video
// track, pumped from their sources until closed. The enabled flags gate
// what the pumps emit; capture itself never stops on a toggle.
type Stream struct {
	audio    *pion.TrackLocalStaticSample
	video    *pion.TrackLocalStaticSample
	audioSrc io.ReadCloser
	videoSrc io.ReadCloser

	micEnabled atomic.Bool
	camEnabled atomic.Bool

	closeOnce sync.Once
	done      chan struct{}
}

// AudioTrack returns the local audio track, or nil if audio capture is
// not configured.
func (s *Stream) AudioTrack() pion.TrackLocal {
	if s.audio == nil {
		return nil
	}
	return s.audio
}

// VideoTrack returns the local video track, or nil if video capture is
// not configured.
func (s *Stream) VideoTrack() pion.TrackLocal {
	if s.video == nil {
		return nil
	}
	return s.video
}

// SetMicEnabled toggles the audio track. Disabled audio is replaced with
// PCMU silence frames so the receiver's jitter buffer keeps flowing.
func (s *Stream) SetMicEnabled(enabled bool) { s.micEnabled.Store(enabled) }

// SetCamEnabled toggles the video track. Disabled video stops frame
// emission without touching the capture source.
func (s *Stream) SetCamEnabled(enabled bool) { s.camEnabled.Store(enabled) }

func (s *Stream) MicEnabled() bool { return s.micEnabled.Load() }
func (s *Stream) CamEnabled() bool { return s.camEnabled.Load() }

// Close stops the pumps and closes the capture sources.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.audioSrc != nil {
			s.audioSrc.Close()
		}
		if s.videoSrc != nil {
			s.videoSrc.Close()
		}
	})
}

func (s *Stream) pumpAudio() {
	frame := make([]byte, pcmuFrameSize)
	silence := bytes.Repeat([]byte{pcmuSilence}, pcmuFrameSize)
	ticker := time.NewTicker(audioFrameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
		}

		if _, err := io.ReadFull(s.audioSrc, frame); err != nil {
			log.Printf("[media] audio source ended: %v", err)
			return
		}
		payload := frame
		if !s.micEnabled.Load() {
			payload = silence
		}
		if err := s.audio.WriteSample(media.Sample{Data: payload, Duration: audioFrameInterval}); err != nil {
			log.Printf("[media] write audio sample: %v", err)
			return
		}
	}
}

func (s *Stream) pumpVideo() {
	scanner := newNALUScanner(s.videoSrc)
	ticker := time.NewTicker(videoFrameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
		}

		sample, err := nextAccessUnit(scanner)
		if err != nil {
			log.Printf("[media] video source ended: %v", err)
			return
		}
		if !s.camEnabled.Load() {
			continue
		}
		if err := s.video.WriteSample(media.Sample{Data: sample, Duration: videoFrameInterval}); err != nil {
			log.Printf("[media] write video sample: %v", err)
			return
		}
	}
}

// nextAccessUnit collects NAL units up to and including the next slice
// (VCL types 1-5) into one Annex-B sample, so parameter sets and SEI
// ride with their frame instead of each consuming a frame interval.
func nextAccessUnit(scanner *naluScanner) ([]byte, error) {
	startCode := []byte{0x00, 0x00, 0x00, 0x01}
	var sample []byte
	for {
		nalu, err := scanner.Next()
		if err != nil {
			if len(sample) > 0 {
				return sample, nil
			}
			return nil, err
		}
		if len(nalu) == 0 {
			continue
		}
		sample = append(sample, startCode...)
		sample = append(sample, nalu...)
		if naluType := nalu[0] & 0x1f; naluType >= 1 && naluType <= 5 {
			return sample, nil
		}
	}
}

// naluScanner splits an Annex-B H264 elementary stream into NAL units.
type naluScanner struct {
	r   *bufio.Reader
	buf bytes.Buffer
}

func newNALUScanner(r io.Reader) *naluScanner {
	return &naluScanner{r: bufio.NewReaderSize(r, 64*1024)}
}

// Next returns the next NAL unit without its start code.
func (n *naluScanner) Next() ([]byte, error) {
	n.buf.Reset()

	// Skip the leading start code (3 or 4 byte form). A previous call may
	// already have consumed it, in which case the first byte read is the
	// NAL header and is kept.
	for {
		b, err := n.r.ReadByte()
		if err != nil {
			return nil, err
		}
		if b == 0x01 {
			break
		}
		if b != 0x00 {
			n.buf.WriteByte(b)
			break
		}
	}

	zeros := 0
	for {
		b, err := n.r.ReadByte()
		if err != nil {
			if err == io.EOF && n.buf.Len() > zeros {
				out := make([]byte, n.buf.Len()-zeros)
				copy(out, n.buf.Bytes())
				return out, nil
			}
			return nil, err
		}
		if b == 0x01 && zeros >= 2 {
			data := n.buf.Bytes()
			out := make([]byte, len(data)-zeros)
			copy(out, data[:len(data)-zeros])
			return out, nil
		}
		if b == 0x00 {
			zeros++
		} else {
			zeros = 0
		}
		n.buf.WriteByte(b)
	}
}
