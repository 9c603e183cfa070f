package media

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestNALUScanner_SplitsAnnexB(t *testing.T) {
	// A 4-byte start code followed by two 3-byte ones.
	stream := []byte{
		0x00, 0x00, 0x00, 0x01, 0x67, 0xAA,
		0x00, 0x00, 0x01, 0x68, 0xBB,
		0x00, 0x00, 0x01, 0x65, 0xCC, 0xDD, 0xEE,
	}
	scanner := newNALUScanner(bytes.NewReader(stream))

	want := [][]byte{
		{0x67, 0xAA},
		{0x68, 0xBB},
		{0x65, 0xCC, 0xDD, 0xEE},
	}
	for i, w := range want {
		nalu, err := scanner.Next()
		if err != nil {
			t.Fatalf("Next #%d: %v", i, err)
		}
		if !bytes.Equal(nalu, w) {
			t.Errorf("nalu #%d = % X, want % X", i, nalu, w)
		}
	}
	if _, err := scanner.Next(); err != io.EOF {
		t.Errorf("after last unit: %v, want EOF", err)
	}
}

func TestNALUScanner_ZeroBytesInsidePayload(t *testing.T) {
	// A payload byte run of zeros must not be mistaken for a start code
	// unless followed by 0x01.
	stream := []byte{
		0x00, 0x00, 0x00, 0x01, 0x65, 0x00, 0x00, 0xFF, 0x42,
		0x00, 0x00, 0x01, 0x41, 0x10,
	}
	scanner := newNALUScanner(bytes.NewReader(stream))

	nalu, err := scanner.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if want := []byte{0x65, 0x00, 0x00, 0xFF, 0x42}; !bytes.Equal(nalu, want) {
		t.Errorf("nalu = % X, want % X", nalu, want)
	}

	nalu, err = scanner.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if want := []byte{0x41, 0x10}; !bytes.Equal(nalu, want) {
		t.Errorf("nalu = % X, want % X", nalu, want)
	}
}

func TestNextAccessUnit_BatchesParameterSetsWithFrame(t *testing.T) {
	// SPS (7) + PPS (8) + IDR slice (5), then a lone non-IDR slice (1).
	stream := []byte{
		0x00, 0x00, 0x00, 0x01, 0x67, 0xAA,
		0x00, 0x00, 0x01, 0x68, 0xBB,
		0x00, 0x00, 0x01, 0x65, 0xCC, 0xDD,
		0x00, 0x00, 0x01, 0x41, 0xEE,
	}
	scanner := newNALUScanner(bytes.NewReader(stream))

	// The parameter sets ride with the IDR frame as one access unit.
	unit, err := nextAccessUnit(scanner)
	if err != nil {
		t.Fatalf("nextAccessUnit: %v", err)
	}
	want := []byte{
		0x00, 0x00, 0x00, 0x01, 0x67, 0xAA,
		0x00, 0x00, 0x00, 0x01, 0x68, 0xBB,
		0x00, 0x00, 0x00, 0x01, 0x65, 0xCC, 0xDD,
	}
	if !bytes.Equal(unit, want) {
		t.Errorf("unit = % X, want % X", unit, want)
	}

	// The plain slice is its own unit.
	unit, err = nextAccessUnit(scanner)
	if err != nil {
		t.Fatalf("nextAccessUnit: %v", err)
	}
	if want := []byte{0x00, 0x00, 0x00, 0x01, 0x41, 0xEE}; !bytes.Equal(unit, want) {
		t.Errorf("unit = % X, want % X", unit, want)
	}

	if _, err := nextAccessUnit(scanner); err != io.EOF {
		t.Errorf("after last unit: %v, want EOF", err)
	}
}

func TestNextAccessUnit_TrailingNonVCLFlushedAtEOF(t *testing.T) {
	// A stream ending in parameter sets with no following slice still
	// yields what it has.
	stream := []byte{0x00, 0x00, 0x00, 0x01, 0x67, 0xAA}
	scanner := newNALUScanner(bytes.NewReader(stream))

	unit, err := nextAccessUnit(scanner)
	if err != nil {
		t.Fatalf("nextAccessUnit: %v", err)
	}
	if want := []byte{0x00, 0x00, 0x00, 0x01, 0x67, 0xAA}; !bytes.Equal(unit, want) {
		t.Errorf("unit = % X, want % X", unit, want)
	}
}

func TestNALUScanner_EmptyStream(t *testing.T) {
	scanner := newNALUScanner(bytes.NewReader(nil))
	if _, err := scanner.Next(); err != io.EOF {
		t.Errorf("err = %v, want EOF", err)
	}
}

func TestDevice_NoSourcesConfigured(t *testing.T) {
	d := NewDevice("", "")
	if _, err := d.Acquire(); err != ErrNoCapture {
		t.Errorf("err = %v, want ErrNoCapture", err)
	}
}

func TestDevice_MissingSourceFile(t *testing.T) {
	d := NewDevice("", filepath.Join(t.TempDir(), "does-not-exist.ulaw"))
	if _, err := d.Acquire(); err == nil {
		t.Error("expected open error for missing source")
	}
}

func writePCMUFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mic.ulaw")
	// A few seconds of frames so the pump outlives the test.
	if err := os.WriteFile(path, bytes.Repeat([]byte{0x7F}, pcmuFrameSize*100), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDevice_AcquireIsShared(t *testing.T) {
	d := NewDevice("", writePCMUFixture(t))

	first, err := d.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer first.Close()

	second, err := d.Acquire()
	if err != nil {
		t.Fatalf("second Acquire: %v", err)
	}
	if first != second {
		t.Error("Acquire opened a second capture stream")
	}
}

func TestStream_TogglesFlipFlagsOnly(t *testing.T) {
	d := NewDevice("", writePCMUFixture(t))
	stream, err := d.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer stream.Close()

	if !stream.MicEnabled() || !stream.CamEnabled() {
		t.Error("tracks not enabled by default")
	}

	stream.SetMicEnabled(false)
	if stream.MicEnabled() {
		t.Error("mic still enabled")
	}
	// The underlying capture keeps running; re-enabling resumes live
	// frames without reopening anything.
	stream.SetMicEnabled(true)
	if !stream.MicEnabled() {
		t.Error("mic not re-enabled")
	}

	stream.SetCamEnabled(false)
	if stream.CamEnabled() {
		t.Error("cam still enabled")
	}
}

func TestStream_TracksReflectConfiguredSources(t *testing.T) {
	d := NewDevice("", writePCMUFixture(t))
	stream, err := d.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer stream.Close()

	s := stream.(*Stream)
	if s.AudioTrack() == nil {
		t.Error("audio track missing for configured source")
	}
	if s.VideoTrack() != nil {
		t.Error("video track present without a source")
	}
}

func TestStream_CloseIsIdempotent(t *testing.T) {
	d := NewDevice("", writePCMUFixture(t))
	stream, err := d.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	stream.Close()
	stream.Close()
}
