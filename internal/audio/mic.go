package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"

	"github.com/gordonklaus/portaudio"
)

// Microphone is an opened capture device producing PCM16-LE mono samples.
type Microphone interface {
	Start() error
	Stream(w io.Writer) error
	Stop() error
	Close() error
	SampleRate() int
}

// Opener opens the capture device, preferring sampleRate.
type Opener func(sampleRate int) (Microphone, error)

// Mic wraps PortAudio with a configurable buffer size.
type Mic struct {
	stream     *portaudio.Stream
	buf        []int16
	sampleRate int
}

// NewMic opens a PortAudio capture stream with the given sample rate and buffer size (in frames).
func NewMic(sampleRate, framesPerBuffer int) (*Mic, error) {
	buf := make([]int16, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), framesPerBuffer, buf)
	if err != nil {
		return nil, err
	}
	return &Mic{stream: stream, buf: buf, sampleRate: sampleRate}, nil
}

func (m *Mic) Start() error    { return m.stream.Start() }
func (m *Mic) Stop() error     { return m.stream.Stop() }
func (m *Mic) Close() error    { return m.stream.Close() }
func (m *Mic) SampleRate() int { return m.sampleRate }

// Stream reads from the mic and writes PCM16-LE to w until an error or stop.
func (m *Mic) Stream(w io.Writer) error {
	var out bytes.Buffer
	out.Grow(len(m.buf) * 2) // int16 = 2 bytes per sample
	for {
		if err := m.stream.Read(); err != nil {
			return err
		}
		out.Reset()
		if err := binary.Write(&out, binary.LittleEndian, m.buf); err != nil {
			return err
		}
		if _, err := w.Write(out.Bytes()); err != nil {
			return err
		}
	}
}

// Initialize and Terminate bracket all PortAudio use in the process.
func Initialize() error { return portaudio.Initialize() }
func Terminate() error  { return portaudio.Terminate() }

// PortAudioOpener opens the default input device, trying the requested rate
// first and then each fallback until one is accepted.
func PortAudioOpener(framesPerBuffer int, fallbackRates ...int) Opener {
	return func(sampleRate int) (Microphone, error) {
		var lastErr error
		for _, rate := range sampleRateCandidates(sampleRate, fallbackRates) {
			mic, err := NewMic(rate, framesPerBuffer)
			if err != nil {
				slog.Warn("audio: microphone open failed", "sample_rate", rate, "error", err)
				lastErr = err
				continue
			}
			return mic, nil
		}
		if lastErr == nil {
			lastErr = ErrNoMicrophone
		}
		return nil, fmt.Errorf("open microphone: %w", lastErr)
	}
}

func sampleRateCandidates(preferred int, fallbacks []int) []int {
	combined := append([]int{preferred}, fallbacks...)
	combined = append(combined, 16000, 48000, 44100, 32000, 24000)

	seen := make(map[int]struct{}, len(combined))
	result := make([]int, 0, len(combined))
	for _, rate := range combined {
		if rate <= 0 {
			continue
		}
		if _, ok := seen[rate]; ok {
			continue
		}
		seen[rate] = struct{}{}
		result = append(result, rate)
	}
	return result
}
