package capture

import (
	"github.com/gordonklaus/portaudio"
)

// PortAudioSource is the one concrete Source backend: a blocking mono
// input stream opened on the system default input device.
type PortAudioSource struct {
	stream *portaudio.Stream
	buf    []int16
}

// NewPortAudioSource opens a blocking mono int16 input stream at
// sampleRate with framesPerBuffer samples per Read call. Callers must have
// already called portaudio.Initialize(); this mirrors the package-level
// init/terminate lifecycle every PortAudio caller in the ecosystem follows.
func NewPortAudioSource(sampleRate float64, framesPerBuffer int) (*PortAudioSource, error) {
	s := &PortAudioSource{buf: make([]int16, framesPerBuffer)}

	stream, err := portaudio.OpenDefaultStream(1, 0, sampleRate, framesPerBuffer, s.buf)
	if err != nil {
		return nil, err
	}
	if err := stream.Start(); err != nil {
		return nil, err
	}
	s.stream = stream
	return s, nil
}

// Read blocks for one frame period and copies the captured samples into
// buf, which must be exactly framesPerBuffer long.
func (s *PortAudioSource) Read(buf []int16) error {
	if err := s.stream.Read(); err != nil {
		return err
	}
	copy(buf, s.buf)
	return nil
}

// Close stops and closes the underlying stream.
func (s *PortAudioSource) Close() error {
	if err := s.stream.Stop(); err != nil {
		return err
	}
	return s.stream.Close()
}
