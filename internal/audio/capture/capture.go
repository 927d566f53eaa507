// Package capture provides the audio input contract the scheduler's audio
// task reads from: a blocking Read returning one mono int16 frame per
// call. Device backend selection beyond the one concrete PortAudio source
// is an external concern.
package capture

// Source is a blocking mono int16 audio frame reader. Read blocks up to
// one frame period and fills buf with exactly len(buf) samples, or returns
// an error on a driver underrun/disconnect.
type Source interface {
	Read(buf []int16) error
	Close() error
}
