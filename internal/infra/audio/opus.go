package audio

import (
	"github.com/cockroachdb/errors"
	"layeh.com/gopus"
)

// NewOpusEncoderFunc returns a constructor for libopus encoders tuned for music.
// Encoders are stateful: one per stream.
func NewOpusEncoderFunc(bitrate int) func() (Encoder, error) {
	return func() (Encoder, error) {
		enc, err := gopus.NewEncoder(SampleRate, Channels, gopus.Audio)
		if err != nil {
			return nil, errors.Wrap(err, "gopus")
		}
		if bitrate > 0 {
			enc.SetBitrate(bitrate)
		}
		return enc, nil
	}
}
