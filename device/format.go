package device

import (
	"errors"
	"fmt"
	"math"

	"github.com/gen2brain/malgo"
)

// ErrUnsupportedFormat indicates the requested device sample format has no
// converter to the pipeline's canonical signed 16-bit representation.
var ErrUnsupportedFormat = errors.New("unsupported device sample format")

// sampleCodec converts between a device's native sample representation and
// the pipeline's canonical signed 16-bit samples. The supported formats form
// a closed set; stream creation fails for anything else.
type sampleCodec struct {
	format      malgo.FormatType
	bytesPerVal int
	decode      func(data []byte) int16
	encode      func(sample int16, dst []byte)
}

// newSampleCodec returns the codec for a supported malgo format, or
// ErrUnsupportedFormat.
func newSampleCodec(format malgo.FormatType) (*sampleCodec, error) {
	switch format {
	case malgo.FormatS16:
		return &sampleCodec{
			format:      format,
			bytesPerVal: 2,
			decode: func(data []byte) int16 {
				return int16(data[0]) | int16(data[1])<<8
			},
			encode: func(sample int16, dst []byte) {
				dst[0] = byte(sample)
				dst[1] = byte(sample >> 8)
			},
		}, nil

	case malgo.FormatS32:
		return &sampleCodec{
			format:      format,
			bytesPerVal: 4,
			decode: func(data []byte) int16 {
				v := int32(data[0]) | int32(data[1])<<8 | int32(data[2])<<16 | int32(data[3])<<24
				return int16(v >> 16)
			},
			encode: func(sample int16, dst []byte) {
				v := int32(sample) << 16
				dst[0] = byte(v)
				dst[1] = byte(v >> 8)
				dst[2] = byte(v >> 16)
				dst[3] = byte(v >> 24)
			},
		}, nil

	case malgo.FormatF32:
		return &sampleCodec{
			format:      format,
			bytesPerVal: 4,
			decode: func(data []byte) int16 {
				bits := uint32(data[0]) | uint32(data[1])<<8 | uint32(data[2])<<16 | uint32(data[3])<<24
				f := math.Float32frombits(bits)
				if f > 1.0 {
					f = 1.0
				} else if f < -1.0 {
					f = -1.0
				}
				return int16(f * 32767.0)
			},
			encode: func(sample int16, dst []byte) {
				bits := math.Float32bits(float32(sample) / 32768.0)
				dst[0] = byte(bits)
				dst[1] = byte(bits >> 8)
				dst[2] = byte(bits >> 16)
				dst[3] = byte(bits >> 24)
			},
		}, nil

	case malgo.FormatU8:
		return &sampleCodec{
			format:      format,
			bytesPerVal: 1,
			decode: func(data []byte) int16 {
				return (int16(data[0]) - 128) << 8
			},
			encode: func(sample int16, dst []byte) {
				dst[0] = byte(uint8(sample>>8) + 128)
			},
		}, nil

	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, format)
	}
}

// decodeFirstChannel extracts the first channel of interleaved device data
// into mono int16 samples, reusing dst when it has capacity.
func (c *sampleCodec) decodeFirstChannel(data []byte, channels int, dst []int16) []int16 {
	stride := c.bytesPerVal * channels
	if stride == 0 {
		return dst[:0]
	}

	frames := len(data) / stride
	if cap(dst) < frames {
		dst = make([]int16, frames)
	}
	dst = dst[:frames]

	for i := 0; i < frames; i++ {
		dst[i] = c.decode(data[i*stride:])
	}
	return dst
}

// encodeAllChannels writes mono samples into interleaved device data,
// duplicating each sample across every device channel.
func (c *sampleCodec) encodeAllChannels(samples []int16, channels int, dst []byte) {
	stride := c.bytesPerVal * channels
	for i, sample := range samples {
		base := i * stride
		if base+stride > len(dst) {
			break
		}
		for ch := 0; ch < channels; ch++ {
			c.encode(sample, dst[base+ch*c.bytesPerVal:])
		}
	}
}
