// Package teensy reads the microcontroller's binary sensor protocol over a
// serial port.
//
// Frame layout, 34 bytes, little-endian:
//
//	| Offset | Size | Field                         |
//	|--------|------|-------------------------------|
//	| 0      | 2    | sync word 0xBEEF              |
//	| 2      | 4    | device timestamp (u32, wraps) |
//	| 6      | 26   | 13 ADC channels, u16 each     |
//	| 32     | 2    | CRC-16/CCITT-FALSE            |
//
// Channel order: A0-A2 pedals A/B/C, A3-A7 levers LKL/LKR/LKV/RKL/RKR,
// A8 volume, A9-A12 bar sensors at frets 0/5/10/15.
package teensy

import (
	"encoding/binary"
	"fmt"

	"github.com/cwbudde/steel-capture/capture"
)

const (
	FrameSize   = 34
	NumChannels = 13

	syncWord = 0xBEEF
)

// Calibration maps raw 12-bit ADC values to the 0..1 range, per channel.
type Calibration struct {
	// Lo and Hi are the raw readings observed at rest and fully engaged.
	Ranges [NumChannels]struct{ Lo, Hi uint16 }
}

// DefaultCalibration leaves margins away from the rails: an SS49E hall
// sensor idles near 0.2V (ADC ~200) and most sensors never reach the full
// 3.3V (ADC ~3800). Real setups replace these per channel.
func DefaultCalibration() Calibration {
	var cal Calibration
	for i := range cal.Ranges {
		cal.Ranges[i].Lo = 200
		cal.Ranges[i].Hi = 3800
	}
	return cal
}

func (c Calibration) apply(ch int, raw uint16) float32 {
	lo := float32(c.Ranges[ch].Lo)
	span := float32(c.Ranges[ch].Hi) - lo
	if span < 1 {
		span = 1
	}
	v := (float32(raw) - lo) / span
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return v
}

// crc16 is CRC-16/CCITT-FALSE (init 0xFFFF, poly 0x1021).
func crc16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// findSync locates the little-endian sync word 0xBEEF in buf.
func findSync(buf []byte) int {
	for i := 0; i+1 < len(buf); i++ {
		if buf[i] == 0xEF && buf[i+1] == 0xBE {
			return i
		}
	}
	return -1
}

// ParseFrame decodes a 34-byte frame into a SensorFrame. The device
// timestamp is discarded; timestampUS comes from the host session clock so
// all inputs share one timeline. Hardware cannot know which strings were
// picked, so StringActive is left all false for audio detection to fill in.
func ParseFrame(data []byte, cal Calibration, timestampUS uint64) (capture.SensorFrame, error) {
	var sf capture.SensorFrame
	if len(data) != FrameSize {
		return sf, fmt.Errorf("teensy: frame size %d, want %d", len(data), FrameSize)
	}
	if sync := binary.LittleEndian.Uint16(data[0:2]); sync != syncWord {
		return sf, fmt.Errorf("teensy: bad sync 0x%04X", sync)
	}

	received := binary.LittleEndian.Uint16(data[FrameSize-2:])
	if computed := crc16(data[:FrameSize-2]); received != computed {
		return sf, fmt.Errorf("teensy: crc mismatch: received 0x%04X, computed 0x%04X", received, computed)
	}

	var cooked [NumChannels]float32
	for ch := 0; ch < NumChannels; ch++ {
		raw := binary.LittleEndian.Uint16(data[6+ch*2:])
		cooked[ch] = cal.apply(ch, raw)
	}

	sf.TimestampUS = timestampUS
	sf.Pedals = [3]float32{cooked[0], cooked[1], cooked[2]}
	sf.Levers = [5]float32{cooked[3], cooked[4], cooked[5], cooked[6], cooked[7]}
	sf.Volume = cooked[8]
	sf.BarSensors = [4]float32{cooked[9], cooked[10], cooked[11], cooked[12]}
	return sf, nil
}
