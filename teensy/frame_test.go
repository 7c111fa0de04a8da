package teensy

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"testing"

	"github.com/cwbudde/steel-capture/capture"
)

// makeFrame builds a valid 34-byte frame with correct CRC.
func makeFrame(adc [NumChannels]uint16, timestamp uint32) []byte {
	buf := make([]byte, FrameSize)
	binary.LittleEndian.PutUint16(buf[0:], syncWord)
	binary.LittleEndian.PutUint32(buf[2:], timestamp)
	for i, v := range adc {
		binary.LittleEndian.PutUint16(buf[6+i*2:], v)
	}
	binary.LittleEndian.PutUint16(buf[FrameSize-2:], crc16(buf[:FrameSize-2]))
	return buf
}

func TestCRC16KnownVector(t *testing.T) {
	if got := crc16([]byte("123456789")); got != 0x29B1 {
		t.Fatalf("crc16 = 0x%04X, want 0x29B1", got)
	}
}

func TestFindSync(t *testing.T) {
	cases := []struct {
		buf  []byte
		want int
	}{
		{[]byte{0x00, 0x00, 0xEF, 0xBE, 0x01, 0x02}, 2},
		{[]byte{0xEF, 0xBE, 0x01, 0x02}, 0},
		{[]byte{0x00, 0x01, 0x02, 0x03}, -1},
		// A trailing 0xEF cannot be confirmed yet.
		{[]byte{0x00, 0x01, 0xEF}, -1},
		{nil, -1},
		{[]byte{0xEF}, -1},
		{[]byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xEF, 0xBE, 0x00}, 5},
	}
	for _, c := range cases {
		if got := findSync(c.buf); got != c.want {
			t.Fatalf("findSync(%v) = %d, want %d", c.buf, got, c.want)
		}
	}
}

func TestParseValidFrame(t *testing.T) {
	var adc [NumChannels]uint16
	for i := range adc {
		adc[i] = 2000
	}
	sf, err := ParseFrame(makeFrame(adc, 1000), DefaultCalibration(), 42)
	if err != nil {
		t.Fatalf("ParseFrame: %v", err)
	}
	if sf.TimestampUS != 42 {
		t.Fatalf("host timestamp %d, want 42", sf.TimestampUS)
	}
	// Raw 2000 over (200, 3800) is half scale.
	if math.Abs(float64(sf.Pedals[0]-0.5)) > 0.01 {
		t.Fatalf("pedal A %v, want ~0.5", sf.Pedals[0])
	}
	if math.Abs(float64(sf.Volume-0.5)) > 0.01 {
		t.Fatalf("volume %v, want ~0.5", sf.Volume)
	}
	if sf.StringActive != ([10]bool{}) {
		t.Fatalf("hardware frames must not carry string activity")
	}
}

func TestParseRejectsBadCRC(t *testing.T) {
	var adc [NumChannels]uint16
	frame := makeFrame(adc, 1000)
	frame[FrameSize-1] ^= 0xFF
	if _, err := ParseFrame(frame, DefaultCalibration(), 0); err == nil {
		t.Fatalf("corrupt CRC accepted")
	}
}

func TestParseRejectsBadSync(t *testing.T) {
	var adc [NumChannels]uint16
	frame := makeFrame(adc, 1000)
	frame[0] = 0x00
	if _, err := ParseFrame(frame, DefaultCalibration(), 0); err == nil {
		t.Fatalf("bad sync accepted")
	}
}

func TestParseRejectsWrongSize(t *testing.T) {
	if _, err := ParseFrame(make([]byte, 10), DefaultCalibration(), 0); err == nil {
		t.Fatalf("short frame accepted")
	}
}

func TestCalibrationClamps(t *testing.T) {
	var adc [NumChannels]uint16
	adc[0] = 0    // below Lo
	adc[1] = 4095 // above Hi
	adc[2] = 200  // exactly Lo
	sf, err := ParseFrame(makeFrame(adc, 500), DefaultCalibration(), 0)
	if err != nil {
		t.Fatalf("ParseFrame: %v", err)
	}
	if sf.Pedals[0] != 0 || sf.Pedals[1] != 1 || sf.Pedals[2] != 0 {
		t.Fatalf("clamping wrong: %v", sf.Pedals)
	}
}

func TestChannelMapping(t *testing.T) {
	var adc [NumChannels]uint16
	adc[0], adc[1], adc[2] = 3800, 3800, 3800
	adc[3], adc[4], adc[5], adc[6], adc[7] = 200, 200, 200, 200, 200
	adc[8] = 2000
	adc[9], adc[10], adc[11], adc[12] = 3000, 3000, 3000, 3000

	sf, err := ParseFrame(makeFrame(adc, 0), DefaultCalibration(), 0)
	if err != nil {
		t.Fatalf("ParseFrame: %v", err)
	}
	for i := 0; i < 3; i++ {
		if sf.Pedals[i] != 1 {
			t.Fatalf("pedal %d = %v, want 1", i, sf.Pedals[i])
		}
	}
	for i := 0; i < 5; i++ {
		if sf.Levers[i] != 0 {
			t.Fatalf("lever %d = %v, want 0", i, sf.Levers[i])
		}
	}
	want := float32(3000-200) / 3600
	for i := 0; i < 4; i++ {
		if math.Abs(float64(sf.BarSensors[i]-want)) > 0.01 {
			t.Fatalf("bar sensor %d = %v, want ~%v", i, sf.BarSensors[i], want)
		}
	}
}

type chunkedPort struct {
	data      []byte
	chunkSize int
}

func (p *chunkedPort) Read(b []byte) (int, error) {
	if len(p.data) == 0 {
		return 0, io.EOF
	}
	n := p.chunkSize
	if n > len(p.data) || n == 0 {
		n = len(p.data)
	}
	if n > len(b) {
		n = len(b)
	}
	copy(b, p.data[:n])
	p.data = p.data[n:]
	return n, nil
}

func (p *chunkedPort) Close() error { return nil }

func TestReaderReassemblesSplitFrames(t *testing.T) {
	var adc [NumChannels]uint16
	for i := range adc {
		adc[i] = 2000
	}
	// Garbage, then three frames, delivered in 7-byte reads.
	var stream bytes.Buffer
	stream.Write([]byte{0x01, 0x02, 0x03})
	for i := 0; i < 3; i++ {
		stream.Write(makeFrame(adc, uint32(i)))
	}

	out := make(chan capture.InputEvent, 16)
	r := NewReader(&chunkedPort{data: stream.Bytes(), chunkSize: 7}, capture.NewClock(), out)
	if err := r.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	close(out)

	n := 0
	for ev := range out {
		if ev.Sensor == nil {
			t.Fatalf("non-sensor event from serial reader")
		}
		n++
	}
	if n != 3 {
		t.Fatalf("decoded %d frames, want 3", n)
	}
	if r.Frames() != 3 {
		t.Fatalf("Frames() = %d, want 3", r.Frames())
	}
}

func TestReaderSkipsCorruptFrame(t *testing.T) {
	var adc [NumChannels]uint16
	good := makeFrame(adc, 0)
	bad := makeFrame(adc, 1)
	bad[20] ^= 0xFF // corrupt an ADC byte so the CRC fails

	var stream bytes.Buffer
	stream.Write(bad)
	stream.Write(good)

	out := make(chan capture.InputEvent, 16)
	r := NewReader(&chunkedPort{data: stream.Bytes()}, capture.NewClock(), out)
	r.Run()
	close(out)

	n := 0
	for range out {
		n++
	}
	if n != 1 {
		t.Fatalf("decoded %d frames, want 1 good", n)
	}
	if r.Errors() == 0 {
		t.Fatalf("corrupt frame not counted as error")
	}
}
