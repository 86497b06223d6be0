package rtc

import (
	"bytes"
	"encoding/binary"
)

// EncodeWAV wraps the concatenated PCM data of the given frames into a
// minimal 16-bit PCM WAV container. All frames are expected to share the
// geometry of the first frame.
func EncodeWAV(frames []AudioFrame) []byte {
	sampleRate := 16000
	numChannels := 1
	if len(frames) > 0 {
		sampleRate = frames[0].SampleRate
		numChannels = frames[0].NumChannels
	}

	var pcm bytes.Buffer
	for _, f := range frames {
		pcm.Write(f.Data)
	}

	const bitsPerSample = 16
	byteRate := sampleRate * numChannels * bitsPerSample / 8
	blockAlign := numChannels * bitsPerSample / 8
	dataLen := pcm.Len()

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(numChannels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataLen))
	buf.Write(pcm.Bytes())

	return buf.Bytes()
}
