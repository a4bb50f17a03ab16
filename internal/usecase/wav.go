package usecase

import (
	"bytes"
	"encoding/binary"
)

const (
	VoiceSampleRate = 24000
	VoiceChannels   = 1
	wavHeaderSize   = 44
)

// WrapPCM16 prefixes raw little-endian 16-bit PCM samples with a canonical
// 44-byte RIFF/WAVE header.
func WrapPCM16(pcm []byte, sampleRate, channels int) []byte {
	const bitsPerSample = 16
	blockAlign := channels * bitsPerSample / 8
	byteRate := sampleRate * blockAlign

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+len(pcm)))
	le := binary.LittleEndian

	buf.WriteString("RIFF")
	_ = binary.Write(buf, le, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(buf, le, uint32(16)) // fmt chunk size
	_ = binary.Write(buf, le, uint16(1))  // PCM
	_ = binary.Write(buf, le, uint16(channels))
	_ = binary.Write(buf, le, uint32(sampleRate))
	_ = binary.Write(buf, le, uint32(byteRate))
	_ = binary.Write(buf, le, uint16(blockAlign))
	_ = binary.Write(buf, le, uint16(bitsPerSample))
	buf.WriteString("data")
	_ = binary.Write(buf, le, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}
