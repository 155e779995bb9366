package tuya

import (
	"bytes"
	"crypto/aes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
)

// Protocol 3.3 framing constants.
const (
	framePrefix uint32 = 0x000055AA
	frameSuffix uint32 = 0x0000AA55

	// headerSize is prefix + seq + cmd + length.
	headerSize = 16

	// trailerSize is crc + suffix.
	trailerSize = 8

	// retcodeSize is the status word devices put in front of reply payloads.
	retcodeSize = 4

	// maxFrameLength bounds the length field to reject garbage headers.
	maxFrameLength = 4096

	// protocolVersion is the only local protocol version supported.
	protocolVersion = "3.3"

	// versionHeaderSize is "3.3" followed by 12 bytes of padding/sequence.
	versionHeaderSize = 15
)

// Command codes used by the local session.
const (
	cmdStatus  uint32 = 0x08
	cmdDPQuery uint32 = 0x0a
)

// frame is one decoded protocol message.
type frame struct {
	Seq     uint32
	Cmd     uint32
	Payload []byte
}

// encodeFrame serialises a frame with CRC32 and suffix.
func encodeFrame(seq, cmd uint32, payload []byte) []byte {
	buf := make([]byte, headerSize, headerSize+len(payload)+trailerSize)
	binary.BigEndian.PutUint32(buf[0:4], framePrefix)
	binary.BigEndian.PutUint32(buf[4:8], seq)
	binary.BigEndian.PutUint32(buf[8:12], cmd)
	// #nosec G115 -- payload sizes are bounded by maxFrameLength on the read side
	binary.BigEndian.PutUint32(buf[12:16], uint32(len(payload)+trailerSize))
	buf = append(buf, payload...)

	var trailer [trailerSize]byte
	binary.BigEndian.PutUint32(trailer[0:4], crc32.ChecksumIEEE(buf))
	binary.BigEndian.PutUint32(trailer[4:8], frameSuffix)
	return append(buf, trailer[:]...)
}

// readFrame reads and validates a single frame from r.
func readFrame(r io.Reader) (frame, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return frame{}, err
	}

	if prefix := binary.BigEndian.Uint32(header[0:4]); prefix != framePrefix {
		return frame{}, fmt.Errorf("bad frame prefix 0x%08X", prefix)
	}

	length := binary.BigEndian.Uint32(header[12:16])
	if length < trailerSize || length > maxFrameLength {
		return frame{}, fmt.Errorf("bad frame length %d", length)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return frame{}, err
	}

	dataLen := int(length) - trailerSize
	if suffix := binary.BigEndian.Uint32(body[dataLen+4:]); suffix != frameSuffix {
		return frame{}, fmt.Errorf("bad frame suffix 0x%08X", suffix)
	}

	want := binary.BigEndian.Uint32(body[dataLen : dataLen+4])
	crc := crc32.NewIEEE()
	crc.Write(header)
	crc.Write(body[:dataLen])
	if got := crc.Sum32(); got != want {
		return frame{}, fmt.Errorf("frame crc mismatch: got 0x%08X want 0x%08X", got, want)
	}

	return frame{
		Seq:     binary.BigEndian.Uint32(header[4:8]),
		Cmd:     binary.BigEndian.Uint32(header[8:12]),
		Payload: body[:dataLen],
	}, nil
}

// replyData strips the return code and version header from a device reply.
func replyData(payload []byte) []byte {
	data := payload
	if len(data) >= retcodeSize && binary.BigEndian.Uint32(data[:retcodeSize])&0xFFFFFF00 == 0 {
		data = data[retcodeSize:]
	}
	if len(data) >= versionHeaderSize && bytes.HasPrefix(data, []byte(protocolVersion)) {
		data = data[versionHeaderSize:]
	}
	return data
}

// encryptECB encrypts plaintext with AES-128-ECB and PKCS#7 padding.
func encryptECB(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	size := block.BlockSize()
	pad := size - len(plaintext)%size
	padded := make([]byte, len(plaintext)+pad)
	copy(padded, plaintext)
	for i := len(plaintext); i < len(padded); i++ {
		padded[i] = byte(pad)
	}

	out := make([]byte, len(padded))
	for i := 0; i < len(padded); i += size {
		block.Encrypt(out[i:i+size], padded[i:i+size])
	}
	return out, nil
}

// decryptECB reverses encryptECB and validates the padding.
func decryptECB(key, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	size := block.BlockSize()
	if len(ciphertext) == 0 || len(ciphertext)%size != 0 {
		return nil, fmt.Errorf("ciphertext length %d is not a multiple of %d", len(ciphertext), size)
	}

	out := make([]byte, len(ciphertext))
	for i := 0; i < len(ciphertext); i += size {
		block.Decrypt(out[i:i+size], ciphertext[i:i+size])
	}

	pad := int(out[len(out)-1])
	if pad == 0 || pad > size {
		return nil, fmt.Errorf("invalid padding")
	}
	for _, b := range out[len(out)-pad:] {
		if int(b) != pad {
			return nil, fmt.Errorf("invalid padding")
		}
	}
	return out[:len(out)-pad], nil
}
