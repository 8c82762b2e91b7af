package recorder

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"

	"main/internal/schema"
)

// Journal frame layout, all LittleEndian:
//
//	[0:4]   magic "ETFJ"
//	[4:6]   frame version
//	[6:8]   header size
//	[8:10]  event type
//	[10:12] schema version
//	[12:14] source
//	[14:16] flags
//	[16:24] sequence
//	[24:32] event timestamp
//	[32:40] receive timestamp
//	[40:48] trace id
//	[48:52] payload length
//	[52:56] crc32c over header[0:52] and payload
const (
	frameVersion    uint16 = 1
	frameHeaderSize        = 56
	crcOffset              = 52
)

var (
	frameMagic = [4]byte{'E', 'T', 'F', 'J'}
	crcTable   = crc32.MakeTable(crc32.Castagnoli)
)

var (
	ErrInvalidMagic       = errors.New("journal invalid magic")
	ErrUnsupportedVersion = errors.New("journal unsupported frame version")
	ErrInvalidFrameHeader = errors.New("journal invalid frame header")
	ErrChecksumMismatch   = errors.New("journal checksum mismatch")
)

func encodeFrame(dst []byte, header schema.EventHeader, payload []byte) {
	_ = dst[frameHeaderSize-1]
	copy(dst[0:4], frameMagic[:])
	binary.LittleEndian.PutUint16(dst[4:6], frameVersion)
	binary.LittleEndian.PutUint16(dst[6:8], uint16(frameHeaderSize))
	binary.LittleEndian.PutUint16(dst[8:10], uint16(header.Type))
	binary.LittleEndian.PutUint16(dst[10:12], header.Version)
	binary.LittleEndian.PutUint16(dst[12:14], header.Source)
	binary.LittleEndian.PutUint16(dst[14:16], header.Flags)
	binary.LittleEndian.PutUint64(dst[16:24], header.Seq)
	binary.LittleEndian.PutUint64(dst[24:32], uint64(header.TsEvent))
	binary.LittleEndian.PutUint64(dst[32:40], uint64(header.TsRecv))
	binary.LittleEndian.PutUint64(dst[40:48], header.TraceID)
	binary.LittleEndian.PutUint32(dst[48:52], uint32(len(payload)))

	crc := crc32.Update(0, crcTable, dst[:crcOffset])
	crc = crc32.Update(crc, crcTable, payload)
	binary.LittleEndian.PutUint32(dst[crcOffset:frameHeaderSize], crc)
}

func decodeFrame(src []byte) (schema.EventHeader, uint32, uint32, error) {
	if len(src) < frameHeaderSize {
		return schema.EventHeader{}, 0, 0, ErrInvalidFrameHeader
	}
	if !bytes.Equal(src[0:4], frameMagic[:]) {
		return schema.EventHeader{}, 0, 0, ErrInvalidMagic
	}
	if ver := binary.LittleEndian.Uint16(src[4:6]); ver != frameVersion {
		return schema.EventHeader{}, 0, 0, ErrUnsupportedVersion
	}
	if size := binary.LittleEndian.Uint16(src[6:8]); size != frameHeaderSize {
		return schema.EventHeader{}, 0, 0, ErrInvalidFrameHeader
	}
	h := schema.EventHeader{
		Type:    schema.EventType(binary.LittleEndian.Uint16(src[8:10])),
		Version: binary.LittleEndian.Uint16(src[10:12]),
		Source:  binary.LittleEndian.Uint16(src[12:14]),
		Flags:   binary.LittleEndian.Uint16(src[14:16]),
		Seq:     binary.LittleEndian.Uint64(src[16:24]),
		TsEvent: int64(binary.LittleEndian.Uint64(src[24:32])),
		TsRecv:  int64(binary.LittleEndian.Uint64(src[32:40])),
		TraceID: binary.LittleEndian.Uint64(src[40:48]),
	}
	payloadLen := binary.LittleEndian.Uint32(src[48:52])
	storedCRC := binary.LittleEndian.Uint32(src[crcOffset:frameHeaderSize])
	return h, payloadLen, storedCRC, nil
}

func frameChecksum(header []byte, payload []byte) uint32 {
	crc := crc32.Update(0, crcTable, header[:crcOffset])
	return crc32.Update(crc, crcTable, payload)
}
