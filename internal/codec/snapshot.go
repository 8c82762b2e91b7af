package codec

import (
	"encoding/binary"

	"main/internal/schema"
)

const (
	snapshotHeaderSize    = 16
	componentQuoteSize    = 48
	maxSnapshotComponents = 1 << 16
)

// SnapshotPayloadSize returns the encoded size for a component count.
func SnapshotPayloadSize(components int) int {
	return snapshotHeaderSize + components*componentQuoteSize
}

// EncodeMarketSnapshot serializes a snapshot into a length-prefixed payload.
func EncodeMarketSnapshot(dst []byte, snap schema.MarketSnapshot) []byte {
	size := SnapshotPayloadSize(len(snap.Components))
	if cap(dst) < size {
		dst = make([]byte, size)
	} else {
		dst = dst[:size]
	}

	binary.LittleEndian.PutUint64(dst[0:8], uint64(snap.TsEvent))
	binary.LittleEndian.PutUint32(dst[8:12], uint32(len(snap.Components)))
	binary.LittleEndian.PutUint32(dst[12:16], 0)

	off := snapshotHeaderSize
	for _, c := range snap.Components {
		binary.LittleEndian.PutUint32(dst[off:off+4], uint32(c.SymbolID))
		binary.LittleEndian.PutUint16(dst[off+4:off+6], c.Flags)
		binary.LittleEndian.PutUint16(dst[off+6:off+8], c.Reserved)
		binary.LittleEndian.PutUint64(dst[off+8:off+16], uint64(c.BidPrice))
		binary.LittleEndian.PutUint64(dst[off+16:off+24], uint64(c.BidSize))
		binary.LittleEndian.PutUint64(dst[off+24:off+32], uint64(c.AskPrice))
		binary.LittleEndian.PutUint64(dst[off+32:off+40], uint64(c.AskSize))
		binary.LittleEndian.PutUint64(dst[off+40:off+48], uint64(c.LastPrice))
		off += componentQuoteSize
	}
	return dst
}

// DecodeMarketSnapshot parses a length-prefixed snapshot payload.
func DecodeMarketSnapshot(src []byte) (schema.MarketSnapshot, bool) {
	if len(src) < snapshotHeaderSize {
		return schema.MarketSnapshot{}, false
	}
	count := int(binary.LittleEndian.Uint32(src[8:12]))
	if count < 0 || count > maxSnapshotComponents {
		return schema.MarketSnapshot{}, false
	}
	if len(src) < SnapshotPayloadSize(count) {
		return schema.MarketSnapshot{}, false
	}
	snap := schema.MarketSnapshot{
		TsEvent: int64(binary.LittleEndian.Uint64(src[0:8])),
	}
	if count > 0 {
		snap.Components = make([]schema.ComponentQuote, 0, count)
	}
	off := snapshotHeaderSize
	for i := 0; i < count; i++ {
		snap.Components = append(snap.Components, schema.ComponentQuote{
			SymbolID:  schema.SymbolID(binary.LittleEndian.Uint32(src[off : off+4])),
			Flags:     binary.LittleEndian.Uint16(src[off+4 : off+6]),
			Reserved:  binary.LittleEndian.Uint16(src[off+6 : off+8]),
			BidPrice:  schema.Price(int64(binary.LittleEndian.Uint64(src[off+8 : off+16]))),
			BidSize:   schema.Quantity(int64(binary.LittleEndian.Uint64(src[off+16 : off+24]))),
			AskPrice:  schema.Price(int64(binary.LittleEndian.Uint64(src[off+24 : off+32]))),
			AskSize:   schema.Quantity(int64(binary.LittleEndian.Uint64(src[off+32 : off+40]))),
			LastPrice: schema.Price(int64(binary.LittleEndian.Uint64(src[off+40 : off+48]))),
		})
		off += componentQuoteSize
	}
	return snap, true
}
