package codec

import (
	"encoding/binary"

	"main/internal/schema"
)

const IntentPayloadSize = 32

// EncodeOrderIntent serializes an order intent into a fixed-size payload.
func EncodeOrderIntent(dst []byte, intent schema.OrderIntent) []byte {
	if cap(dst) < IntentPayloadSize {
		dst = make([]byte, IntentPayloadSize)
	} else {
		dst = dst[:IntentPayloadSize]
	}

	binary.LittleEndian.PutUint64(dst[0:8], intent.OrderID)
	binary.LittleEndian.PutUint16(dst[8:10], uint16(intent.Kind))
	binary.LittleEndian.PutUint16(dst[10:12], uint16(intent.Side))
	binary.LittleEndian.PutUint16(dst[12:14], intent.Level)
	binary.LittleEndian.PutUint16(dst[14:16], intent.Flags)
	binary.LittleEndian.PutUint64(dst[16:24], uint64(intent.Price))
	binary.LittleEndian.PutUint64(dst[24:32], uint64(intent.Qty))

	return dst
}

// DecodeOrderIntent parses a fixed-size order intent payload.
func DecodeOrderIntent(src []byte) (schema.OrderIntent, bool) {
	if len(src) < IntentPayloadSize {
		return schema.OrderIntent{}, false
	}
	return schema.OrderIntent{
		OrderID: binary.LittleEndian.Uint64(src[0:8]),
		Kind:    schema.ActionKind(binary.LittleEndian.Uint16(src[8:10])),
		Side:    schema.OrderSide(binary.LittleEndian.Uint16(src[10:12])),
		Level:   binary.LittleEndian.Uint16(src[12:14]),
		Flags:   binary.LittleEndian.Uint16(src[14:16]),
		Price:   schema.Price(int64(binary.LittleEndian.Uint64(src[16:24]))),
		Qty:     schema.Quantity(int64(binary.LittleEndian.Uint64(src[24:32]))),
	}, true
}
