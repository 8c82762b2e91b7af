package codec

import (
	"encoding/binary"

	"main/internal/schema"
)

const OrderAckPayloadSize = 40

// EncodeOrderAck serializes an order ack into a fixed-size payload.
func EncodeOrderAck(dst []byte, ack schema.OrderAck) []byte {
	if cap(dst) < OrderAckPayloadSize {
		dst = make([]byte, OrderAckPayloadSize)
	} else {
		dst = dst[:OrderAckPayloadSize]
	}

	binary.LittleEndian.PutUint64(dst[0:8], ack.OrderID)
	binary.LittleEndian.PutUint16(dst[8:10], uint16(ack.Status))
	binary.LittleEndian.PutUint16(dst[10:12], uint16(ack.Reason))
	binary.LittleEndian.PutUint16(dst[12:14], ack.Flags)
	binary.LittleEndian.PutUint16(dst[14:16], ack.Reserved)
	binary.LittleEndian.PutUint64(dst[16:24], uint64(ack.Price))
	binary.LittleEndian.PutUint64(dst[24:32], uint64(ack.Qty))
	binary.LittleEndian.PutUint64(dst[32:40], uint64(ack.LeavesQty))

	return dst
}

// DecodeOrderAck parses a fixed-size order ack payload.
func DecodeOrderAck(src []byte) (schema.OrderAck, bool) {
	if len(src) < OrderAckPayloadSize {
		return schema.OrderAck{}, false
	}
	return schema.OrderAck{
		OrderID:   binary.LittleEndian.Uint64(src[0:8]),
		Status:    schema.OrderAckStatus(binary.LittleEndian.Uint16(src[8:10])),
		Reason:    schema.OrderAckReason(binary.LittleEndian.Uint16(src[10:12])),
		Flags:     binary.LittleEndian.Uint16(src[12:14]),
		Reserved:  binary.LittleEndian.Uint16(src[14:16]),
		Price:     schema.Price(int64(binary.LittleEndian.Uint64(src[16:24]))),
		Qty:       schema.Quantity(int64(binary.LittleEndian.Uint64(src[24:32]))),
		LeavesQty: schema.Quantity(int64(binary.LittleEndian.Uint64(src[32:40]))),
	}, true
}
