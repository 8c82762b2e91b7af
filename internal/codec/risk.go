package codec

import (
	"encoding/binary"

	"main/internal/schema"
)

const RiskDecisionPayloadSize = 48

// EncodeRiskDecision serializes a risk decision into a fixed-size payload.
func EncodeRiskDecision(dst []byte, d schema.RiskDecision) []byte {
	if cap(dst) < RiskDecisionPayloadSize {
		dst = make([]byte, RiskDecisionPayloadSize)
	} else {
		dst = dst[:RiskDecisionPayloadSize]
	}

	binary.LittleEndian.PutUint16(dst[0:2], uint16(d.Action))
	binary.LittleEndian.PutUint16(dst[2:4], uint16(d.Reason))
	binary.LittleEndian.PutUint32(dst[4:8], d.Actions)
	binary.LittleEndian.PutUint64(dst[8:16], uint64(d.CurrentPos))
	binary.LittleEndian.PutUint64(dst[16:24], uint64(d.ProjectedUp))
	binary.LittleEndian.PutUint64(dst[24:32], uint64(d.ProjectedDn))
	binary.LittleEndian.PutUint64(dst[32:40], uint64(d.LongCap))
	binary.LittleEndian.PutUint64(dst[40:48], uint64(d.ShortCap))

	return dst
}

// DecodeRiskDecision parses a fixed-size risk decision payload.
func DecodeRiskDecision(src []byte) (schema.RiskDecision, bool) {
	if len(src) < RiskDecisionPayloadSize {
		return schema.RiskDecision{}, false
	}
	return schema.RiskDecision{
		Action:      schema.RiskAction(binary.LittleEndian.Uint16(src[0:2])),
		Reason:      schema.RiskReason(binary.LittleEndian.Uint16(src[2:4])),
		Actions:     binary.LittleEndian.Uint32(src[4:8]),
		CurrentPos:  schema.Quantity(int64(binary.LittleEndian.Uint64(src[8:16]))),
		ProjectedUp: schema.Quantity(int64(binary.LittleEndian.Uint64(src[16:24]))),
		ProjectedDn: schema.Quantity(int64(binary.LittleEndian.Uint64(src[24:32]))),
		LongCap:     schema.Quantity(int64(binary.LittleEndian.Uint64(src[32:40]))),
		ShortCap:    schema.Quantity(int64(binary.LittleEndian.Uint64(src[40:48]))),
	}, true
}
