package proto

import (
	"encoding/binary"
	"fmt"
)

// EncodeCommand serializes c (Kind must be KindCommand) into an outbound
// Command packet: a 14-byte big-endian header followed by the type-encoded
// payload. token is the value looked up for c.Name in the
// TokenTable; pass unknownToken's sentinel via TokenTable.Lookup when the
// name is absent — the packet is still built, length intact.
func EncodeCommand(c Command, token uint32) ([]byte, error) {
	payload, err := encodePayload(c.Type, c.Value)
	if err != nil {
		return nil, fmt.Errorf("encode command %q: %w", c.Name, err)
	}

	buf := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint16(buf[0:2], wireCommand)
	binary.BigEndian.PutUint16(buf[2:4], 0) // flags
	binary.BigEndian.PutUint32(buf[4:8], token)
	binary.BigEndian.PutUint32(buf[8:12], uint32(len(payload)))
	binary.BigEndian.PutUint16(buf[12:14], payloadTypeWire(c.Type))
	copy(buf[HeaderSize:], payload)
	return buf, nil
}

func payloadTypeWire(t PayloadType) uint16 {
	switch t {
	case PayloadU32:
		return wireTypeU32
	case PayloadU16:
		return wireTypeU16
	case PayloadString:
		return wireTypeString
	case PayloadBlob:
		return wireTypeBlob
	default:
		return wireTypeNone
	}
}

func encodePayload(t PayloadType, v any) ([]byte, error) {
	switch t {
	case PayloadU32:
		n, ok := v.(uint32)
		if !ok {
			return nil, fmt.Errorf("payload type U32 requires a uint32 value, got %T", v)
		}
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, n)
		return b, nil
	case PayloadU16:
		n, ok := v.(uint16)
		if !ok {
			return nil, fmt.Errorf("payload type U16 requires a uint16 value, got %T", v)
		}
		b := make([]byte, 2)
		binary.BigEndian.PutUint16(b, n)
		return b, nil
	case PayloadString:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("payload type String requires a string value, got %T", v)
		}
		b := append([]byte(s), 0x00)
		return b, nil
	case PayloadBlob:
		b, ok := v.([]byte)
		if !ok {
			return nil, fmt.Errorf("payload type Blob requires a []byte value, got %T", v)
		}
		return b, nil
	default:
		return nil, nil
	}
}

// DecodePayload is the inverse of encodePayload, used by round-trip tests and
// diagnostics. It strips the String terminator.
func DecodePayload(t PayloadType, b []byte) (any, error) {
	switch t {
	case PayloadU32:
		if len(b) < 4 {
			return nil, fmt.Errorf("U32 payload too short: %d bytes", len(b))
		}
		return binary.BigEndian.Uint32(b[:4]), nil
	case PayloadU16:
		if len(b) < 2 {
			return nil, fmt.Errorf("U16 payload too short: %d bytes", len(b))
		}
		return binary.BigEndian.Uint16(b[:2]), nil
	case PayloadString:
		s := b
		if n := len(s); n > 0 && s[n-1] == 0x00 {
			s = s[:n-1]
		}
		return string(s), nil
	case PayloadBlob:
		return b, nil
	default:
		return nil, nil
	}
}

// EncodeReadToken serializes a request for the numeric id of name: a 14-byte
// big-endian header followed by name and a NUL terminator.
func EncodeReadToken(name string, client ClientID) []byte {
	payload := append([]byte(name), 0x00)
	buf := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint16(buf[0:2], wireReadToken)
	binary.BigEndian.PutUint16(buf[2:4], 0) // reserved
	binary.BigEndian.PutUint16(buf[4:6], uint16(len(payload)))
	binary.BigEndian.PutUint16(buf[6:8], 0) // reserved
	copy(buf[8:14], client[:])
	copy(buf[HeaderSize:], payload)
	return buf
}

// EncodeReadData serializes a request for the current payload bound to
// token: a 14-byte big-endian header, no payload.
func EncodeReadData(token uint32, client ClientID) []byte {
	buf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint16(buf[0:2], wireReadData)
	binary.BigEndian.PutUint16(buf[2:4], 0) // reserved
	binary.BigEndian.PutUint32(buf[4:8], token)
	copy(buf[8:14], client[:])
	return buf
}

// DecodeHeader reads a 14-byte InboundHeader from data at offset. If fewer
// than HeaderSize bytes remain, it returns a zeroed header and ok=false
// ("need more bytes") rather than an error — this is not a protocol failure,
// just an incomplete buffer.
func DecodeHeader(data []byte, offset int) (InboundHeader, bool) {
	if offset < 0 || len(data)-offset < HeaderSize {
		return InboundHeader{}, false
	}
	b := data[offset : offset+HeaderSize]
	h := InboundHeader{
		Flags:      b[0],
		PacketType: b[1],
		Block:      binary.BigEndian.Uint16(b[2:4]),
		Token:      binary.BigEndian.Uint32(b[4:8]),
		Size:       binary.BigEndian.Uint32(b[8:12]),
		Mode:       binary.BigEndian.Uint16(b[12:14]),
	}
	return h, true
}
