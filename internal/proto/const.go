// Package proto implements the CR35 device wire protocol: packet codec,
// fragment reassembly, token resolution, command-queue dispatch, and the
// streaming image parser.
package proto

import "time"

// HeaderSize is the fixed size, in bytes, of every inbound header and footer.
const HeaderSize = 14

// Wire packet-kind ids, carried in the first two bytes of an outbound packet
// (or implied by which encoder produced it).
const (
	wireReadToken uint16 = 0x0003
	wireReadData  uint16 = 0x0010
	wireCommand   uint16 = 0x0011
)

// Wire payload-type ids, placed in the payloadType field of a Command packet.
const (
	wireTypeNone   uint16 = 0x0000
	wireTypeU32    uint16 = 0x0002
	wireTypeBlob   uint16 = 0x0008
	wireTypeString uint16 = 0x0007
	wireTypeU16    uint16 = 0x000B
)

// unknownToken is transmitted when a command names a token not present in the
// TokenTable; the device rejects such packets, but the engine does not
// pre-filter them.
const unknownToken uint32 = 0xFFFFFFFF

// Wire mode values in InboundHeader.Mode.
const (
	ModeSingle     uint16 = 0x0007
	ModeFragmented uint16 = 0x0008
)

// maxFragmentChunk is the payload carried by one 65536-byte wire block once
// its 14-byte injected header is subtracted.
const maxFragmentChunk = 0x10000 - HeaderSize

// Device operational states, decoded from SystemState responses.
const (
	StateUnknown  uint32 = 0
	StateReady    uint32 = 2
	StateScanning uint32 = 4
	StateStopping uint32 = 5
	StateWaiting  uint32 = 6
)

// Timing constants governing dispatcher cadence, command timeout, image
// polling interval, and the graceful-disconnect grace period.
const (
	CommandQueueInterval = 10 * time.Millisecond
	CommandTimeout       = 2 * time.Second
	ImageDataInterval    = 300 * time.Millisecond
	DisconnectWait       = 2 * time.Second
)

// TokenNames is the fixed set of names resolved to numeric ids during
// initialization.
var TokenNames = []string{
	"Connect", "Disconnect", "UserId", "SystemDate", "ImageData",
	"Start", "Stop", "Mode", "PollingOnly", "StopRequest",
	"SystemState", "DeviceId", "Erasor", "Version", "ModeList",
}
