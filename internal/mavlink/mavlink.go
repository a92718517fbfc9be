// Package mavlink implements the wire-level pieces of MAVLink v1/v2 that a
// router needs: framing a mixed byte stream into discrete packets and pulling
// the sender and target identifiers out of each one. Payloads are never
// decoded beyond the targeting fields and checksums are not verified; the
// router treats frames as opaque byte slices.
package mavlink

import "fmt"

// MAVLink v1 wire format.
const (
	V1Magic        = 0xFE
	V1HeaderLen    = 6
	V1ChecksumLen  = 2
	V1MinPacketLen = 8
	V1MaxPacketLen = 263
)

// MAVLink v2 wire format.
const (
	V2Magic        = 0xFD
	V2HeaderLen    = 10
	V2ChecksumLen  = 2
	V2SignatureLen = 13
	V2MinPacketLen = 12
	V2MaxPacketLen = 280

	// IncompatFlagSigned marks a v2 frame as carrying a 13 byte signature.
	IncompatFlagSigned = 0x01
)

// SysCompID identifies a MAVLink participant as a (system id, component id)
// pair. The zero values carry broadcast semantics on the target side: a system
// id of 0 addresses every system, and a component id of 0 addresses every
// component within the named system.
type SysCompID struct {
	SysID  uint8 `json:"system_id"`
	CompID uint8 `json:"component_id"`
}

// IsValidSender reports whether the pair may appear as a frame's sender.
// Senders never use the broadcast values.
func (s SysCompID) IsValidSender() bool {
	return s.SysID != 0 && s.CompID != 0
}

// IsBroadcast reports whether the pair addresses every system.
func (s SysCompID) IsBroadcast() bool {
	return s.SysID == 0
}

// IsSysBroadcast reports whether the pair addresses every component of one
// system.
func (s SysCompID) IsSysBroadcast() bool {
	return s.SysID != 0 && s.CompID == 0
}

// Matches reports whether s and other address each other, taking broadcast
// semantics on either side into account.
func (s SysCompID) Matches(other SysCompID) bool {
	if s.IsBroadcast() || other.IsBroadcast() {
		return true
	}
	if s.IsSysBroadcast() || other.IsSysBroadcast() {
		return s.SysID == other.SysID
	}
	return s == other
}

func (s SysCompID) String() string {
	return fmt.Sprintf("sys_id: %d, comp_id: %d", s.SysID, s.CompID)
}

// RoutingInfo pairs the sender of a frame with its target.
type RoutingInfo struct {
	Sender SysCompID
	Target SysCompID
}

// Matches reports whether a frame with this routing info should be delivered
// to the given peer. A frame is never reflected back to its own sender.
func (r RoutingInfo) Matches(peer SysCompID) bool {
	return r.Target.Matches(peer) && r.Sender != peer
}

// Frame is one complete on-wire MAVLink packet: magic, header, payload,
// checksum and, for signed v2 frames, the signature. Data is shared across
// every fan-out recipient and must be treated as immutable.
type Frame struct {
	RoutingInfo RoutingInfo
	Data        []byte
}
