// Package rtrwire implements the RPKI-to-Router protocol wire format
// (RFC 6810 / RFC 8210): PDU framing, session/serial state, and the
// Client/Server halves that speak it over a net.Conn. The rest of the
// module treats it as a black-box codec, reached only through the
// PayloadSource/PayloadTarget-shaped adapters in package unit and target —
// mirroring how the distilled design assumes an off-the-shelf RTR library.
package rtrwire

import (
	"encoding/binary"
	"fmt"
)

// Version is the RTR protocol version this package speaks.
type Version uint8

const (
	Version0 Version = 0
	Version1 Version = 1
	Version2 Version = 2
)

// PDU types used by this implementation. Router Key and Error Report PDUs
// round out the protocol but aren't required for the relay use case beyond
// erroring out on receipt: a Client returns an error for any type it does
// not expect, and a Conn answers one with an Error Report PDU.
const (
	PDUSerialNotify    uint8 = 0
	PDUSerialQuery     uint8 = 1
	PDUResetQuery      uint8 = 2
	PDUCacheResponse   uint8 = 3
	PDUIPv4Prefix      uint8 = 4
	PDUIPv6Prefix      uint8 = 6
	PDUEndOfData       uint8 = 7
	PDUCacheReset      uint8 = 8
	PDURouterKey       uint8 = 9
	PDUErrorReport     uint8 = 10
	PDUASPA            uint8 = 11
)

// ErrorCode is the RTR protocol-level error code carried by an Error Report
// PDU.
type ErrorCode uint16

const (
	ErrCorruptData         ErrorCode = 0
	ErrInternalError       ErrorCode = 1
	ErrNoDataAvailable     ErrorCode = 2
	ErrInvalidRequest      ErrorCode = 3
	ErrUnsupportedProtoVer ErrorCode = 4
	ErrUnsupportedPDUType  ErrorCode = 5
)

// Header is the common 8-byte RTR PDU header.
type Header struct {
	Version Version
	Type    uint8
	// SessionOrField carries either the session ID (cache-to-router PDUs)
	// or a reserved/flag field (router-to-cache), per PDU type.
	SessionOrField uint16
	Length         uint32
}

func decodeHeader(b []byte) (Header, error) {
	if len(b) < 8 {
		return Header{}, fmt.Errorf("rtrwire: short header (%d bytes)", len(b))
	}
	return Header{
		Version:        Version(b[0]),
		Type:           b[1],
		SessionOrField: binary.BigEndian.Uint16(b[2:4]),
		Length:         binary.BigEndian.Uint32(b[4:8]),
	}, nil
}

func (h Header) encode(b []byte) {
	b[0] = byte(h.Version)
	b[1] = h.Type
	binary.BigEndian.PutUint16(b[2:4], h.SessionOrField)
	binary.BigEndian.PutUint32(b[4:8], h.Length)
}
