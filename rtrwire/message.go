package rtrwire

import (
	"encoding/binary"
	"fmt"
	"net/netip"

	"github.com/go-rtrtr/rtrtr/payload"
)

// SerialNotify announces that new data is available at Serial without
// requiring the router to poll.
type SerialNotify struct {
	SessionID uint16
	Serial    uint32
}

// SerialQuery asks the cache for every change since Serial.
type SerialQuery struct {
	SessionID uint16
	Serial    uint32
}

// ResetQuery asks the cache to send its entire current data set.
type ResetQuery struct{}

// CacheResponse precedes a stream of prefix PDUs, confirming the session ID
// the rest of the exchange pertains to.
type CacheResponse struct {
	SessionID uint16
}

// EndOfData terminates a stream of prefix PDUs and carries the serial the
// client should remember along with refresh/retry/expire timing (protocol
// version 1+; zero on version 0).
type EndOfData struct {
	SessionID uint16
	Serial    uint32
	Refresh   uint32
	Retry     uint32
	Expire    uint32
}

// CacheReset tells the router its cache is stale and it must issue a
// ResetQuery.
type CacheReset struct{}

// PrefixPDU carries one announced or withdrawn VRP.
type PrefixPDU struct {
	Flags   uint8 // 1 = announce, 0 = withdraw
	Payload payload.Payload
}

const (
	flagAnnounce uint8 = 1
	flagWithdraw uint8 = 0
)

// ErrorReport carries a protocol error, optionally quoting the offending
// PDU and a human-readable reason.
type ErrorReport struct {
	Code   ErrorCode
	PDU    []byte
	Reason string
}

// EncodeSerialNotify writes a Serial Notify PDU.
func EncodeSerialNotify(v Version, n SerialNotify) []byte {
	b := make([]byte, 12)
	Header{Version: v, Type: PDUSerialNotify, SessionOrField: n.SessionID, Length: 12}.encode(b)
	binary.BigEndian.PutUint32(b[8:12], n.Serial)
	return b
}

// EncodeCacheResponse writes a Cache Response PDU.
func EncodeCacheResponse(v Version, r CacheResponse) []byte {
	b := make([]byte, 8)
	Header{Version: v, Type: PDUCacheResponse, SessionOrField: r.SessionID, Length: 8}.encode(b)
	return b
}

// EncodeCacheReset writes a Cache Reset PDU.
func EncodeCacheReset(v Version) []byte {
	b := make([]byte, 8)
	Header{Version: v, Type: PDUCacheReset, Length: 8}.encode(b)
	return b
}

// EncodeEndOfData writes an End of Data PDU, version 0 framing (no timing)
// if v == Version0, version 1+ framing (with timing) otherwise.
func EncodeEndOfData(v Version, e EndOfData) []byte {
	if v == Version0 {
		b := make([]byte, 12)
		Header{Version: v, Type: PDUEndOfData, SessionOrField: e.SessionID, Length: 12}.encode(b)
		binary.BigEndian.PutUint32(b[8:12], e.Serial)
		return b
	}
	b := make([]byte, 24)
	Header{Version: v, Type: PDUEndOfData, SessionOrField: e.SessionID, Length: 24}.encode(b)
	binary.BigEndian.PutUint32(b[8:12], e.Serial)
	binary.BigEndian.PutUint32(b[12:16], e.Refresh)
	binary.BigEndian.PutUint32(b[16:20], e.Retry)
	binary.BigEndian.PutUint32(b[20:24], e.Expire)
	return b
}

// EncodePrefix writes an IPv4 or IPv6 Prefix PDU depending on the address
// family of p.Payload.Prefix.
func EncodePrefix(v Version, p PrefixPDU) ([]byte, error) {
	addr := p.Payload.Prefix.Addr()
	if addr.Is4() {
		b := make([]byte, 20)
		Header{Version: v, Type: PDUIPv4Prefix, Length: 20}.encode(b)
		b[8] = p.Flags
		b[9] = uint8(p.Payload.Prefix.Bits())
		b[10] = p.Payload.MaxLength
		b[11] = 0
		a4 := addr.As4()
		copy(b[12:16], a4[:])
		binary.BigEndian.PutUint32(b[16:20], p.Payload.ASN)
		return b, nil
	}
	if addr.Is6() {
		b := make([]byte, 32)
		Header{Version: v, Type: PDUIPv6Prefix, Length: 32}.encode(b)
		b[8] = p.Flags
		b[9] = uint8(p.Payload.Prefix.Bits())
		b[10] = p.Payload.MaxLength
		b[11] = 0
		a16 := addr.As16()
		copy(b[12:28], a16[:])
		binary.BigEndian.PutUint32(b[28:32], p.Payload.ASN)
		return b, nil
	}
	return nil, fmt.Errorf("rtrwire: unsupported address family for %s", p.Payload.Prefix)
}

// DecodePrefix parses the body of an already-dispatched IPv4/IPv6 Prefix
// PDU (header included) back into a PrefixPDU.
func DecodePrefix(h Header, body []byte) (PrefixPDU, error) {
	if h.Type == PDUIPv4Prefix {
		if len(body) < 20 {
			return PrefixPDU{}, fmt.Errorf("rtrwire: short ipv4 prefix pdu")
		}
		var a4 [4]byte
		copy(a4[:], body[12:16])
		addr := netip.AddrFrom4(a4)
		prefix := netip.PrefixFrom(addr, int(body[9]))
		return PrefixPDU{
			Flags: body[8],
			Payload: payload.Payload{
				Prefix:    prefix,
				MaxLength: body[10],
				ASN:       binary.BigEndian.Uint32(body[16:20]),
			},
		}, nil
	}
	if h.Type == PDUIPv6Prefix {
		if len(body) < 32 {
			return PrefixPDU{}, fmt.Errorf("rtrwire: short ipv6 prefix pdu")
		}
		var a16 [16]byte
		copy(a16[:], body[12:28])
		addr := netip.AddrFrom16(a16)
		prefix := netip.PrefixFrom(addr, int(body[9]))
		return PrefixPDU{
			Flags: body[8],
			Payload: payload.Payload{
				Prefix:    prefix,
				MaxLength: body[10],
				ASN:       binary.BigEndian.Uint32(body[28:32]),
			},
		}, nil
	}
	return PrefixPDU{}, fmt.Errorf("rtrwire: not a prefix pdu (type %d)", h.Type)
}

// EncodeErrorReport writes an Error Report PDU.
func EncodeErrorReport(v Version, e ErrorReport) []byte {
	reason := []byte(e.Reason)
	length := 16 + len(e.PDU) + len(reason)
	b := make([]byte, length)
	Header{Version: v, Type: PDUErrorReport, SessionOrField: uint16(e.Code), Length: uint32(length)}.encode(b)
	binary.BigEndian.PutUint32(b[8:12], uint32(len(e.PDU)))
	off := 12
	off += copy(b[off:], e.PDU)
	binary.BigEndian.PutUint32(b[off:off+4], uint32(len(reason)))
	off += 4
	copy(b[off:], reason)
	return b
}
