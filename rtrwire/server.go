package rtrwire

import (
	"fmt"
	"net"

	"github.com/go-rtrtr/rtrtr/payload"
)

// ServerState is the data an RTR server target answers queries from: the
// current Set, the session ID it was produced under, and the serial it
// corresponds to. target/rtr.go is responsible for keeping one of these
// current plus a bounded history of diffs between past serials.
type ServerState struct {
	SessionID uint16
	Serial    uint32
	Data      *payload.Set
}

// HistoryLookup resolves a Serial Query's requested serial to the Diff that
// would bring a router at that serial up to the server's current serial, or
// reports that no such history is kept (the router must Reset Query).
type HistoryLookup func(serial uint32) (diff *payload.Diff, ok bool)

// Conn is one accepted RTR server-side connection.
type Conn struct {
	net.Conn
	r       *Reader
	w       *Writer
	version Version
}

// NewConn wraps an accepted connection for server-side RTR framing.
func NewConn(nc net.Conn, version Version) *Conn {
	return &Conn{Conn: nc, r: NewReader(nc), w: NewWriter(nc), version: version}
}

// QueryKind distinguishes which query a client sent, for the caller's
// per-client metrics bookkeeping.
type QueryKind int

const (
	// QueryReset is a Reset Query: the client wants the full current set.
	QueryReset QueryKind = iota
	// QuerySerial is a Serial Query: the client wants everything since a
	// serial it remembers.
	QuerySerial
)

// QueryResult describes the query ServeQuery just answered.
type QueryResult struct {
	Kind            QueryKind
	RequestedSerial uint32
}

// ServeQuery reads exactly one query PDU (Reset or Serial) and answers it
// using the current state and, for a Serial Query past history, history.
// It returns once the response is written; callers loop it to keep serving
// a persistent connection, and call Notify independently to push
// unsolicited Serial Notify PDUs when state changes.
func (c *Conn) ServeQuery(state ServerState, history HistoryLookup, timing Timing) (QueryResult, error) {
	h, body, err := c.r.ReadPDU()
	if err != nil {
		return QueryResult{}, err
	}

	switch h.Type {
	case PDUResetQuery:
		return QueryResult{Kind: QueryReset}, c.sendFull(state, timing)
	case PDUSerialQuery:
		q, err := DecodeSerialQuery(h, body)
		if err != nil {
			return QueryResult{Kind: QuerySerial}, c.sendError(ErrCorruptData, body, err.Error())
		}
		result := QueryResult{Kind: QuerySerial, RequestedSerial: q.Serial}
		if q.SessionID != state.SessionID {
			return result, c.w.WritePDU(EncodeCacheReset(c.version))
		}
		if q.Serial == state.Serial {
			return result, c.sendEndOfData(state, timing)
		}
		diff, ok := history(q.Serial)
		if !ok {
			return result, c.w.WritePDU(EncodeCacheReset(c.version))
		}
		return result, c.sendDiff(state, diff, timing)
	default:
		return QueryResult{}, c.sendError(ErrUnsupportedPDUType, body, fmt.Sprintf("unexpected pdu type %d", h.Type))
	}
}

func (c *Conn) sendFull(state ServerState, timing Timing) error {
	if err := c.w.WritePDU(EncodeCacheResponse(c.version, CacheResponse{SessionID: state.SessionID})); err != nil {
		return err
	}
	it := state.Data.Iter()
	for v, ok := it.Next(); ok; v, ok = it.Next() {
		if err := c.sendPrefix(v, flagAnnounce); err != nil {
			return err
		}
	}
	return c.sendEndOfData(state, timing)
}

func (c *Conn) sendDiff(state ServerState, diff *payload.Diff, timing Timing) error {
	if err := c.w.WritePDU(EncodeCacheResponse(c.version, CacheResponse{SessionID: state.SessionID})); err != nil {
		return err
	}
	it := diff.Iter()
	for v, action, ok := it.Next(); ok; v, action, ok = it.Next() {
		flag := flagWithdraw
		if action == payload.Announce {
			flag = flagAnnounce
		}
		if err := c.sendPrefix(v, flag); err != nil {
			return err
		}
	}
	return c.sendEndOfData(state, timing)
}

func (c *Conn) sendPrefix(v payload.Payload, flag uint8) error {
	b, err := EncodePrefix(c.version, PrefixPDU{Flags: flag, Payload: v})
	if err != nil {
		return err
	}
	return c.w.WritePDU(b)
}

func (c *Conn) sendEndOfData(state ServerState, timing Timing) error {
	return c.w.WritePDU(EncodeEndOfData(c.version, EndOfData{
		SessionID: state.SessionID,
		Serial:    state.Serial,
		Refresh:   timing.Refresh,
		Retry:     timing.Retry,
		Expire:    timing.Expire,
	}))
}

func (c *Conn) sendError(code ErrorCode, pdu []byte, reason string) error {
	return c.w.WritePDU(EncodeErrorReport(c.version, ErrorReport{Code: code, PDU: pdu, Reason: reason}))
}

// Notify pushes an unsolicited Serial Notify PDU, telling the router new
// data is available without it having to poll.
func (c *Conn) Notify(state ServerState) error {
	return c.w.WritePDU(EncodeSerialNotify(c.version, SerialNotify{SessionID: state.SessionID, Serial: state.Serial}))
}
