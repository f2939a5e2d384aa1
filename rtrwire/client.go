package rtrwire

import (
	"fmt"
	"net"

	"github.com/go-rtrtr/rtrtr/payload"
)

// SessionState tracks a client's last-known session ID and serial so it can
// ask for an incremental Serial Query instead of a full Reset Query once it
// has synchronized once.
type SessionState struct {
	Have      bool
	SessionID uint16
	Serial    uint32
}

// Timing carries the refresh/retry/expire intervals an RTR server may
// advertise in its End of Data PDU (seconds; zero means "use the locally
// configured default").
type Timing struct {
	Refresh uint32
	Retry   uint32
	Expire  uint32
}

// PullResult is the outcome of one Client.Pull call: either a full
// replacement Set (first pull, or after a Cache Reset) or an incremental
// Diff the caller must apply to whatever Set it currently holds.
type PullResult struct {
	Full   *payload.Set
	Diff   *payload.Diff
	Serial uint32
	Timing Timing
}

// Client speaks the router (requester) side of the RTR protocol over conn.
type Client struct {
	conn    net.Conn
	r       *Reader
	w       *Writer
	version Version
}

// NewClient wraps conn for one RTR session.
func NewClient(conn net.Conn, version Version) *Client {
	return &Client{conn: conn, r: NewReader(conn), w: NewWriter(conn), version: version}
}

// Close closes the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

// SendError writes an Error Report PDU to the server naming code and
// reason, then closes the connection. A router is required to report a
// protocol error and drop the session rather than continue on corrupt
// state; pdu, if non-nil, is the offending PDU quoted back as the protocol
// allows.
func (c *Client) SendError(code ErrorCode, pdu []byte, reason string) error {
	err := c.w.WritePDU(EncodeErrorReport(c.version, ErrorReport{Code: code, PDU: pdu, Reason: reason}))
	if closeErr := c.conn.Close(); err == nil {
		err = closeErr
	}
	return err
}

// ErrCacheReset is returned from Pull when the server sends a Cache Reset
// in response to a Serial Query; the caller must retry with state.Have set
// to false to force a Reset Query.
var ErrCacheReset = fmt.Errorf("rtrwire: cache reset, retry with reset query")

// Pull issues a Reset Query (if state has no prior session) or a Serial
// Query (otherwise) and reads the full response.
func (c *Client) Pull(state SessionState) (PullResult, SessionState, error) {
	if !state.Have {
		if err := c.w.WritePDU(EncodeResetQuery(c.version)); err != nil {
			return PullResult{}, state, err
		}
	} else {
		if err := c.w.WritePDU(EncodeSerialQuery(c.version, SerialQuery{SessionID: state.SessionID, Serial: state.Serial})); err != nil {
			return PullResult{}, state, err
		}
	}

	h, _, err := c.r.ReadPDU()
	if err != nil {
		return PullResult{}, state, err
	}

	switch h.Type {
	case PDUCacheReset:
		return PullResult{}, SessionState{}, ErrCacheReset
	case PDUErrorReport:
		return PullResult{}, state, fmt.Errorf("rtrwire: error report (code %d)", h.SessionOrField)
	case PDUCacheResponse:
		return c.readPrefixStream(h.SessionOrField, state)
	default:
		return PullResult{}, state, fmt.Errorf("rtrwire: unexpected pdu type %d", h.Type)
	}
}

func (c *Client) readPrefixStream(sessionID uint16, state SessionState) (PullResult, SessionState, error) {
	diffing := state.Have
	diffBuilder := payload.NewDiffBuilder()
	fullBuilder := payload.NewSetBuilder()

	for {
		h, body, err := c.r.ReadPDU()
		if err != nil {
			return PullResult{}, state, err
		}
		switch h.Type {
		case PDUIPv4Prefix, PDUIPv6Prefix:
			p, err := DecodePrefix(h, body)
			if err != nil {
				return PullResult{}, state, err
			}
			action := payload.Withdraw
			if p.Flags == flagAnnounce {
				action = payload.Announce
			}
			if diffing {
				if err := diffBuilder.Push(p.Payload, action); err != nil {
					return PullResult{}, state, err
				}
			} else if action == payload.Announce {
				pb := payload.NewPackBuilder(1)
				pb.Push(p.Payload)
				fullBuilder.InsertPack(pb.Finalize())
			}
		case PDUEndOfData:
			eod, err := DecodeEndOfData(h, body)
			if err != nil {
				return PullResult{}, state, err
			}
			newState := SessionState{Have: true, SessionID: sessionID, Serial: eod.Serial}
			timing := Timing{Refresh: eod.Refresh, Retry: eod.Retry, Expire: eod.Expire}
			if diffing {
				return PullResult{Diff: diffBuilder.Finalize(), Serial: eod.Serial, Timing: timing}, newState, nil
			}
			return PullResult{Full: fullBuilder.Finalize(), Serial: eod.Serial, Timing: timing}, newState, nil
		default:
			return PullResult{}, state, fmt.Errorf("rtrwire: unexpected pdu type %d mid-response", h.Type)
		}
	}
}
