package rtrwire

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// maxPDULen bounds a single PDU so a malformed length field can't make a
// peer allocate unbounded memory.
const maxPDULen = 1 << 20

// Reader reads framed RTR PDUs off a stream, returning the header and raw
// body (header included) for each one.
type Reader struct {
	r *bufio.Reader
}

// NewReader wraps r for RTR PDU framing.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReaderSize(r, 4096)}
}

// ReadPDU reads one complete PDU and returns its header and full encoded
// bytes (header included), ready to pass to a type-specific decoder.
func (rd *Reader) ReadPDU() (Header, []byte, error) {
	hdrBytes := make([]byte, 8)
	if _, err := io.ReadFull(rd.r, hdrBytes); err != nil {
		return Header{}, nil, err
	}
	h, err := decodeHeader(hdrBytes)
	if err != nil {
		return Header{}, nil, err
	}
	if h.Length < 8 || h.Length > maxPDULen {
		return Header{}, nil, fmt.Errorf("rtrwire: implausible pdu length %d", h.Length)
	}
	body := make([]byte, h.Length)
	copy(body, hdrBytes)
	if _, err := io.ReadFull(rd.r, body[8:]); err != nil {
		return Header{}, nil, err
	}
	return h, body, nil
}

// Writer writes already-encoded PDUs to a stream. It does no locking of its
// own: each PDU goes out in a single Write call, and concurrent callers are
// not serialized.
type Writer struct {
	w io.Writer
}

// NewWriter wraps w for RTR PDU framing.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WritePDU writes an already-encoded PDU verbatim.
func (wr *Writer) WritePDU(b []byte) error {
	_, err := wr.w.Write(b)
	return err
}

// DecodeSerialQuery parses a Serial Query PDU body.
func DecodeSerialQuery(h Header, body []byte) (SerialQuery, error) {
	if len(body) < 12 {
		return SerialQuery{}, fmt.Errorf("rtrwire: short serial query")
	}
	return SerialQuery{SessionID: h.SessionOrField, Serial: binary.BigEndian.Uint32(body[8:12])}, nil
}

// EncodeResetQuery writes a Reset Query PDU.
func EncodeResetQuery(v Version) []byte {
	b := make([]byte, 8)
	Header{Version: v, Type: PDUResetQuery, Length: 8}.encode(b)
	return b
}

// EncodeSerialQuery writes a Serial Query PDU.
func EncodeSerialQuery(v Version, q SerialQuery) []byte {
	b := make([]byte, 12)
	Header{Version: v, Type: PDUSerialQuery, SessionOrField: q.SessionID, Length: 12}.encode(b)
	binary.BigEndian.PutUint32(b[8:12], q.Serial)
	return b
}

// DecodeEndOfData parses an End of Data PDU body, handling both the
// version 0 (12-byte) and version 1+ (24-byte) framing transparently.
func DecodeEndOfData(h Header, body []byte) (EndOfData, error) {
	if len(body) < 12 {
		return EndOfData{}, fmt.Errorf("rtrwire: short end-of-data")
	}
	e := EndOfData{SessionID: h.SessionOrField, Serial: binary.BigEndian.Uint32(body[8:12])}
	if len(body) >= 24 {
		e.Refresh = binary.BigEndian.Uint32(body[12:16])
		e.Retry = binary.BigEndian.Uint32(body[16:20])
		e.Expire = binary.BigEndian.Uint32(body[20:24])
	}
	return e, nil
}
