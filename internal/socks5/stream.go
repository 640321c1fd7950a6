package socks5

import (
	"fmt"
	"io"
)

// readFull appends exactly n bytes from r to b. A short read is reported as a
// truncated message.
func readFull(r io.Reader, b []byte, n int) ([]byte, error) {
	off := len(b)
	b = append(b, make([]byte, n)...)
	if _, err := io.ReadFull(r, b[off:]); err != nil {
		return nil, &ProtocolError{Kind: Truncated, Err: err}
	}
	return b, nil
}

// ReadMethodRequest reads one method negotiation message from r.
func ReadMethodRequest(r io.Reader) ([]byte, error) {
	b, err := readFull(r, make([]byte, 0, 2+255), 2)
	if err != nil {
		return nil, err
	}
	if b[0] != Version {
		return nil, protoErr(BadVersion, "version %#02x", b[0])
	}
	if b, err = readFull(r, b, int(b[1])); err != nil {
		return nil, err
	}
	return DecodeMethodRequest(b)
}

// ReadRequest reads one request from r. It stops reading as soon as the
// version or address type is known to be bad, so no further bytes are
// consumed from a misbehaving client.
func ReadRequest(r io.Reader) (*Request, error) {
	b, err := readFull(r, make([]byte, 0, maxRequestSize), 4)
	if err != nil {
		return nil, err
	}
	if b[0] != Version {
		return nil, protoErr(BadVersion, "version %#02x", b[0])
	}
	if b[2] != 0x00 {
		return nil, protoErr(Malformed, "reserved byte %#02x", b[2])
	}

	var n int
	switch b[3] {
	case AddrIPv4:
		n = 4
	case AddrIPv6:
		n = 16
	case AddrDomain:
		if b, err = readFull(r, b, 1); err != nil {
			return nil, err
		}
		n = int(b[4])
	default:
		return &Request{Cmd: b[1]}, protoErr(BadAddressType, "address type %#02x", b[3])
	}

	if b, err = readFull(r, b, n+2); err != nil {
		return nil, err
	}
	return DecodeRequest(b)
}

// ReadSubAuth reads one username/password sub-negotiation message from r.
func ReadSubAuth(r io.Reader) (*Credentials, error) {
	b, err := readFull(r, make([]byte, 0, 3+255+255), 2)
	if err != nil {
		return nil, err
	}
	if b[0] != UserPassVersion {
		return nil, protoErr(BadVersion, "username/password version %#02x", b[0])
	}
	if b, err = readFull(r, b, int(b[1])+1); err != nil {
		return nil, err
	}
	if b, err = readFull(r, b, int(b[len(b)-1])); err != nil {
		return nil, err
	}
	return DecodeSubAuth(b)
}

// WriteReply writes a reply with the given code and bound address.
func WriteReply(w io.Writer, rep byte, bnd Address) error {
	r, err := newTxReply(rep, bnd)
	if err != nil {
		return fmt.Errorf("encode reply: %w", err)
	}
	if _, err := r.WriteTo(w); err != nil {
		return fmt.Errorf("write reply: %w", err)
	}
	return nil
}
