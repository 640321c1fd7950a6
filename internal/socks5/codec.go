package socks5

import (
	"bytes"
	"errors"
	"io"

	txsocks5 "github.com/txthinking/socks5"
)

// Request is a client request. Cmd is not validated here; callers reply with
// RepCommandNotSupported for anything they do not handle.
type Request struct {
	Cmd byte
	Dst Address
}

// Reply is a server reply to a Request.
type Reply struct {
	Rep byte
	Bnd Address
}

// Credentials is an RFC 1929 username/password pair.
type Credentials struct {
	Username []byte
	Password []byte
}

type cursor struct {
	b   []byte
	off int
}

func (c *cursor) readByte() (byte, error) {
	if c.off >= len(c.b) {
		return 0, protoErr(Truncated, "need 1 byte at offset %d", c.off)
	}
	v := c.b[c.off]
	c.off++
	return v, nil
}

func (c *cursor) next(n int) ([]byte, error) {
	if len(c.b)-c.off < n {
		return nil, protoErr(Truncated, "need %d bytes at offset %d, have %d", n, c.off, len(c.b)-c.off)
	}
	v := c.b[c.off : c.off+n]
	c.off += n
	return v, nil
}

// DecodeMethodRequest decodes VER NMETHODS METHODS and returns the offered
// methods in client order.
func DecodeMethodRequest(b []byte) ([]byte, error) {
	c := &cursor{b: b}
	ver, err := c.readByte()
	if err != nil {
		return nil, err
	}
	if ver != Version {
		return nil, protoErr(BadVersion, "version %#02x", ver)
	}
	n, err := c.readByte()
	if err != nil {
		return nil, err
	}
	methods, err := c.next(int(n))
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), methods...), nil
}

// EncodeMethodRequest encodes a method negotiation request.
func EncodeMethodRequest(methods []byte) []byte {
	return encode(txsocks5.NewNegotiationRequest(methods))
}

// EncodeMethodReply encodes the two byte method selection reply.
func EncodeMethodReply(method byte) []byte {
	return encode(txsocks5.NewNegotiationReply(method))
}

// DecodeRequest decodes VER CMD RSV ATYP DST.ADDR DST.PORT.
//
// When the address type is unknown the error matches ErrBadAddressType and the
// returned Request still carries the command, so the caller can pick the reply.
func DecodeRequest(b []byte) (*Request, error) {
	c := &cursor{b: b}
	hdr, err := c.next(3)
	if err != nil {
		return nil, err
	}
	if hdr[0] != Version {
		return nil, protoErr(BadVersion, "version %#02x", hdr[0])
	}
	if hdr[2] != 0x00 {
		return nil, protoErr(Malformed, "reserved byte %#02x", hdr[2])
	}

	req := &Request{Cmd: hdr[1]}
	dst, err := decodeAddress(c)
	if err != nil {
		if errors.Is(err, ErrBadAddressType) {
			return req, err
		}
		return nil, err
	}
	req.Dst = dst
	return req, nil
}

// EncodeRequest encodes a client request.
func EncodeRequest(req *Request) ([]byte, error) {
	atyp, addr, port, err := req.Dst.wireFields()
	if err != nil {
		return nil, err
	}
	return encode(txsocks5.NewRequest(req.Cmd, atyp, addr, port)), nil
}

// EncodeReply encodes a server reply. The bound address uses whichever address
// type Bnd holds; the zero Address becomes IPv4 0.0.0.0:0.
func EncodeReply(rep *Reply) ([]byte, error) {
	r, err := newTxReply(rep.Rep, rep.Bnd)
	if err != nil {
		return nil, err
	}
	return encode(r), nil
}

func newTxReply(rep byte, bnd Address) (*txsocks5.Reply, error) {
	atyp, addr, port, err := bnd.wireFields()
	if err != nil {
		return nil, err
	}
	return txsocks5.NewReply(rep, atyp, addr, port), nil
}

// DecodeSubAuth decodes VER ULEN UNAME PLEN PASSWD. The returned slices do not
// alias b.
func DecodeSubAuth(b []byte) (*Credentials, error) {
	c := &cursor{b: b}
	ver, err := c.readByte()
	if err != nil {
		return nil, err
	}
	if ver != UserPassVersion {
		return nil, protoErr(BadVersion, "username/password version %#02x", ver)
	}

	var fields [2][]byte
	for i := range fields {
		n, err := c.readByte()
		if err != nil {
			return nil, err
		}
		v, err := c.next(int(n))
		if err != nil {
			return nil, err
		}
		fields[i] = append([]byte{}, v...)
	}
	return &Credentials{Username: fields[0], Password: fields[1]}, nil
}

// EncodeSubAuthRequest encodes a username/password request. Fields longer than
// 255 bytes are rejected.
func EncodeSubAuthRequest(creds *Credentials) ([]byte, error) {
	if len(creds.Username) > 255 || len(creds.Password) > 255 {
		return nil, protoErr(Malformed, "username or password longer than 255 bytes")
	}
	return encode(txsocks5.NewUserPassNegotiationRequest(creds.Username, creds.Password)), nil
}

// EncodeSubAuthReply encodes the two byte sub-negotiation status.
func EncodeSubAuthReply(success bool) []byte {
	return encode(txsocks5.NewUserPassNegotiationReply(subAuthStatus(success)))
}

func subAuthStatus(success bool) byte {
	if success {
		return UserPassStatusSuccess
	}
	return UserPassStatusFailure
}

// encode serializes a txsocks5 message. Writes to a bytes.Buffer cannot fail.
func encode(m io.WriterTo) []byte {
	var buf bytes.Buffer
	_, _ = m.WriteTo(&buf)
	return buf.Bytes()
}
