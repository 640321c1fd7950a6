package socks5

import (
	"bytes"
	"errors"
	"net/netip"
	"strings"
	"testing"

	txsocks5 "github.com/txthinking/socks5"
)

func TestRequestRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		dst  Address
	}{
		{name: "ipv4", dst: Address{Type: AddrIPv4, IP: netip.MustParseAddr("127.0.0.1"), Port: 80}},
		{name: "ipv6", dst: Address{Type: AddrIPv6, IP: netip.MustParseAddr("2001:db8::1"), Port: 443}},
		{name: "ipv4-mapped ipv6", dst: Address{Type: AddrIPv6, IP: netip.MustParseAddr("::ffff:10.0.0.1"), Port: 1}},
		{name: "domain length 1", dst: DomainAddress("a", 65535)},
		{name: "domain length 255", dst: DomainAddress(strings.Repeat("x", 255), 8080)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			want := &Request{Cmd: CmdConnect, Dst: tt.dst}
			b, err := EncodeRequest(want)
			if err != nil {
				t.Fatal(err)
			}
			got, err := DecodeRequest(b)
			if err != nil {
				t.Fatal(err)
			}
			if *got != *want {
				t.Fatalf("got %+v want %+v", got, want)
			}

			streamed, err := ReadRequest(bytes.NewReader(b))
			if err != nil {
				t.Fatal(err)
			}
			if *streamed != *want {
				t.Fatalf("ReadRequest got %+v want %+v", streamed, want)
			}
		})
	}
}

func TestDecodeRequestFromTxsocks5(t *testing.T) {
	t.Parallel()

	for _, addr := range []string{"192.0.2.7:8080", "[2001:db8::2]:22", "example.com:443"} {
		t.Run(addr, func(t *testing.T) {
			t.Parallel()

			atyp, host, port, err := txsocks5.ParseAddress(addr)
			if err != nil {
				t.Fatal(err)
			}
			if atyp == txsocks5.ATYPDomain {
				host = host[1:]
			}
			var buf bytes.Buffer
			if _, err := txsocks5.NewRequest(txsocks5.CmdConnect, atyp, host, port).WriteTo(&buf); err != nil {
				t.Fatal(err)
			}

			req, err := DecodeRequest(buf.Bytes())
			if err != nil {
				t.Fatal(err)
			}
			if req.Cmd != CmdConnect {
				t.Fatalf("cmd %#02x", req.Cmd)
			}
			if req.Dst.String() != addr {
				t.Fatalf("got %s want %s", req.Dst, addr)
			}
		})
	}
}

func TestEncodeReplyReadByTxsocks5(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		bnd      Address
		wantAtyp byte
		wantAddr []byte
	}{
		{name: "zero", bnd: Address{}, wantAtyp: AddrIPv4, wantAddr: []byte{0, 0, 0, 0}},
		{name: "ipv4", bnd: AddressFromAddrPort(netip.MustParseAddrPort("127.0.0.1:54321")), wantAtyp: AddrIPv4, wantAddr: []byte{127, 0, 0, 1}},
		{name: "ipv6", bnd: AddressFromAddrPort(netip.MustParseAddrPort("[::1]:54321")), wantAtyp: AddrIPv6, wantAddr: netip.IPv6Loopback().AsSlice()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b, err := EncodeReply(&Reply{Rep: RepSucceeded, Bnd: tt.bnd})
			if err != nil {
				t.Fatal(err)
			}
			rep, err := txsocks5.NewReplyFrom(bytes.NewReader(b))
			if err != nil {
				t.Fatal(err)
			}
			if rep.Rep != RepSucceeded || rep.Atyp != tt.wantAtyp {
				t.Fatalf("rep=%#02x atyp=%#02x", rep.Rep, rep.Atyp)
			}
			if !bytes.Equal(rep.BndAddr, tt.wantAddr) {
				t.Fatalf("bnd addr %v want %v", rep.BndAddr, tt.wantAddr)
			}
		})
	}
}

func TestEncodeReplyBytes(t *testing.T) {
	t.Parallel()

	b, err := EncodeReply(&Reply{Rep: RepSucceeded, Bnd: AddressFromAddrPort(netip.MustParseAddrPort("127.0.0.1:54321"))})
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0x05, 0x00, 0x00, 0x01, 0x7f, 0x00, 0x00, 0x01, 0xd4, 0x31}
	if !bytes.Equal(b, want) {
		t.Fatalf("got % x want % x", b, want)
	}
}

func TestDecodeErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		decode  func([]byte) error
		in      []byte
		wantErr error
	}{
		{name: "methods bad version", decode: decodeMethods, in: []byte{0x04, 0x01, 0x00}, wantErr: ErrBadVersion},
		{name: "methods truncated", decode: decodeMethods, in: []byte{0x05, 0x03, 0x00, 0x02}, wantErr: ErrTruncated},
		{name: "methods empty", decode: decodeMethods, in: nil, wantErr: ErrTruncated},
		{name: "request bad version", decode: decodeRequest, in: []byte{0x04, 0x01, 0x00, 0x01, 1, 2, 3, 4, 0, 80}, wantErr: ErrBadVersion},
		{name: "request reserved", decode: decodeRequest, in: []byte{0x05, 0x01, 0x01, 0x01, 1, 2, 3, 4, 0, 80}, wantErr: ErrMalformed},
		{name: "request bad atyp", decode: decodeRequest, in: []byte{0x05, 0x01, 0x00, 0x02, 1, 2, 3, 4, 0, 80}, wantErr: ErrBadAddressType},
		{name: "request truncated ipv4", decode: decodeRequest, in: []byte{0x05, 0x01, 0x00, 0x01, 1, 2, 3}, wantErr: ErrTruncated},
		{name: "request truncated domain", decode: decodeRequest, in: []byte{0x05, 0x01, 0x00, 0x03, 0x05, 'a', 'b'}, wantErr: ErrTruncated},
		{name: "request empty domain", decode: decodeRequest, in: []byte{0x05, 0x01, 0x00, 0x03, 0x00, 0, 80}, wantErr: ErrBadAddressType},
		{name: "request missing port", decode: decodeRequest, in: []byte{0x05, 0x01, 0x00, 0x01, 1, 2, 3, 4, 0}, wantErr: ErrTruncated},
		{name: "subauth bad version", decode: decodeSubAuth, in: []byte{0x05, 0x01, 'u', 0x01, 'p'}, wantErr: ErrBadVersion},
		{name: "subauth truncated password", decode: decodeSubAuth, in: []byte{0x01, 0x01, 'u', 0x04, 'p'}, wantErr: ErrTruncated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.decode(tt.in)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDecodeRequestKeepsCommandOnBadAddressType(t *testing.T) {
	t.Parallel()

	req, err := DecodeRequest([]byte{0x05, 0x02, 0x00, 0x09})
	if !errors.Is(err, ErrBadAddressType) {
		t.Fatalf("err=%v", err)
	}
	if req == nil || req.Cmd != CmdBind {
		t.Fatalf("req=%+v", req)
	}
}

func TestSubAuthRoundTrip(t *testing.T) {
	t.Parallel()

	want := &Credentials{Username: []byte("bob"), Password: []byte(strings.Repeat("s", 255))}
	b, err := EncodeSubAuthRequest(want)
	if err != nil {
		t.Fatal(err)
	}
	got, err := ReadSubAuth(bytes.NewReader(b))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got.Username, want.Username) || !bytes.Equal(got.Password, want.Password) {
		t.Fatalf("got %q/%q", got.Username, got.Password)
	}

	empty, err := DecodeSubAuth([]byte{0x01, 0x00, 0x00})
	if err != nil {
		t.Fatal(err)
	}
	if len(empty.Username) != 0 || len(empty.Password) != 0 {
		t.Fatalf("expected empty credentials, got %q/%q", empty.Username, empty.Password)
	}

	if _, err := EncodeSubAuthRequest(&Credentials{Username: make([]byte, 256)}); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestReadRequestStopsAtBadAddressType(t *testing.T) {
	t.Parallel()

	r := bytes.NewReader([]byte{0x05, 0x01, 0x00, 0x07, 0xaa, 0xbb})
	req, err := ReadRequest(r)
	if !errors.Is(err, ErrBadAddressType) {
		t.Fatalf("err=%v", err)
	}
	if req.Cmd != CmdConnect {
		t.Fatalf("cmd %#02x", req.Cmd)
	}
	if r.Len() != 2 {
		t.Fatalf("consumed past header, %d bytes left", r.Len())
	}
}

func TestEncodeMethodReply(t *testing.T) {
	t.Parallel()

	if got := EncodeMethodReply(MethodNoAcceptable); !bytes.Equal(got, []byte{0x05, 0xff}) {
		t.Fatalf("got % x", got)
	}
	if got := EncodeSubAuthReply(false); !bytes.Equal(got, []byte{0x01, 0x01}) {
		t.Fatalf("got % x", got)
	}
}

func decodeMethods(b []byte) error {
	_, err := DecodeMethodRequest(b)
	return err
}

func decodeRequest(b []byte) error {
	_, err := DecodeRequest(b)
	return err
}

func decodeSubAuth(b []byte) error {
	_, err := DecodeSubAuth(b)
	return err
}

func TestEncodeWireBytes(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("d", 255)
	mustEncode := func(b []byte, err error) []byte {
		if err != nil {
			t.Fatal(err)
		}
		return b
	}

	tests := []struct {
		name string
		got  []byte
		want []byte
	}{
		{name: "method request", got: EncodeMethodRequest([]byte{0x00, 0x02}), want: []byte{0x05, 0x02, 0x00, 0x02}},
		{name: "method reply none acceptable", got: EncodeMethodReply(MethodNoAcceptable), want: []byte{0x05, 0xff}},
		{name: "subauth request", got: mustEncode(EncodeSubAuthRequest(&Credentials{Username: []byte("bob"), Password: []byte("secret")})), want: append([]byte{0x01, 0x03, 'b', 'o', 'b', 0x06}, "secret"...)},
		{name: "subauth success", got: EncodeSubAuthReply(true), want: []byte{0x01, 0x00}},
		{name: "subauth failure", got: EncodeSubAuthReply(false), want: []byte{0x01, 0x01}},
		{
			name: "ipv4 reply",
			got:  mustEncode(EncodeReply(&Reply{Rep: RepSucceeded, Bnd: AddressFromAddrPort(netip.MustParseAddrPort("127.0.0.1:54321"))})),
			want: []byte{0x05, 0x00, 0x00, 0x01, 0x7f, 0x00, 0x00, 0x01, 0xd4, 0x31},
		},
		{
			name: "zero reply",
			got:  mustEncode(EncodeReply(&Reply{Rep: RepHostUnreachable})),
			want: []byte{0x05, 0x04, 0x00, 0x01, 0, 0, 0, 0, 0, 0},
		},
		{
			name: "ipv6 request",
			got:  mustEncode(EncodeRequest(&Request{Cmd: CmdConnect, Dst: AddressFromAddrPort(netip.MustParseAddrPort("[2001:db8::1]:443"))})),
			want: append(append([]byte{0x05, 0x01, 0x00, 0x04}, netip.MustParseAddr("2001:db8::1").AsSlice()...), 0x01, 0xbb),
		},
		{
			name: "255 byte domain request",
			got:  mustEncode(EncodeRequest(&Request{Cmd: CmdConnect, Dst: DomainAddress(long, 80)})),
			want: append(append([]byte{0x05, 0x01, 0x00, 0x03, 0xff}, long...), 0x00, 0x50),
		},
	}

	for _, tt := range tests {
		if !bytes.Equal(tt.got, tt.want) {
			t.Errorf("%s: got % x want % x", tt.name, tt.got, tt.want)
		}
	}

	if _, err := EncodeRequest(&Request{Cmd: CmdConnect, Dst: Address{Type: AddrIPv4, IP: netip.MustParseAddr("::1")}}); !errors.Is(err, ErrBadAddressType) {
		t.Fatalf("expected ErrBadAddressType, got %v", err)
	}
	if _, err := EncodeReply(&Reply{Bnd: Address{Type: AddrDomain}}); !errors.Is(err, ErrBadAddressType) {
		t.Fatalf("expected ErrBadAddressType for empty domain, got %v", err)
	}
}

func TestClientConnectWritesRequest(t *testing.T) {
	t.Parallel()

	conn := newScriptedConn(0x05, 0x00, 0x00, 0x01, 10, 0, 0, 1, 0x1f, 0x90)
	if err := ClientConnect(conn, "example.com:443"); err != nil {
		t.Fatal(err)
	}
	want := append(append([]byte{0x05, 0x01, 0x00, 0x03, 0x0b}, "example.com"...), 0x01, 0xbb)
	if !bytes.Equal(conn.Bytes(), want) {
		t.Fatalf("sent % x want % x", conn.Bytes(), want)
	}

	refused := newScriptedConn(0x05, 0x05, 0x00, 0x01, 0, 0, 0, 0, 0, 0)
	if err := ClientConnect(refused, "[2001:db8::1]:22"); !errors.Is(err, ReplyError(RepConnectionRefused)) {
		t.Fatalf("expected connection refused, got %v", err)
	}
}
