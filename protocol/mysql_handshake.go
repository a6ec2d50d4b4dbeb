package protocol

import (
	"encoding/binary"
	"fmt"

	"vitess.io/vitess/go/mysql"
)

const defaultAuthMethod = "mysql_native_password"

// HandshakeResponse is what a client sends back after the server handshake.
type HandshakeResponse struct {
	Username     string
	Database     string
	CharacterSet uint8
	Capabilities uint32
	AuthMethod   string
	AuthResponse []byte
	Attributes   map[string]string
}

// ParseHandshakeResponse parses a HandshakeResponse41 packet. Credentials
// are not checked; the backend has no notion of users.
//
// https://dev.mysql.com/doc/dev/mysql-server/latest/page_protocol_connection_phase_packets_protocol_handshake_response.html
func ParseHandshakeResponse(data []byte) (*HandshakeResponse, error) {
	r := &packetReader{data: data}
	resp := &HandshakeResponse{AuthMethod: defaultAuthMethod}

	flags, ok := r.readUint32()
	if !ok {
		return nil, fmt.Errorf("failed to read client capability flags")
	}
	resp.Capabilities = flags
	if flags&mysql.CapabilityClientProtocol41 == 0 {
		return nil, fmt.Errorf("only MySQL protocol 4.1 is supported")
	}

	// Max packet size is ignored
	if _, ok := r.readUint32(); !ok {
		return nil, fmt.Errorf("failed to read max packet size")
	}
	if resp.CharacterSet, ok = r.readByte(); !ok {
		return nil, fmt.Errorf("failed to read character set")
	}
	if !r.skip(23) {
		return nil, fmt.Errorf("packet too short for reserved bytes")
	}
	if resp.Username, ok = r.readNullString(); !ok {
		return nil, fmt.Errorf("failed to read username")
	}

	switch {
	case flags&mysql.CapabilityClientPluginAuthLenencClientData != 0:
		n, ok := r.readLenEncInt()
		if !ok {
			return nil, fmt.Errorf("failed to read auth response length")
		}
		if resp.AuthResponse, ok = r.readBytes(int(n)); !ok {
			return nil, fmt.Errorf("failed to read auth response")
		}
	case flags&mysql.CapabilityClientSecureConnection != 0:
		n, ok := r.readByte()
		if !ok {
			return nil, fmt.Errorf("failed to read auth response length")
		}
		if resp.AuthResponse, ok = r.readBytes(int(n)); !ok {
			return nil, fmt.Errorf("failed to read auth response")
		}
	default:
		auth, ok := r.readNullString()
		if !ok {
			return nil, fmt.Errorf("failed to read auth response")
		}
		resp.AuthResponse = []byte(auth)
	}

	if flags&mysql.CapabilityClientConnectWithDB != 0 {
		if resp.Database, ok = r.readNullString(); !ok {
			return nil, fmt.Errorf("failed to read database name")
		}
	}

	// Everything past the database is optional; a truncated tail still
	// leaves a usable session.
	if flags&mysql.CapabilityClientPluginAuth != 0 && !r.done() {
		if method, ok := r.readNullString(); ok && method != "" {
			resp.AuthMethod = method
		}
	}
	if flags&mysql.CapabilityClientConnAttr != 0 {
		if attrs, ok := r.readConnAttrs(); ok {
			resp.Attributes = attrs
		}
	}

	return resp, nil
}

// packetReader walks a packet payload. Reads past the end report !ok and
// leave the position unchanged.
type packetReader struct {
	data []byte
	pos  int
}

func (r *packetReader) done() bool {
	return r.pos >= len(r.data)
}

func (r *packetReader) skip(n int) bool {
	if r.pos+n > len(r.data) {
		return false
	}
	r.pos += n
	return true
}

func (r *packetReader) readByte() (byte, bool) {
	if r.done() {
		return 0, false
	}
	b := r.data[r.pos]
	r.pos++
	return b, true
}

func (r *packetReader) readUint32() (uint32, bool) {
	if r.pos+4 > len(r.data) {
		return 0, false
	}
	v := binary.LittleEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, true
}

func (r *packetReader) readNullString() (string, bool) {
	for i := r.pos; i < len(r.data); i++ {
		if r.data[i] == 0 {
			s := string(r.data[r.pos:i])
			r.pos = i + 1
			return s, true
		}
	}
	return "", false
}

// readLenEncInt reads a length-encoded integer: values below 0xFB are the byte
// itself, 0xFC/0xFD/0xFE prefix a 2, 3 or 8 byte little-endian value.
func (r *packetReader) readLenEncInt() (uint64, bool) {
	first, ok := r.readByte()
	if !ok {
		return 0, false
	}
	size := 0
	switch first {
	case 0xFC:
		size = 2
	case 0xFD:
		size = 3
	case 0xFE:
		size = 8
	default:
		return uint64(first), true
	}
	if r.pos+size > len(r.data) {
		r.pos--
		return 0, false
	}
	var v uint64
	for i := 0; i < size; i++ {
		v |= uint64(r.data[r.pos+i]) << (8 * i)
	}
	r.pos += size
	return v, true
}

func (r *packetReader) readBytes(n int) ([]byte, bool) {
	if n < 0 || r.pos+n > len(r.data) {
		return nil, false
	}
	out := make([]byte, n)
	copy(out, r.data[r.pos:r.pos+n])
	r.pos += n
	return out, true
}

func (r *packetReader) readLenEncString() (string, bool) {
	start := r.pos
	n, ok := r.readLenEncInt()
	if !ok {
		return "", false
	}
	b, ok := r.readBytes(int(n))
	if !ok {
		r.pos = start
		return "", false
	}
	return string(b), true
}

// readConnAttrs reads the length-prefixed block of key/value attribute pairs.
func (r *packetReader) readConnAttrs() (map[string]string, bool) {
	total, ok := r.readLenEncInt()
	if !ok || r.pos+int(total) > len(r.data) {
		return nil, false
	}
	end := r.pos + int(total)
	attrs := make(map[string]string)
	for r.pos < end {
		key, ok := r.readLenEncString()
		if !ok {
			return attrs, false
		}
		value, ok := r.readLenEncString()
		if !ok {
			return attrs, false
		}
		attrs[key] = value
	}
	return attrs, true
}
