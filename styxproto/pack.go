package styxproto

import "encoding/binary"

// Low-level helpers for building and parsing the wire format. All
// multi-byte integers are little-endian; strings are length-prefixed by
// a 2-byte count of UTF-8 bytes.

func putUint8(buf []byte, v uint8) []byte {
	return append(buf, v)
}

func putUint16(buf []byte, v uint16) []byte {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return append(buf, b[:]...)
}

func putUint32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

func putUint64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

func putString(buf []byte, s string) []byte {
	buf = putUint16(buf, uint16(len(s)))
	return append(buf, s...)
}

func getUint8(buf []byte) (uint8, []byte, error) {
	if len(buf) < 1 {
		return 0, buf, ErrShort
	}
	return buf[0], buf[1:], nil
}

func getUint16(buf []byte) (uint16, []byte, error) {
	if len(buf) < 2 {
		return 0, buf, ErrShort
	}
	return binary.LittleEndian.Uint16(buf[:2]), buf[2:], nil
}

func getUint32(buf []byte) (uint32, []byte, error) {
	if len(buf) < 4 {
		return 0, buf, ErrShort
	}
	return binary.LittleEndian.Uint32(buf[:4]), buf[4:], nil
}

func getUint64(buf []byte) (uint64, []byte, error) {
	if len(buf) < 8 {
		return 0, buf, ErrShort
	}
	return binary.LittleEndian.Uint64(buf[:8]), buf[8:], nil
}

func getString(buf []byte) (string, []byte, error) {
	n, rest, err := getUint16(buf)
	if err != nil {
		return "", buf, err
	}
	if len(rest) < int(n) {
		return "", buf, ErrShort
	}
	return string(rest[:n]), rest[n:], nil
}
