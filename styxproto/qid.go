package styxproto

import (
	"encoding/binary"
	"fmt"
)

// QidLen is the length, in bytes, of a packed Qid.
const QidLen = 13

// A QidType is the type of a file, stored in the high 8 bits of a file's
// mode word and mirrored in the first byte of its Qid.
type QidType uint8

const (
	QTDIR    QidType = 0x80 // directory
	QTAPPEND QidType = 0x40 // append-only file
	QTAUTH   QidType = 0x08 // authentication file
	QTFILE   QidType = 0x00 // plain file
)

// A Qid is the server's identity for a file: two files on the same
// server are the same file if and only if their Qids are equal. It packs
// to exactly QidLen bytes on the wire.
type Qid struct {
	Type    QidType
	Version uint32
	Path    uint64
}

// NewQid builds a Qid from its components.
func NewQid(t QidType, version uint32, path uint64) Qid {
	return Qid{Type: t, Version: version, Path: path}
}

// Marshal appends the packed form of q to buf and returns the result.
func (q Qid) Marshal(buf []byte) []byte {
	var b [QidLen]byte
	b[0] = byte(q.Type)
	binary.LittleEndian.PutUint32(b[1:5], q.Version)
	binary.LittleEndian.PutUint64(b[5:13], q.Path)
	return append(buf, b[:]...)
}

// UnmarshalQid reads a packed Qid from the front of buf, returning the
// decoded Qid and the remaining bytes.
func UnmarshalQid(buf []byte) (Qid, []byte, error) {
	if len(buf) < QidLen {
		return Qid{}, buf, ErrShort
	}
	q := Qid{
		Type:    QidType(buf[0]),
		Version: binary.LittleEndian.Uint32(buf[1:5]),
		Path:    binary.LittleEndian.Uint64(buf[5:13]),
	}
	return q, buf[QidLen:], nil
}

func (q Qid) String() string {
	return fmt.Sprintf("type=%#x version=%d path=%d", q.Type, q.Version, q.Path)
}
