package styxproto

// MaxStatLen is an upper bound for a single packed Stat record. Nothing in
// this module checks records against it: Marshal and directory reads
// accept name/uid/gid/muid fields of any length.
const MaxStatLen = 4096

// A Stat describes a single file's metadata, as carried in Rstat/Twstat
// and concatenated, one per child, in directory Rread responses.
type Stat struct {
	Type   uint16
	Dev    uint32
	Qid    Qid
	Mode   uint32
	Atime  uint32
	Mtime  uint32
	Length uint64
	Name   string
	Uid    string
	Gid    string
	Muid   string
}

// Marshal appends the packed form of s, including its leading 2-byte
// size prefix, to buf and returns the result.
func (s Stat) Marshal(buf []byte) []byte {
	body := make([]byte, 0, 47+len(s.Name)+len(s.Uid)+len(s.Gid)+len(s.Muid))
	body = putUint16(body, s.Type)
	body = putUint32(body, s.Dev)
	body = s.Qid.Marshal(body)
	body = putUint32(body, s.Mode)
	body = putUint32(body, s.Atime)
	body = putUint32(body, s.Mtime)
	body = putUint64(body, s.Length)
	body = putString(body, s.Name)
	body = putString(body, s.Uid)
	body = putString(body, s.Gid)
	body = putString(body, s.Muid)

	buf = putUint16(buf, uint16(len(body)))
	return append(buf, body...)
}

// Len returns the number of bytes Marshal would append, including the
// 2-byte size prefix. Directory-read framing uses this to find record
// boundaries without fully unmarshaling every child.
func (s Stat) Len() int {
	return 49 + len(s.Name) + len(s.Uid) + len(s.Gid) + len(s.Muid)
}

// UnmarshalStat decodes a single size-prefixed Stat record from the front
// of buf, returning the decoded Stat and the unconsumed remainder.
func UnmarshalStat(buf []byte) (Stat, []byte, error) {
	size, rest, err := getUint16(buf)
	if err != nil {
		return Stat{}, buf, err
	}
	if len(rest) < int(size) {
		return Stat{}, buf, ErrShort
	}
	body, tail := rest[:size], rest[size:]

	var s Stat
	if s.Type, body, err = getUint16(body); err != nil {
		return Stat{}, buf, err
	}
	if s.Dev, body, err = getUint32(body); err != nil {
		return Stat{}, buf, err
	}
	if s.Qid, body, err = UnmarshalQid(body); err != nil {
		return Stat{}, buf, err
	}
	if s.Mode, body, err = getUint32(body); err != nil {
		return Stat{}, buf, err
	}
	if s.Atime, body, err = getUint32(body); err != nil {
		return Stat{}, buf, err
	}
	if s.Mtime, body, err = getUint32(body); err != nil {
		return Stat{}, buf, err
	}
	if s.Length, body, err = getUint64(body); err != nil {
		return Stat{}, buf, err
	}
	if s.Name, body, err = getString(body); err != nil {
		return Stat{}, buf, err
	}
	if s.Uid, body, err = getString(body); err != nil {
		return Stat{}, buf, err
	}
	if s.Gid, body, err = getString(body); err != nil {
		return Stat{}, buf, err
	}
	if s.Muid, _, err = getString(body); err != nil {
		return Stat{}, buf, err
	}
	return s, tail, nil
}

// IsDir reports whether s describes a directory.
func (s Stat) IsDir() bool { return s.Mode&DMDIR != 0 }
