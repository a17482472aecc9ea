package styxproto

// Encode appends the wire form of m, including its 4-byte size and 1-byte
// type header, to buf and returns the result. It panics if m is not one
// of the Message types declared in this package -- a programmer error,
// never a function of untrusted input.
func Encode(buf []byte, m Message) []byte {
	start := len(buf)
	buf = append(buf, 0, 0, 0, 0) // size, patched below
	buf = putUint8(buf, msgType(m))
	buf = putUint16(buf, m.MessageTag())
	buf = encodeBody(buf, m)

	size := uint32(len(buf) - start)
	buf[start], buf[start+1], buf[start+2], buf[start+3] =
		byte(size), byte(size>>8), byte(size>>16), byte(size>>24)
	return buf
}

func msgType(m Message) uint8 {
	switch m.(type) {
	case Tversion:
		return MsgTversion
	case Rversion:
		return MsgRversion
	case Tauth:
		return MsgTauth
	case Rauth:
		return MsgRauth
	case Tattach:
		return MsgTattach
	case Rattach:
		return MsgRattach
	case Rerror:
		return MsgRerror
	case Tflush:
		return MsgTflush
	case Rflush:
		return MsgRflush
	case Twalk:
		return MsgTwalk
	case Rwalk:
		return MsgRwalk
	case Topen:
		return MsgTopen
	case Ropen:
		return MsgRopen
	case Tcreate:
		return MsgTcreate
	case Rcreate:
		return MsgRcreate
	case Tread:
		return MsgTread
	case Rread:
		return MsgRread
	case Twrite:
		return MsgTwrite
	case Rwrite:
		return MsgRwrite
	case Tclunk:
		return MsgTclunk
	case Rclunk:
		return MsgRclunk
	case Tremove:
		return MsgTremove
	case Rremove:
		return MsgRremove
	case Tstat:
		return MsgTstat
	case Rstat:
		return MsgRstat
	case Twstat:
		return MsgTwstat
	case Rwstat:
		return MsgRwstat
	default:
		panic("styxproto: Encode called with unknown message type")
	}
}

func encodeBody(buf []byte, m Message) []byte {
	switch v := m.(type) {
	case Tversion:
		buf = putUint32(buf, v.Msize)
		buf = putString(buf, v.Version)
	case Rversion:
		buf = putUint32(buf, v.Msize)
		buf = putString(buf, v.Version)
	case Tauth:
		buf = putUint32(buf, v.Afid)
		buf = putString(buf, v.Uname)
		buf = putString(buf, v.Aname)
	case Rauth:
		buf = v.Aqid.Marshal(buf)
	case Tattach:
		buf = putUint32(buf, v.Fid)
		buf = putUint32(buf, v.Afid)
		buf = putString(buf, v.Uname)
		buf = putString(buf, v.Aname)
	case Rattach:
		buf = v.Qid.Marshal(buf)
	case Rerror:
		buf = putString(buf, v.Ename)
	case Tflush:
		buf = putUint16(buf, v.Oldtag)
	case Rflush:
	case Twalk:
		buf = putUint32(buf, v.Fid)
		buf = putUint32(buf, v.Newfid)
		buf = putUint16(buf, uint16(len(v.Wname)))
		for _, name := range v.Wname {
			buf = putString(buf, name)
		}
	case Rwalk:
		buf = putUint16(buf, uint16(len(v.Wqid)))
		for _, q := range v.Wqid {
			buf = q.Marshal(buf)
		}
	case Topen:
		buf = putUint32(buf, v.Fid)
		buf = putUint8(buf, v.Mode)
	case Ropen:
		buf = v.Qid.Marshal(buf)
		buf = putUint32(buf, v.IOunit)
	case Tcreate:
		buf = putUint32(buf, v.Fid)
		buf = putString(buf, v.Name)
		buf = putUint32(buf, v.Perm)
		buf = putUint8(buf, v.Mode)
	case Rcreate:
		buf = v.Qid.Marshal(buf)
		buf = putUint32(buf, v.IOunit)
	case Tread:
		buf = putUint32(buf, v.Fid)
		buf = putUint64(buf, v.Offset)
		buf = putUint32(buf, v.Count)
	case Rread:
		buf = putUint32(buf, uint32(len(v.Data)))
		buf = append(buf, v.Data...)
	case Twrite:
		buf = putUint32(buf, v.Fid)
		buf = putUint64(buf, v.Offset)
		buf = putUint32(buf, uint32(len(v.Data)))
		buf = append(buf, v.Data...)
	case Rwrite:
		buf = putUint32(buf, v.Count)
	case Tclunk:
		buf = putUint32(buf, v.Fid)
	case Rclunk:
	case Tremove:
		buf = putUint32(buf, v.Fid)
	case Rremove:
	case Tstat:
		buf = putUint32(buf, v.Fid)
	case Rstat:
		buf = v.Stat.Marshal(buf)
	case Twstat:
		buf = putUint32(buf, v.Fid)
		buf = v.Stat.Marshal(buf)
	case Rwstat:
	}
	return buf
}
