package styxproto

import "fmt"

// MaxMsize is a conservative ceiling on the negotiable msize, matching
// the "conservative default of 65536 bytes" recommendation in the wire
// protocol's external interface description.
const MaxMsize = 1 << 16

// Decode reads one complete message from the front of data. On success it
// returns the decoded message and the number of bytes consumed. If data
// does not yet hold a complete message, it returns ErrShort and a consumed
// count of 0; the caller should retry once more bytes have arrived. A
// message whose declared size is absurd (less than the 7-byte header, or
// larger than maxSize) is a framing error distinct from ErrShort: the
// caller should close the connection rather than retry.
func Decode(data []byte, maxSize int) (Message, int, error) {
	if len(data) < 4 {
		return nil, 0, ErrShort
	}
	size, _, err := getUint32(data)
	if err != nil {
		return nil, 0, err
	}
	if size < 7 {
		return nil, 0, fmt.Errorf("styxproto: implausible message size %d", size)
	}
	if maxSize > 0 && int(size) > maxSize {
		return nil, 0, ErrTooLarge
	}
	if len(data) < int(size) {
		return nil, 0, ErrShort
	}
	body := data[4:size]

	mtype, body, err := getUint8(body)
	if err != nil {
		return nil, 0, err
	}
	tag, body, err := getUint16(body)
	if err != nil {
		return nil, 0, err
	}

	m, err := decodeBody(mtype, tag, body)
	if err == ErrShort {
		// The whole frame is buffered, so a short field means the body
		// is malformed, not that more bytes are on the way.
		err = fmt.Errorf("styxproto: truncated %s body", MessageName(mtype))
	}
	if err != nil {
		return nil, 0, err
	}
	return m, int(size), nil
}

func decodeBody(mtype uint8, tag uint16, b []byte) (Message, error) {
	var err error
	switch mtype {
	case MsgTversion:
		m := Tversion{Tag: tag}
		if m.Msize, b, err = getUint32(b); err != nil {
			return nil, err
		}
		if m.Version, _, err = getString(b); err != nil {
			return nil, err
		}
		return m, nil
	case MsgRversion:
		m := Rversion{Tag: tag}
		if m.Msize, b, err = getUint32(b); err != nil {
			return nil, err
		}
		if m.Version, _, err = getString(b); err != nil {
			return nil, err
		}
		return m, nil
	case MsgTauth:
		m := Tauth{Tag: tag}
		if m.Afid, b, err = getUint32(b); err != nil {
			return nil, err
		}
		if m.Uname, b, err = getString(b); err != nil {
			return nil, err
		}
		if m.Aname, _, err = getString(b); err != nil {
			return nil, err
		}
		return m, nil
	case MsgRauth:
		m := Rauth{Tag: tag}
		if m.Aqid, _, err = UnmarshalQid(b); err != nil {
			return nil, err
		}
		return m, nil
	case MsgTattach:
		m := Tattach{Tag: tag}
		if m.Fid, b, err = getUint32(b); err != nil {
			return nil, err
		}
		if m.Afid, b, err = getUint32(b); err != nil {
			return nil, err
		}
		if m.Uname, b, err = getString(b); err != nil {
			return nil, err
		}
		if m.Aname, _, err = getString(b); err != nil {
			return nil, err
		}
		return m, nil
	case MsgRattach:
		m := Rattach{Tag: tag}
		if m.Qid, _, err = UnmarshalQid(b); err != nil {
			return nil, err
		}
		return m, nil
	case MsgRerror:
		m := Rerror{Tag: tag}
		if m.Ename, _, err = getString(b); err != nil {
			return nil, err
		}
		return m, nil
	case MsgTflush:
		m := Tflush{Tag: tag}
		if m.Oldtag, _, err = getUint16(b); err != nil {
			return nil, err
		}
		return m, nil
	case MsgRflush:
		return Rflush{Tag: tag}, nil
	case MsgTwalk:
		m := Twalk{Tag: tag}
		if m.Fid, b, err = getUint32(b); err != nil {
			return nil, err
		}
		if m.Newfid, b, err = getUint32(b); err != nil {
			return nil, err
		}
		n, b2, err := getUint16(b)
		if err != nil {
			return nil, err
		}
		b = b2
		m.Wname = make([]string, n)
		for i := range m.Wname {
			if m.Wname[i], b, err = getString(b); err != nil {
				return nil, err
			}
		}
		return m, nil
	case MsgRwalk:
		m := Rwalk{Tag: tag}
		n, b2, err := getUint16(b)
		if err != nil {
			return nil, err
		}
		b = b2
		m.Wqid = make([]Qid, n)
		for i := range m.Wqid {
			if m.Wqid[i], b, err = UnmarshalQid(b); err != nil {
				return nil, err
			}
		}
		return m, nil
	case MsgTopen:
		m := Topen{Tag: tag}
		if m.Fid, b, err = getUint32(b); err != nil {
			return nil, err
		}
		if m.Mode, _, err = getUint8(b); err != nil {
			return nil, err
		}
		return m, nil
	case MsgRopen:
		m := Ropen{Tag: tag}
		if m.Qid, b, err = UnmarshalQid(b); err != nil {
			return nil, err
		}
		if m.IOunit, _, err = getUint32(b); err != nil {
			return nil, err
		}
		return m, nil
	case MsgTcreate:
		m := Tcreate{Tag: tag}
		if m.Fid, b, err = getUint32(b); err != nil {
			return nil, err
		}
		if m.Name, b, err = getString(b); err != nil {
			return nil, err
		}
		if m.Perm, b, err = getUint32(b); err != nil {
			return nil, err
		}
		if m.Mode, _, err = getUint8(b); err != nil {
			return nil, err
		}
		return m, nil
	case MsgRcreate:
		m := Rcreate{Tag: tag}
		if m.Qid, b, err = UnmarshalQid(b); err != nil {
			return nil, err
		}
		if m.IOunit, _, err = getUint32(b); err != nil {
			return nil, err
		}
		return m, nil
	case MsgTread:
		m := Tread{Tag: tag}
		if m.Fid, b, err = getUint32(b); err != nil {
			return nil, err
		}
		if m.Offset, b, err = getUint64(b); err != nil {
			return nil, err
		}
		if m.Count, _, err = getUint32(b); err != nil {
			return nil, err
		}
		return m, nil
	case MsgRread:
		m := Rread{Tag: tag}
		n, b2, err := getUint32(b)
		if err != nil {
			return nil, err
		}
		if len(b2) < int(n) {
			return nil, ErrShort
		}
		m.Data = append([]byte(nil), b2[:n]...)
		return m, nil
	case MsgTwrite:
		m := Twrite{Tag: tag}
		if m.Fid, b, err = getUint32(b); err != nil {
			return nil, err
		}
		if m.Offset, b, err = getUint64(b); err != nil {
			return nil, err
		}
		n, b2, err := getUint32(b)
		if err != nil {
			return nil, err
		}
		if len(b2) < int(n) {
			return nil, ErrShort
		}
		m.Data = append([]byte(nil), b2[:n]...)
		return m, nil
	case MsgRwrite:
		m := Rwrite{Tag: tag}
		if m.Count, _, err = getUint32(b); err != nil {
			return nil, err
		}
		return m, nil
	case MsgTclunk:
		m := Tclunk{Tag: tag}
		if m.Fid, _, err = getUint32(b); err != nil {
			return nil, err
		}
		return m, nil
	case MsgRclunk:
		return Rclunk{Tag: tag}, nil
	case MsgTremove:
		m := Tremove{Tag: tag}
		if m.Fid, _, err = getUint32(b); err != nil {
			return nil, err
		}
		return m, nil
	case MsgRremove:
		return Rremove{Tag: tag}, nil
	case MsgTstat:
		m := Tstat{Tag: tag}
		if m.Fid, _, err = getUint32(b); err != nil {
			return nil, err
		}
		return m, nil
	case MsgRstat:
		m := Rstat{Tag: tag}
		if m.Stat, _, err = UnmarshalStat(b); err != nil {
			return nil, err
		}
		return m, nil
	case MsgTwstat:
		m := Twstat{Tag: tag}
		if m.Fid, b, err = getUint32(b); err != nil {
			return nil, err
		}
		if m.Stat, _, err = UnmarshalStat(b); err != nil {
			return nil, err
		}
		return m, nil
	case MsgRwstat:
		return Rwstat{Tag: tag}, nil
	default:
		return Unknown{Tag: tag, Type: mtype}, nil
	}
}
