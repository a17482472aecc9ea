package styxproto

// Message type bytes. Each T-message is immediately followed, numerically,
// by its R-message (MsgTversion=100, MsgRversion=101, ...). These are
// distinct from the Message struct types of similar name declared in
// message.go; the struct types are what callers work with, these bytes
// are only the wire tag.
const (
	MsgTversion uint8 = 100
	MsgRversion uint8 = 101
	MsgTauth    uint8 = 102
	MsgRauth    uint8 = 103
	MsgTattach  uint8 = 104
	MsgRattach  uint8 = 105
	MsgRerror   uint8 = 107
	MsgTflush   uint8 = 108
	MsgRflush   uint8 = 109
	MsgTwalk    uint8 = 110
	MsgRwalk    uint8 = 111
	MsgTopen    uint8 = 112
	MsgRopen    uint8 = 113
	MsgTcreate  uint8 = 114
	MsgRcreate  uint8 = 115
	MsgTread    uint8 = 116
	MsgRread    uint8 = 117
	MsgTwrite   uint8 = 118
	MsgRwrite   uint8 = 119
	MsgTclunk   uint8 = 120
	MsgRclunk   uint8 = 121
	MsgTremove  uint8 = 122
	MsgRremove  uint8 = 123
	MsgTstat    uint8 = 124
	MsgRstat    uint8 = 125
	MsgTwstat   uint8 = 126
	MsgRwstat   uint8 = 127
)

// NoTag is used on Tversion/Rversion messages, which are not associated
// with any other pending transaction.
const NoTag uint16 = 0xFFFF

// NoFid is a reserved fid value meaning "no fid", used in Tattach/Tauth
// when no afid is supplied.
const NoFid uint32 = 0xFFFFFFFF

// Open/create modes, from the low bits of Topen.Mode/Tcreate.Mode.
const (
	OREAD  uint8 = 0
	OWRITE uint8 = 1
	ORDWR  uint8 = 2
	OEXEC  uint8 = 3
	OTRUNC uint8 = 0x10
)

// File mode bits (high bits of Stat.Mode, mirrored in Qid.Type).
const (
	DMDIR    uint32 = 0x80000000
	DMAPPEND uint32 = 0x40000000
	DMAUTH   uint32 = 0x08000000
)

// MessageName returns a human-readable name for a message type byte, or
// "Tunknown"/"Runknown" if mtype does not name a known message.
func MessageName(mtype uint8) string {
	switch mtype {
	case MsgTversion:
		return "Tversion"
	case MsgRversion:
		return "Rversion"
	case MsgTauth:
		return "Tauth"
	case MsgRauth:
		return "Rauth"
	case MsgTattach:
		return "Tattach"
	case MsgRattach:
		return "Rattach"
	case MsgRerror:
		return "Rerror"
	case MsgTflush:
		return "Tflush"
	case MsgRflush:
		return "Rflush"
	case MsgTwalk:
		return "Twalk"
	case MsgRwalk:
		return "Rwalk"
	case MsgTopen:
		return "Topen"
	case MsgRopen:
		return "Ropen"
	case MsgTcreate:
		return "Tcreate"
	case MsgRcreate:
		return "Rcreate"
	case MsgTread:
		return "Tread"
	case MsgRread:
		return "Rread"
	case MsgTwrite:
		return "Twrite"
	case MsgRwrite:
		return "Rwrite"
	case MsgTclunk:
		return "Tclunk"
	case MsgRclunk:
		return "Rclunk"
	case MsgTremove:
		return "Tremove"
	case MsgRremove:
		return "Rremove"
	case MsgTstat:
		return "Tstat"
	case MsgRstat:
		return "Rstat"
	case MsgTwstat:
		return "Twstat"
	case MsgRwstat:
		return "Rwstat"
	default:
		if mtype%2 == 0 {
			return "Tunknown"
		}
		return "Runknown"
	}
}
