package styxproto

import "errors"

// ErrShort is returned by decoders when the supplied buffer does not yet
// contain a complete message (or field). Callers should retry once more
// bytes have arrived; it is never a protocol violation on its own.
var ErrShort = errors.New("styxproto: incomplete message")

// ErrTooLarge is returned by Decode when a message's declared size exceeds
// maxSize (the negotiated msize). String and stat field lengths are not
// checked against any limit.
var ErrTooLarge = errors.New("styxproto: message too large")

// ErrUnknownType names an unrecognised message type. Decode does not
// return it: a frame with an unknown type byte decodes to an Unknown
// message (see message.go).
var ErrUnknownType = errors.New("styxproto: unknown message type")

// ErrBadString names a malformed string field. No decoder in this package
// returns it: strings are not checked for valid UTF-8, and a declared
// length that overruns the buffer yields ErrShort.
var ErrBadString = errors.New("styxproto: malformed string field")
