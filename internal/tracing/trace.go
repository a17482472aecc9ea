// Package tracing provides lightweight, allocation-free tracing of 9P
// messages as they cross the wire. It is kept alongside the logrus-based
// logging in internal/log rather than folded into it: every message, on
// every connection, is too high a volume for structured field logging,
// but cheap enough for a raw callback a caller can sample or discard.
package tracing

import "github.com/peripherialabs/peribus-sub000/styxproto"

// A Func is called once per message that is decoded from, or encoded to,
// a connection. dir is "rx" for an incoming T-message or "tx" for an
// outgoing R-message. Implementations must not retain m past the call.
type Func func(dir string, m styxproto.Message)

// Discard is a Func that does nothing; it is the zero value used when a
// connection is not being traced.
func Discard(string, styxproto.Message) {}
