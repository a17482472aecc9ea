// Package styxproto implements the wire encoding for 9P2000, the protocol
// used by Plan 9 to export synthetic file trees.
//
// Messages are framed as size[4] type[1] tag[2] body[size-7], all integers
// little-endian, strings length-prefixed by a 2-byte count of UTF-8 bytes.
// This package does not interpret file contents; it only knows how to turn
// the wire bytes of a request or response into a typed Go value and back.
package styxproto
