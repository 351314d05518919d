package wire

import (
	"errors"

	"github.com/anirudhraja/protokit/protoerr"
)

// Wire-level causes. Every failure returned by this package is a
// protoerr.KindDecode error wrapping one of these.
var (
	ErrTruncated          = errors.New("unexpected end of buffer")
	ErrVarintOverflow     = errors.New("varint overflows 64 bits")
	ErrVarintTooLong      = errors.New("varint longer than 10 bytes")
	ErrInvalidWireType    = errors.New("invalid wire type")
	ErrInvalidFieldNumber = errors.New("invalid field number")
)

func decodeErr(cause error, detail string) error {
	return &protoerr.Error{Kind: protoerr.KindDecode, Detail: detail, Cause: cause}
}
