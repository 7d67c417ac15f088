package types

import (
	"time"

	gogotypes "github.com/gogo/protobuf/types"

	tmbytes "github.com/tendermint/lightnode/libs/bytes"
)

// cdcEncode returns nil if the input is nil, otherwise returns
// proto.Marshal(<type>Value{Value: item})
func cdcEncode(item interface{}) []byte {
	switch item := item.(type) {
	case string:
		i := gogotypes.StringValue{
			Value: item,
		}
		bz, err := i.Marshal()
		if err != nil {
			return nil
		}
		return bz
	case int64:
		i := gogotypes.Int64Value{
			Value: item,
		}
		bz, err := i.Marshal()
		if err != nil {
			return nil
		}
		return bz
	case uint64:
		i := gogotypes.UInt64Value{
			Value: item,
		}
		bz, err := i.Marshal()
		if err != nil {
			return nil
		}
		return bz
	case tmbytes.HexBytes:
		i := gogotypes.BytesValue{
			Value: item,
		}
		bz, err := i.Marshal()
		if err != nil {
			return nil
		}
		return bz
	default:
		return nil
	}
}

// timeToProto panics on times outside of the range protobuf timestamps can
// represent. Every time reaching here was either decoded through
// timeFromProto or produced locally.
func timeToProto(t time.Time) *gogotypes.Timestamp {
	ts, err := gogotypes.TimestampProto(t)
	if err != nil {
		panic(err)
	}
	return ts
}

// timeFromProto returns the canonical (UTC) time of a protobuf timestamp.
func timeFromProto(ts *gogotypes.Timestamp) (time.Time, error) {
	if ts == nil {
		return time.Time{}, nil
	}
	t, err := gogotypes.TimestampFromProto(ts)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
