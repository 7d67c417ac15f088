package types

import (
	"time"

	"github.com/gogo/protobuf/proto"

	tmproto "github.com/tendermint/lightnode/proto/lightnode/types"
)

// Canonical* wraps the structs in types for protobuf encoding them for use
// in SignBytes.

// CanonicalizeVote transforms the given precommit data to a CanonicalVote,
// which does not contain ValidatorIndex and ValidatorAddress fields.
func CanonicalizeVote(chainID string, height uint64, round int32, blockID BlockID, timestamp time.Time) *tmproto.CanonicalVote {
	cv := &tmproto.CanonicalVote{
		Type:      tmproto.PrecommitType,
		Height:    height,       // encoded as sfixed64
		Round:     int64(round), // encoded as sfixed64
		Timestamp: timeToProto(timestamp),
		ChainID:   chainID,
	}
	if !blockID.IsNil() {
		cv.BlockID = blockID.ToProto()
	}
	return cv
}

// VoteSignBytes returns the proto-encoding of the canonicalized precommit,
// for signing. Panics if the marshaling fails.
//
// The encoded Protobuf message is varint length-prefixed.
func VoteSignBytes(chainID string, height uint64, round int32, blockID BlockID, timestamp time.Time) []byte {
	pb := CanonicalizeVote(chainID, height, round, blockID, timestamp)
	bz, err := proto.Marshal(pb)
	if err != nil {
		panic(err)
	}

	return append(proto.EncodeVarint(uint64(len(bz))), bz...)
}
