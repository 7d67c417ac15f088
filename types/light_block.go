package types

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/gogo/protobuf/jsonpb"

	tmproto "github.com/tendermint/lightnode/proto/lightnode/types"
)

// LightBlock is a SignedHeader and a ValidatorSet.
// It is the basis of the light client
type LightBlock struct {
	*SignedHeader `json:"signed_header"`
	ValidatorSet  *ValidatorSet `json:"validator_set"`

	// NextValidatorSet is the set that signs the block at Height+1.
	NextValidatorSet *ValidatorSet `json:"next_validator_set"`
}

// ValidateBasic checks that the data is correct and consistent
//
// This does no verification of the signatures
func (lb LightBlock) ValidateBasic(chainID string) error {
	if lb.SignedHeader == nil {
		return errors.New("missing signed header")
	}
	if lb.ValidatorSet == nil {
		return errors.New("missing validator set")
	}
	if lb.NextValidatorSet == nil {
		return errors.New("missing next validator set")
	}

	if err := lb.SignedHeader.ValidateBasic(chainID); err != nil {
		return fmt.Errorf("invalid signed header: %w", err)
	}
	if err := lb.ValidatorSet.ValidateBasic(); err != nil {
		return fmt.Errorf("invalid validator set: %w", err)
	}
	if err := lb.NextValidatorSet.ValidateBasic(); err != nil {
		return fmt.Errorf("invalid next validator set: %w", err)
	}

	// make sure the validator set is consistent with the header
	if valSetHash := lb.ValidatorSet.Hash(); !bytes.Equal(lb.SignedHeader.ValidatorsHash, valSetHash) {
		return fmt.Errorf("expected validator hash of header to match validator set hash (%X != %X)",
			lb.SignedHeader.ValidatorsHash, valSetHash,
		)
	}
	if nextHash := lb.NextValidatorSet.Hash(); !bytes.Equal(lb.SignedHeader.NextValidatorsHash, nextHash) {
		return fmt.Errorf("expected next validator hash of header to match next validator set hash (%X != %X)",
			lb.SignedHeader.NextValidatorsHash, nextHash,
		)
	}

	return nil
}

// String returns a string representation of the LightBlock
func (lb LightBlock) String() string {
	return lb.StringIndented("")
}

// StringIndented returns an indented string representation of the LightBlock
//
// SignedHeader
// ValidatorSet
// NextValidatorSet
func (lb LightBlock) StringIndented(indent string) string {
	var sh string
	if lb.SignedHeader != nil {
		sh = lb.SignedHeader.StringIndented(indent + "  ")
	} else {
		sh = "nil-SignedHeader"
	}
	return fmt.Sprintf(`LightBlock{
%s  %v
%s  %v
%s  %v
%s}`,
		indent, sh,
		indent, lb.ValidatorSet.StringIndented(indent+"  "),
		indent, lb.NextValidatorSet.StringIndented(indent+"  "),
		indent)
}

// ToProto converts the LightBlock to protobuf
func (lb *LightBlock) ToProto() (*tmproto.LightBlock, error) {
	if lb == nil {
		return nil, nil
	}

	lbp := new(tmproto.LightBlock)
	var err error
	if lb.SignedHeader != nil {
		lbp.SignedHeader = lb.SignedHeader.ToProto()
	}
	if lb.ValidatorSet != nil {
		lbp.ValidatorSet, err = lb.ValidatorSet.ToProto()
		if err != nil {
			return nil, err
		}
	}
	if lb.NextValidatorSet != nil {
		lbp.NextValidatorSet, err = lb.NextValidatorSet.ToProto()
		if err != nil {
			return nil, err
		}
	}

	return lbp, nil
}

// LightBlockFromProto converts from protobuf back into the Lightblock.
// An error is returned if either the validator set or signed header are invalid
func LightBlockFromProto(pb *tmproto.LightBlock) (*LightBlock, error) {
	if pb == nil {
		return nil, errors.New("nil light block")
	}

	lb := new(LightBlock)

	if pb.SignedHeader != nil {
		sh, err := SignedHeaderFromProto(pb.SignedHeader)
		if err != nil {
			return nil, err
		}
		lb.SignedHeader = sh
	}

	if pb.ValidatorSet != nil {
		vals, err := ValidatorSetFromProto(pb.ValidatorSet)
		if err != nil {
			return nil, err
		}
		lb.ValidatorSet = vals
	}

	if pb.NextValidatorSet != nil {
		vals, err := ValidatorSetFromProto(pb.NextValidatorSet)
		if err != nil {
			return nil, err
		}
		lb.NextValidatorSet = vals
	}

	return lb, nil
}

var jsonMarshaler = jsonpb.Marshaler{OrigName: true}

// MarshalJSON encodes the light block through its protobuf form, so that
// public keys and timestamps round trip.
func (lb *LightBlock) MarshalJSON() ([]byte, error) {
	pb, err := lb.ToProto()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := jsonMarshaler.Marshal(&buf, pb); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a light block produced by MarshalJSON. It does not
// call ValidateBasic: the chain ID is not known here.
func (lb *LightBlock) UnmarshalJSON(data []byte) error {
	pb := new(tmproto.LightBlock)
	if err := jsonpb.Unmarshal(bytes.NewReader(data), pb); err != nil {
		return err
	}
	decoded, err := LightBlockFromProto(pb)
	if err != nil {
		return err
	}
	*lb = *decoded
	return nil
}
