package types

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/gogo/protobuf/proto"

	"github.com/tendermint/lightnode/crypto"
	"github.com/tendermint/lightnode/crypto/ed25519"
	tmproto "github.com/tendermint/lightnode/proto/lightnode/types"
)

// Address is hex bytes.
type Address = crypto.Address

// Validator is a member of a ValidatorSet.
// NOTE: Bytes() feeds the validator set hash; update it if fields change.
type Validator struct {
	Address     Address       `json:"address"`
	PubKey      crypto.PubKey `json:"pub_key"`
	VotingPower int64         `json:"voting_power"`
}

// NewValidator returns a new validator with the given pubkey and voting power.
func NewValidator(pubKey crypto.PubKey, votingPower int64) *Validator {
	return &Validator{
		Address:     pubKey.Address(),
		PubKey:      pubKey,
		VotingPower: votingPower,
	}
}

// ValidateBasic performs basic validation.
func (v *Validator) ValidateBasic() error {
	if v == nil {
		return errors.New("nil validator")
	}
	if v.PubKey == nil {
		return errors.New("validator does not have a public key")
	}

	if v.VotingPower < 0 {
		return errors.New("validator has negative voting power")
	}

	addr := v.PubKey.Address()
	if !bytes.Equal(v.Address, addr) {
		return fmt.Errorf("validator address is incorrectly derived from pubkey. Exp: %v, got %v", addr, v.Address)
	}

	return nil
}

// Copy creates a new copy of the validator.
// Panics if the validator is nil.
func (v *Validator) Copy() *Validator {
	vCopy := *v
	return &vCopy
}

// String returns a string representation of the validator.
//
// 1. address
// 2. public key
// 3. voting power
func (v *Validator) String() string {
	if v == nil {
		return "nil-Validator"
	}
	return fmt.Sprintf("Validator{%v %v VP:%v}",
		v.Address,
		v.PubKey,
		v.VotingPower)
}

// Bytes computes the unique encoding of a validator with a given voting power.
// These are the bytes that gets hashed in consensus. It excludes address
// as its redundant with the pubkey.
func (v *Validator) Bytes() []byte {
	pbv := tmproto.SimpleValidator{
		PubKey:      v.PubKey.Bytes(),
		VotingPower: v.VotingPower,
	}

	bz, err := proto.Marshal(&pbv)
	if err != nil {
		panic(err)
	}
	return bz
}

// ToProto converts Valiator to protobuf
func (v *Validator) ToProto() (*tmproto.Validator, error) {
	if v == nil {
		return nil, errors.New("nil validator")
	}
	if v.PubKey == nil {
		return nil, errors.New("validator does not have a public key")
	}

	vp := tmproto.Validator{
		Address:     v.Address,
		PubKey:      v.PubKey.Bytes(),
		VotingPower: v.VotingPower,
	}

	return &vp, nil
}

// ValidatorFromProto sets a protobuf Validator to the given pointer.
// It returns an error if the public key is invalid.
func ValidatorFromProto(vp *tmproto.Validator) (*Validator, error) {
	if vp == nil {
		return nil, errors.New("nil validator")
	}

	pk, err := ed25519.PubKeyFromBytes(vp.PubKey)
	if err != nil {
		return nil, err
	}
	v := new(Validator)
	v.Address = vp.Address
	v.PubKey = pk
	v.VotingPower = vp.VotingPower

	return v, nil
}
