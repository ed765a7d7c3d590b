package types

import (
	"encoding/hex"
	"encoding/json"
)

// ScriptType identifies the type of locking script.
type ScriptType uint8

const (
	ScriptTypeP2PKH ScriptType = 0x01 // Pay to public key hash (data = 20-byte address)
	ScriptTypeVest  ScriptType = 0x02 // Height-locked payout (data = 20-byte address + 8-byte unlock height)
	ScriptTypeBurn  ScriptType = 0x10 // Provably unspendable
)

// String returns a human-readable name for the script type.
func (st ScriptType) String() string {
	switch st {
	case ScriptTypeP2PKH:
		return "P2PKH"
	case ScriptTypeVest:
		return "Vest"
	case ScriptTypeBurn:
		return "Burn"
	default:
		return "Unknown"
	}
}

// Script defines the locking condition for a UTXO.
type Script struct {
	Type ScriptType `json:"type"`
	Data []byte     `json:"data"`
}

// P2PKHScript builds a standard pay-to-pubkey-hash script for an address.
func P2PKHScript(addr Address) Script {
	return Script{Type: ScriptTypeP2PKH, Data: addr.Bytes()}
}

// ScriptAddress returns the address embedded in a script, if any.
// P2PKH and Vest scripts both lead with a 20-byte address in Data.
func ScriptAddress(s Script) (Address, bool) {
	switch s.Type {
	case ScriptTypeP2PKH, ScriptTypeVest:
		if len(s.Data) >= AddressSize {
			var addr Address
			copy(addr[:], s.Data[:AddressSize])
			return addr, true
		}
	}
	return Address{}, false
}

// scriptJSON is the JSON representation of a Script with hex-encoded data.
type scriptJSON struct {
	Type ScriptType `json:"type"`
	Data string     `json:"data"`
}

// MarshalJSON encodes the script with hex-encoded data.
func (s Script) MarshalJSON() ([]byte, error) {
	return json.Marshal(scriptJSON{
		Type: s.Type,
		Data: hex.EncodeToString(s.Data),
	})
}

// UnmarshalJSON decodes a script with hex-encoded data.
func (s *Script) UnmarshalJSON(data []byte) error {
	var j scriptJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	s.Type = j.Type
	if j.Data != "" {
		b, err := hex.DecodeString(j.Data)
		if err != nil {
			return err
		}
		s.Data = b
	}
	return nil
}
