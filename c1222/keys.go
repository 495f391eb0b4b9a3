package c1222

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// KeySize is the size of a C12.22 EAX key.
const KeySize = 16

// KeyTable resolves a key id to a key. Implementations must not change
// while a message is being decoded.
type KeyTable interface {
	Key(id uint8) ([KeySize]byte, bool)
}

// StaticKeyTable is an immutable key table.
type StaticKeyTable map[uint8][KeySize]byte

// Key implements KeyTable.
func (t StaticKeyTable) Key(id uint8) ([KeySize]byte, bool) {
	k, ok := t[id]
	return k, ok
}

type keyEntry struct {
	ID  *uint8 `yaml:"id"`
	Key string `yaml:"key"`
}

// LoadKeyTable reads a YAML list of keys:
//
//	- id: 0
//	  key: 00112233445566778899aabbccddeeff
func LoadKeyTable(r io.Reader) (StaticKeyTable, error) {
	var entries []keyEntry
	if err := yaml.NewDecoder(r).Decode(&entries); err != nil && err != io.EOF {
		return nil, fmt.Errorf("c1222: parse key table: %w", err)
	}

	table := make(StaticKeyTable, len(entries))
	for i, e := range entries {
		if e.ID == nil {
			return nil, fmt.Errorf("c1222: key %d: missing id", i)
		}
		if _, dup := table[*e.ID]; dup {
			return nil, fmt.Errorf("c1222: key %d: duplicate id %d", i, *e.ID)
		}
		raw, err := hex.DecodeString(strings.ReplaceAll(e.Key, " ", ""))
		if err != nil {
			return nil, fmt.Errorf("c1222: key id %d: %w", *e.ID, err)
		}
		if len(raw) != KeySize {
			return nil, fmt.Errorf("c1222: key id %d: %d bytes, want %d", *e.ID, len(raw), KeySize)
		}
		var k [KeySize]byte
		copy(k[:], raw)
		table[*e.ID] = k
	}
	return table, nil
}
