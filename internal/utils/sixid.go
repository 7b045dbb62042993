package utils

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SixID is a 6-byte document ID, rendered as 10 characters of Crockford
// Base32 in JSON and stored as BSON BinData with custom subtype 0x80.
type SixID [6]byte

const sixIDBinarySubtype = 0x80

// NewSixID creates a new random SixID.
func NewSixID() SixID {
	var id SixID
	if _, err := rand.Read(id[:]); err != nil {
		// crypto/rand never fails on supported platforms; a zero ID would
		// collide immediately, so refuse to continue.
		panic("utils: reading random bytes for SixID: " + err.Error())
	}
	return id
}

// IsZero reports whether the ID is unset.
func (u SixID) IsZero() bool {
	return u == SixID{}
}

// Crockford Base32 alphabet (uppercase, no I, L, O, U).
const crockfordAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

var crockfordDecodeMap = func() map[byte]byte {
	m := make(map[byte]byte, 64)
	for i := range crockfordAlphabet {
		m[crockfordAlphabet[i]] = byte(i)
	}
	lower := strings.ToLower(crockfordAlphabet)
	for i := 10; i < len(lower); i++ {
		m[lower[i]] = byte(i)
	}
	// Commonly confused characters decode leniently.
	m['o'] = m['0']
	m['O'] = m['0']
	m['i'] = m['1']
	m['l'] = m['1']
	return m
}()

// String returns the Crockford Base32 representation (10 characters).
func (u SixID) String() string {
	// 6 bytes = 48 bits = 10 base-32 characters, little-endian bit packing.
	result := make([]byte, 0, 10)
	var bits, offset uint
	for i := 0; i < len(u); i++ {
		bits |= uint(u[i]) << offset
		offset += 8
		for offset >= 5 {
			result = append(result, crockfordAlphabet[bits&0x1F])
			bits >>= 5
			offset -= 5
		}
	}
	if offset > 0 {
		result = append(result, crockfordAlphabet[bits&0x1F])
	}
	return string(result)
}

// ParseSixID decodes a Crockford Base32 string into a SixID. Hyphens and
// spaces are ignored for leniency.
func ParseSixID(s string) (SixID, error) {
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, " ", "")
	if len(s) != 10 {
		return SixID{}, errors.New("sixid: string length must be 10")
	}

	var id SixID
	var bits uint64
	var offset uint
	byteIndex := 0
	for i := 0; i < len(s); i++ {
		val, ok := crockfordDecodeMap[s[i]]
		if !ok {
			return SixID{}, errors.New("sixid: invalid character")
		}
		bits |= uint64(val) << offset
		offset += 5
		for offset >= 8 && byteIndex < len(id) {
			id[byteIndex] = byte(bits & 0xFF)
			byteIndex++
			bits >>= 8
			offset -= 8
		}
	}
	if byteIndex != len(id) {
		return SixID{}, errors.New("sixid: could not decode 6 bytes")
	}
	return id, nil
}

// MarshalBSONValue implements bson.ValueMarshaler, storing the ID as BinData
// with the custom subtype.
func (u SixID) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(primitive.Binary{Subtype: sixIDBinarySubtype, Data: u[:]})
}

// UnmarshalBSONValue implements bson.ValueUnmarshaler.
func (u *SixID) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	if t == bson.TypeNull {
		*u = SixID{}
		return nil
	}
	if t != bson.TypeBinary {
		return errors.New("sixid: expected BSON binary")
	}
	var bin primitive.Binary
	raw := bson.RawValue{Type: t, Value: data}
	if err := raw.Unmarshal(&bin); err != nil {
		return err
	}
	if bin.Subtype != sixIDBinarySubtype || len(bin.Data) != 6 {
		return errors.New("sixid: incorrect binary subtype or length")
	}
	copy((*u)[:], bin.Data)
	return nil
}

// MarshalJSON renders the ID as its Crockford Base32 string.
func (u SixID) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.String())
}

// UnmarshalJSON parses the Crockford Base32 string form.
func (u *SixID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseSixID(s)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}
