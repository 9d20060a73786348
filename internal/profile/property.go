package profile

import (
	"encoding/json"
	"fmt"
)

// MaxEncodedLength is the storage bound for the encoded properties column.
const MaxEncodedLength = 4096

// Property is a single named attribute attached to a profile. A property
// carrying a signature was vouched for by the upstream authority and may be
// consumed by trust-sensitive code.
type Property struct {
	Name      string  `json:"name"`
	Value     string  `json:"value"`
	Signature *string `json:"signature,omitempty"`
}

// Signed reports whether the property carries a signature. A present but
// empty signature still counts as signed.
func (p Property) Signed() bool {
	return p.Signature != nil
}

// PropertySet holds the properties of one profile. Order is not significant
// and is not guaranteed to survive an encode/decode round trip.
type PropertySet []Property

// EncodeProperties renders a property set as a JSON array for storage.
// Fails with ErrRecordTooLarge when the encoded form exceeds the column bound.
func EncodeProperties(set PropertySet) (string, error) {
	if set == nil {
		set = PropertySet{}
	}
	raw, err := json.Marshal(set)
	if err != nil {
		return "", fmt.Errorf("encode properties: %w", err)
	}
	if len(raw) > MaxEncodedLength {
		return "", fmt.Errorf("%w: encoded properties are %d bytes (max %d)", ErrRecordTooLarge, len(raw), MaxEncodedLength)
	}
	return string(raw), nil
}

// DecodeProperties parses a stored properties column. A property object
// without a signature field decodes as unsigned. Any malformed input fails
// with ErrCorruptRecord.
func DecodeProperties(encoded string) (PropertySet, error) {
	var set PropertySet
	if err := json.Unmarshal([]byte(encoded), &set); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	return set, nil
}
