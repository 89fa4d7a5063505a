package notify

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// PropertyKeySize is the size of the native PROPERTYKEY struct.
const PropertyKeySize = 20

// PropertyKey identifies a device property: a format GUID plus a property id.
// It is comparable and usable as a map key.
type PropertyKey struct {
	FmtID uuid.UUID
	PID   uint32
}

var (
	// PKeyDeviceFriendlyName is the display name of an endpoint.
	PKeyDeviceFriendlyName = PropertyKey{
		FmtID: uuid.MustParse("a45c254e-df1c-4efd-8020-67d146a850e0"),
		PID:   14,
	}

	// PKeyAudioClientAttach changes whenever an audio client attaches to the
	// default endpoint. Resetting on it would loop, so it is suppressed by
	// default.
	PKeyAudioClientAttach = PropertyKey{
		FmtID: uuid.MustParse("9855c4cd-df8c-449c-a181-8191b68bd06c"),
		PID:   0,
	}
)

// ErrInvalidPropertyKey is returned when a property key cannot be parsed.
var ErrInvalidPropertyKey = errors.New("invalid property key")

// String formats the key as {fmtid:pid}.
func (k PropertyKey) String() string {
	return fmt.Sprintf("{%s:%d}", k.FmtID, k.PID)
}

// ParsePropertyKey parses the form produced by String.
func ParsePropertyKey(s string) (PropertyKey, error) {
	inner, ok := strings.CutPrefix(strings.TrimSpace(s), "{")
	if !ok {
		return PropertyKey{}, fmt.Errorf("%q: missing '{': %w", s, ErrInvalidPropertyKey)
	}
	inner, ok = strings.CutSuffix(inner, "}")
	if !ok {
		return PropertyKey{}, fmt.Errorf("%q: missing '}': %w", s, ErrInvalidPropertyKey)
	}
	i := strings.LastIndexByte(inner, ':')
	if i < 0 {
		return PropertyKey{}, fmt.Errorf("%q: missing ':': %w", s, ErrInvalidPropertyKey)
	}
	id, err := uuid.Parse(inner[:i])
	if err != nil {
		return PropertyKey{}, fmt.Errorf("%q: %w: %w", s, ErrInvalidPropertyKey, err)
	}
	pid, err := strconv.ParseUint(inner[i+1:], 10, 32)
	if err != nil {
		return PropertyKey{}, fmt.Errorf("%q: pid: %w", s, ErrInvalidPropertyKey)
	}
	return PropertyKey{FmtID: id, PID: uint32(pid)}, nil
}

// MarshalText implements encoding.TextMarshaler.
func (k PropertyKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *PropertyKey) UnmarshalText(b []byte) error {
	parsed, err := ParsePropertyKey(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// MarshalNative returns the PROPERTYKEY layout. The first three GUID fields
// are little-endian in memory while uuid stores them big-endian.
func (k PropertyKey) MarshalNative() []byte {
	b := make([]byte, PropertyKeySize)
	binary.LittleEndian.PutUint32(b[0:], binary.BigEndian.Uint32(k.FmtID[0:4]))
	binary.LittleEndian.PutUint16(b[4:], binary.BigEndian.Uint16(k.FmtID[4:6]))
	binary.LittleEndian.PutUint16(b[6:], binary.BigEndian.Uint16(k.FmtID[6:8]))
	copy(b[8:16], k.FmtID[8:16])
	binary.LittleEndian.PutUint32(b[16:], k.PID)
	return b
}

// PropertyKeyFromNative decodes a PROPERTYKEY layout.
func PropertyKeyFromNative(b []byte) (PropertyKey, error) {
	if len(b) < PropertyKeySize {
		return PropertyKey{}, fmt.Errorf("%d bytes: %w", len(b), ErrInvalidPropertyKey)
	}
	var k PropertyKey
	binary.BigEndian.PutUint32(k.FmtID[0:4], binary.LittleEndian.Uint32(b[0:]))
	binary.BigEndian.PutUint16(k.FmtID[4:6], binary.LittleEndian.Uint16(b[4:]))
	binary.BigEndian.PutUint16(k.FmtID[6:8], binary.LittleEndian.Uint16(b[6:]))
	copy(k.FmtID[8:16], b[8:16])
	k.PID = binary.LittleEndian.Uint32(b[16:])
	return k, nil
}
