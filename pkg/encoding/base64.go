// Package encoding provides the binary-safe text codec used to embed media
// and audio payloads in text transports, plus JSON-serializable byte types.
package encoding

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedEncoding is returned by Decode when the input contains
// characters outside the base64 alphabet or is badly padded.
var ErrMalformedEncoding = errors.New("encoding: malformed base64")

// Encode returns the standard padded base64 text for b. Encode(nil) and
// Encode([]byte{}) both return "".
func Encode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// Decode is the inverse of Encode. Decode(Encode(b)) equals b for every
// byte sequence b.
func Decode(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		var cie base64.CorruptInputError
		if errors.As(err, &cie) {
			return nil, fmt.Errorf("%w: illegal data at offset %d", ErrMalformedEncoding, int64(cie))
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedEncoding, err)
	}
	return b, nil
}

// DataURL renders data as an RFC 2397 data URL, e.g.
// "data:image/png;base64,iVBORw0KGgo...".
func DataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + Encode(data)
}

// ParseDataURL splits a base64 data URL back into its MIME type and payload.
func ParseDataURL(url string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(url, "data:")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing data: scheme", ErrMalformedEncoding)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing payload separator", ErrMalformedEncoding)
	}
	mimeType, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return "", nil, fmt.Errorf("%w: data url is not base64", ErrMalformedEncoding)
	}
	data, err := Decode(payload)
	if err != nil {
		return "", nil, err
	}
	return mimeType, data, nil
}

// StdBase64Data is a byte slice that serializes to/from standard base64 in JSON.
type StdBase64Data []byte

// MarshalJSON implements json.Marshaler.
func (b StdBase64Data) MarshalJSON() ([]byte, error) {
	return []byte(`"` + Encode(b) + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *StdBase64Data) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return errors.New("unmarshal json base64 data: empty data")
	}
	switch data[0] {
	case 'n': // null
		return nil
	case '"':
		if len(data) < 2 || data[len(data)-1] != '"' {
			return errors.New("unmarshal json base64 data: invalid string")
		}
		decoded, err := Decode(string(data[1 : len(data)-1]))
		if err != nil {
			return err
		}
		*b = decoded
		return nil
	default:
		return fmt.Errorf("invalid base64 data: %s", string(data))
	}
}

// String returns the base64-encoded string representation.
func (b StdBase64Data) String() string {
	return Encode(b)
}
