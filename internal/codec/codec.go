// Package codec turns saved tree snapshots into bytes and back, and signs
// those bytes when the state travels through the client.
package codec

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"

	"viewcore/pkg/state"
)

// FormatVersion is written ahead of every encoded snapshot.
const FormatVersion = 1

// ErrVersion is returned when a payload was written by an incompatible
// encoder.
var ErrVersion = errors.New("codec: unsupported payload version")

type envelope struct {
	Version int
	State   any
}

// Register makes concrete snapshot value types encodable. Values stored in
// component state must be registered unless they are basic types.
func Register(values ...any) {
	for _, v := range values {
		gob.Register(v)
	}
}

func init() {
	Register(&state.Full{}, &state.Delta{}, &state.Nested{}, []any{})
}

// Encode serializes a snapshot. A nil snapshot encodes too.
func Encode(snapshot any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(envelope{Version: FormatVersion, State: snapshot}); err != nil {
		return nil, fmt.Errorf("codec: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses bytes produced by Encode.
func Decode(data []byte) (any, error) {
	var env envelope
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&env); err != nil {
		return nil, fmt.Errorf("codec: decode: %w", err)
	}
	if env.Version != FormatVersion {
		return nil, fmt.Errorf("%w %d", ErrVersion, env.Version)
	}
	return env.State, nil
}
