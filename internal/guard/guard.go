// Package guard converts guarded enum values to their canonical string form
// and reports use of the sonstig sentinel. It never blocks and never fails.
package guard

import (
	"fmt"

	"github.com/parlatrack/parlatrack/internal/notify"
	"github.com/parlatrack/parlatrack/internal/types"
)

// Sink receives sentinel-use reports. *notify.Sink satisfies it.
type Sink interface {
	Notify(notify.Event)
}

// TS returns the canonical string form of a guarded enum value. When the
// value is the sonstig sentinel, the use is reported to the sink together
// with the api_id and object kind it occurred on.
func TS[T ~string](value T, apiID, objectKind string, sink Sink) string {
	s := string(value)
	if s == types.Sonstig && sink != nil {
		sink.Notify(notify.Event{
			Kind: notify.KindSonstigUnwrapped,
			Body: fmt.Sprintf("%s %s uses sonstig", objectKind, apiID),
		})
	}
	return s
}
