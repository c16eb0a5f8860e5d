package markers

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ID formats accepted by NewIDGeneratorFormat.
const (
	IDFormatMillis = "millis"
	IDFormatUUID   = "uuid"
)

// IDGenerator hands out time-based ID tokens. The default format is decimal
// Unix milliseconds, bumped by one when two calls land in the same
// millisecond so that tokens are unique and increasing within the process.
// The uuid format yields version 7 UUIDs, which are time-ordered too.
type IDGenerator struct {
	mu     sync.Mutex
	last   int64
	now    func() time.Time
	format string
}

// NewIDGenerator creates a millisecond generator driven by the wall clock.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{now: time.Now, format: IDFormatMillis}
}

// NewIDGeneratorFormat creates a generator for the named format. An empty
// format selects milliseconds.
func NewIDGeneratorFormat(format string) (*IDGenerator, error) {
	switch format {
	case "", IDFormatMillis:
		return NewIDGenerator(), nil
	case IDFormatUUID:
		return &IDGenerator{now: time.Now, format: IDFormatUUID}, nil
	default:
		return nil, fmt.Errorf("unknown id format %q", format)
	}
}

// Next returns the next token.
func (g *IDGenerator) Next() string {
	if g.format == IDFormatUUID {
		return uuid.Must(uuid.NewV7()).String()
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.now().UnixMilli()
	if ms <= g.last {
		ms = g.last + 1
	}
	g.last = ms
	return strconv.FormatInt(ms, 10)
}
