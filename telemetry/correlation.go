package telemetry

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

const defaultCorrelationIDLength = 16

// RandomCorrelationID returns a random hex correlation ID of the given
// length (characters); length<=0 uses the spec default of 16.
func RandomCorrelationID(length int) string {
	if length <= 0 {
		length = defaultCorrelationIDLength
	}
	b := make([]byte, (length+1)/2)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)[:length]
}

// TimeBasedCorrelationID returns "{ms_since_epoch}_{8-rand}".
func TimeBasedCorrelationID(now time.Time) string {
	return fmt.Sprintf("%d_%s", now.UnixMilli(), RandomCorrelationID(8))
}

// DeterministicCorrelationID returns base64url(sha256(sorted_context))[:16],
// so the same context dict always yields the same correlation ID.
func DeterministicCorrelationID(ctxValues map[string]string) string {
	keys := make([]string, 0, len(ctxValues))
	for k := range ctxValues {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(ctxValues[k])
		sb.WriteByte(';')
	}
	sum := sha256.Sum256([]byte(sb.String()))
	enc := base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(sum[:])
	if len(enc) > 16 {
		enc = enc[:16]
	}
	return enc
}

type currentCorrelationKey struct{}

// WithCorrelationID sets the "current correlation" for the returned
// context, mirroring a thread-local in the cooperative scheduling model
// (spec §4.7).
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, currentCorrelationKey{}, id)
}

// CorrelationIDFromContext reads the current correlation set by
// WithCorrelationID, or "" if none is set.
func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(currentCorrelationKey{}).(string)
	return id
}

// currentCorrelation is a process-wide fallback for callers that cannot
// thread a context through (e.g. deferred cleanup); cleared on scope exit
// via the returned function, mandatory per spec §4.7.
var currentCorrelation struct {
	mu sync.Mutex
	id string
}

// SetCurrentCorrelation sets the process-wide current correlation ID and
// returns a function that clears it; callers must defer the clear.
func SetCurrentCorrelation(id string) (clear func()) {
	currentCorrelation.mu.Lock()
	currentCorrelation.id = id
	currentCorrelation.mu.Unlock()
	return func() {
		currentCorrelation.mu.Lock()
		currentCorrelation.id = ""
		currentCorrelation.mu.Unlock()
	}
}

// CurrentCorrelation returns the process-wide current correlation ID set by
// SetCurrentCorrelation, or "" if none is set.
func CurrentCorrelation() string {
	currentCorrelation.mu.Lock()
	defer currentCorrelation.mu.Unlock()
	return currentCorrelation.id
}
