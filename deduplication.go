package courier

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
)

// responseSnapshot is the settled form of a successful call. The shared
// in-flight entry stores bytes rather than an *http.Response so every joiner
// can materialize an independent response with its own readable body.
type responseSnapshot struct {
	status     string
	statusCode int
	proto      string
	protoMajor int
	protoMinor int
	header     http.Header
	body       []byte
}

// snapshotResponse drains and closes resp.Body, capturing everything a caller
// needs from the response. It must run while the attempt context is still
// alive, before the attempt's release func cancels it.
func snapshotResponse(resp *http.Response) (*responseSnapshot, error) {
	body, err := io.ReadAll(resp.Body)
	closeErr := resp.Body.Close()
	if err != nil {
		return nil, err
	}
	if closeErr != nil {
		return nil, closeErr
	}

	return &responseSnapshot{
		status:     resp.Status,
		statusCode: resp.StatusCode,
		proto:      resp.Proto,
		protoMajor: resp.ProtoMajor,
		protoMinor: resp.ProtoMinor,
		header:     resp.Header.Clone(),
		body:       body,
	}, nil
}

// materialize builds a fresh *http.Response over the snapshot's shared bytes.
// Each caller gets its own Body reader, so one joiner consuming the body does
// not starve the others.
func (s *responseSnapshot) materialize() *http.Response {
	if s == nil {
		return nil
	}
	return &http.Response{
		Status:        s.status,
		StatusCode:    s.statusCode,
		Proto:         s.proto,
		ProtoMajor:    s.protoMajor,
		ProtoMinor:    s.protoMinor,
		Header:        s.header.Clone(),
		Body:          io.NopCloser(bytes.NewReader(s.body)),
		ContentLength: int64(len(s.body)),
	}
}

// DeduplicationEntry represents an in-flight request shared between callers.
// The owner runs the attempt loop; waiters block on done and observe the
// identical settled outcome.
type DeduplicationEntry struct {
	done chan struct{}

	// set before done is closed, read-only after.
	snapshot *responseSnapshot
	err      error
}

// DeduplicationTracker coalesces concurrent calls with equal fingerprints
// into one transport call. Entries are inserted on create and removed inside
// Complete, so a call arriving after settlement always starts fresh.
type DeduplicationTracker struct {
	mu      sync.Mutex
	entries map[string]*DeduplicationEntry
}

// NewDeduplicationTracker returns an in-memory de-duplication tracker.
func NewDeduplicationTracker() *DeduplicationTracker {
	return &DeduplicationTracker{
		entries: make(map[string]*DeduplicationEntry),
	}
}

// GetOrCreateEntry returns an existing entry (owner=false) or registers a new
// one (owner=true). The owner is obligated to call Complete exactly once.
func (dt *DeduplicationTracker) GetOrCreateEntry(fingerprint string) (*DeduplicationEntry, bool) {
	dt.mu.Lock()
	defer dt.mu.Unlock()

	if entry, exists := dt.entries[fingerprint]; exists {
		return entry, false
	}

	entry := &DeduplicationEntry{
		done: make(chan struct{}),
	}
	dt.entries[fingerprint] = entry
	return entry, true
}

// Complete settles an entry and removes it from the tracker in the same
// critical section, so no later caller can join an already-settled entry.
// It is idempotent: a second Complete for the same entry is a no-op, which
// makes settlement safe to run from a deferred cleanup path.
func (dt *DeduplicationTracker) Complete(fingerprint string, entry *DeduplicationEntry, snapshot *responseSnapshot, err error) {
	dt.mu.Lock()
	defer dt.mu.Unlock()

	select {
	case <-entry.done:
		return
	default:
	}

	entry.snapshot = snapshot
	entry.err = err
	close(entry.done)

	if dt.entries[fingerprint] == entry {
		delete(dt.entries, fingerprint)
	}
}

// Wait blocks until the owner settles the entry or ctx fires. A fired ctx
// detaches only this waiter; the shared call keeps running for everyone else.
func (entry *DeduplicationEntry) Wait(ctx context.Context) (*responseSnapshot, error) {
	select {
	case <-entry.done:
		return entry.snapshot, entry.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len reports the number of in-flight entries, for introspection and tests.
func (dt *DeduplicationTracker) Len() int {
	dt.mu.Lock()
	defer dt.mu.Unlock()
	return len(dt.entries)
}
