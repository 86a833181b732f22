package transcript

import "sync"

// Snapshot is a point-in-time copy of the buffer.
type Snapshot struct {
	Interim string
	Final   string
}

// Buffer holds the interim and finalized candidate speech for the current turn.
type Buffer struct {
	opts Options

	mu       sync.Mutex
	interim  string
	segments []string
}

// NewBuffer constructs an empty buffer.
func NewBuffer(opts Options) *Buffer {
	return &Buffer{opts: opts}
}

// Update applies one capture event. The interim text replaces the previous interim;
// a non-empty final segment is merged into the finalized text and clears the interim.
func (b *Buffer) Update(interim, final string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if final = cleanSegment(final); final != "" {
		b.segments = appendSegment(b.segments, final)
		b.interim = ""
		if interim == "" {
			return
		}
	}
	b.interim = cleanSegment(interim)
}

// Interim returns the latest interim text.
func (b *Buffer) Interim() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.interim
}

// Final returns the assembled finalized text.
func (b *Buffer) Final() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Assemble(b.segments, b.opts)
}

// Snapshot returns interim and final text together.
func (b *Buffer) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{Interim: b.interim, Final: Assemble(b.segments, b.opts)}
}

// Reset clears the finalized text. Interim text is left for captions.
func (b *Buffer) Reset() {
	b.mu.Lock()
	b.segments = nil
	b.mu.Unlock()
}
