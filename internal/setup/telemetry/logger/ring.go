package logger

// lineRing keeps the most recent lines written to a log file.
type lineRing struct {
	lines []string
	head  int // next write position
	size  int
}

func newLineRing(capacity int) *lineRing {
	return &lineRing{lines: make([]string, max(capacity, 1))}
}

func (r *lineRing) capacity() int {
	return len(r.lines)
}

func (r *lineRing) add(line string) {
	r.lines[r.head] = line
	r.head = (r.head + 1) % len(r.lines)
	if r.size < len(r.lines) {
		r.size++
	}
}

// snapshot returns the kept lines oldest first.
func (r *lineRing) snapshot() []string {
	out := make([]string, r.size)
	start := (r.head - r.size + len(r.lines)) % len(r.lines)
	for i := range r.size {
		out[i] = r.lines[(start+i)%len(r.lines)]
	}
	return out
}
