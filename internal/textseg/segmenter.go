package textseg

import (
	"log/slog"
)

// Config bounds segmentation. Zero values fall back to the defaults the
// pipeline was tuned with.
type Config struct {
	MaxChars  int // hard per-segment character budget
	MinChars  int // segments shorter than this are merged into their predecessor
	Overlap   int // trailing/leading characters shared by adjacent segments
	Backtrack int // how far behind the cutoff to look for a sentence boundary
	MaxSegs   int // hard cap; text beyond it is dropped with a warning
}

const (
	DefaultMaxChars  = 60000
	DefaultMinChars  = 2000
	DefaultOverlap   = 400
	DefaultBacktrack = 1200
	DefaultMaxSegs   = 50
)

func (c Config) withDefaults() Config {
	if c.MaxChars <= 0 {
		c.MaxChars = DefaultMaxChars
	}
	if c.MinChars <= 0 {
		c.MinChars = DefaultMinChars
	}
	if c.MinChars >= c.MaxChars {
		c.MinChars = c.MaxChars / 2
	}
	if c.Overlap < 0 {
		c.Overlap = 0
	}
	if c.Overlap == 0 {
		c.Overlap = DefaultOverlap
	}
	if c.Overlap >= c.MaxChars {
		c.Overlap = c.MaxChars / 4
	}
	if c.Backtrack <= 0 {
		c.Backtrack = DefaultBacktrack
	}
	if c.MaxSegs <= 0 {
		c.MaxSegs = DefaultMaxSegs
	}
	return c
}

// Result carries the ordered segments plus whether the MaxSegs cap dropped
// trailing text. Dropping is a deliberate cost bound, not a bug; callers
// must surface Truncated rather than swallow it.
type Result struct {
	Segments  []string
	Truncated bool
}

// Segment splits text into overlapping, sentence-boundary-aware pieces of at
// most MaxChars characters. Adjacent segments share Overlap characters so
// context spanning a cut is seen twice rather than never.
func Segment(text string, cfg Config, logger *slog.Logger) Result {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	if text == "" {
		return Result{}
	}
	if len(text) <= cfg.MaxChars {
		return Result{Segments: []string{text}}
	}

	var segs []string
	truncated := false
	i := 0
	for i < len(text) {
		if len(segs) >= cfg.MaxSegs {
			truncated = true
			logger.Warn("textseg.max_segments_reached",
				"max_segments", cfg.MaxSegs,
				"dropped_chars", len(text)-i,
			)
			break
		}

		remaining := len(text) - i
		if remaining <= cfg.MaxChars {
			segs = append(segs, text[i:])
			break
		}

		cut := chooseCut(text, i, cfg)
		segs = append(segs, text[i:cut])

		next := cut - cfg.Overlap
		if next <= i {
			// Overlap must never walk the cursor backwards.
			next = cut
		}
		i = next
	}

	segs = mergeShortTail(segs, cfg.MinChars)

	logger.Info("textseg.done",
		"chars", len(text),
		"segments", len(segs),
		"truncated", truncated,
	)
	return Result{Segments: segs, Truncated: truncated}
}

// chooseCut picks the cut position for the segment starting at i: the last
// sentence boundary within the backtrack window, else the last whitespace
// before the hard cutoff, else the hard cutoff itself.
func chooseCut(text string, i int, cfg Config) int {
	cutoff := i + cfg.MaxChars

	windowStart := cutoff - cfg.Backtrack
	if floor := i + cfg.MinChars; windowStart < floor {
		windowStart = floor
	}
	for p := cutoff; p > windowStart; p-- {
		if isSentenceBoundary(text, p) {
			return p
		}
	}

	for p := cutoff - 1; p > i; p-- {
		if text[p] == ' ' || text[p] == '\n' || text[p] == '\t' || text[p] == '\r' {
			return p
		}
	}

	// Last resort: a mid-word hard cut keeps the budget honest.
	return cutoff
}

// isSentenceBoundary reports whether position p immediately follows a
// sentence terminator that is followed by whitespace and then an uppercase
// letter or an opening parenthesis.
func isSentenceBoundary(text string, p int) bool {
	if p < 1 || p >= len(text) {
		return false
	}
	switch text[p-1] {
	case '.', '?', '!':
	default:
		return false
	}
	q := p
	for q < len(text) && (text[q] == ' ' || text[q] == '\n' || text[q] == '\t' || text[q] == '\r') {
		q++
	}
	if q == p || q >= len(text) {
		return false
	}
	c := text[q]
	return (c >= 'A' && c <= 'Z') || c == '('
}

// mergeShortTail folds any segment shorter than minChars into its
// predecessor so degenerate trailing fragments don't incur their own
// completion call.
func mergeShortTail(segs []string, minChars int) []string {
	if len(segs) < 2 {
		return segs
	}
	out := segs[:1]
	for _, s := range segs[1:] {
		if len(s) < minChars {
			out[len(out)-1] += s
			continue
		}
		out = append(out, s)
	}
	return out
}
