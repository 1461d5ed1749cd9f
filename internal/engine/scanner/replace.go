package scanner

import (
	"regexp"
	"strings"
)

// ReplaceMode says how a REPLACING target is matched.
type ReplaceMode int

const (
	// ReplaceWord matches the target as a whole word.
	ReplaceWord ReplaceMode = iota
	// ReplacePseudo matches pseudo-text anywhere, without word boundaries.
	ReplacePseudo
	// ReplaceLeading matches the target at the start of a word.
	ReplaceLeading
	// ReplaceTrailing matches the target at the end of a word.
	ReplaceTrailing
)

type replaceEntry struct {
	key         string
	replacement string
	pattern     *regexp.Regexp
}

// ReplaceMap is an insertion-ordered set of REPLACE and COPY REPLACING
// substitutions keyed by target text.
type ReplaceMap struct {
	entries []replaceEntry
	index   map[string]int
}

func NewReplaceMap() *ReplaceMap {
	return &ReplaceMap{index: make(map[string]int)}
}

var whitespaceRun = regexp.MustCompile(`\s+`)

func replacePattern(target string, mode ReplaceMode) (*regexp.Regexp, error) {
	q := whitespaceRun.ReplaceAllString(regexp.QuoteMeta(target), `\s+`)
	switch mode {
	case ReplacePseudo:
	case ReplaceLeading:
		q = `\b` + q
	case ReplaceTrailing:
		q = q + `\b`
	default:
		q = `\b` + q + `\b`
	}
	return regexp.Compile(q)
}

// Set adds or overwrites the substitution for target. An existing key keeps
// its position.
func (m *ReplaceMap) Set(target, replacement string, mode ReplaceMode) error {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil
	}
	re, err := replacePattern(target, mode)
	if err != nil {
		return err
	}
	key := re.String()
	e := replaceEntry{key: key, replacement: replacement, pattern: re}
	if i, ok := m.index[key]; ok {
		m.entries[i] = e
		return nil
	}
	m.index[key] = len(m.entries)
	m.entries = append(m.entries, e)
	return nil
}

// Apply runs every substitution over text in insertion order.
func (m *ReplaceMap) Apply(text string) string {
	if m == nil {
		return text
	}
	for _, e := range m.entries {
		text = e.pattern.ReplaceAllLiteralString(text, e.replacement)
	}
	return text
}

// applyMapped is Apply that also returns, for every byte of the result and
// one past its end, the offset in text it came from. Bytes of a replacement
// map to the start of the text they replaced.
func (m *ReplaceMap) applyMapped(text string) (string, []int) {
	offsets := make([]int, len(text)+1)
	for i := range offsets {
		offsets[i] = i
	}
	if m == nil {
		return text, offsets
	}
	for _, e := range m.entries {
		matches := e.pattern.FindAllStringIndex(text, -1)
		if len(matches) == 0 {
			continue
		}
		var b strings.Builder
		next := make([]int, 0, len(offsets))
		last := 0
		for _, mt := range matches {
			b.WriteString(text[last:mt[0]])
			next = append(next, offsets[last:mt[0]]...)
			b.WriteString(e.replacement)
			for range len(e.replacement) {
				next = append(next, offsets[mt[0]])
			}
			last = mt[1]
		}
		b.WriteString(text[last:])
		next = append(next, offsets[last:]...)
		text, offsets = b.String(), next
	}
	return text, offsets
}

func (m *ReplaceMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

func (m *ReplaceMap) Clear() {
	m.entries = nil
	m.index = make(map[string]int)
}

func (m *ReplaceMap) Clone() *ReplaceMap {
	c := NewReplaceMap()
	if m == nil {
		return c
	}
	c.entries = append(c.entries, m.entries...)
	for k, v := range m.index {
		c.index[k] = v
	}
	return c
}

// Union returns parent's entries overlaid by child's. The child wins on a
// shared target. Neither input is modified.
func Union(parent, child *ReplaceMap) *ReplaceMap {
	out := parent.Clone()
	if child == nil {
		return out
	}
	for _, e := range child.entries {
		if i, ok := out.index[e.key]; ok {
			out.entries[i] = e
			continue
		}
		out.index[e.key] = len(out.entries)
		out.entries = append(out.entries, e)
	}
	return out
}

// linePos locates a token on the code line it was read from.
type linePos struct {
	text string
	line int
	col  int
}

// pseudoSpan collects the raw characters between two "==" delimiters,
// following the text onto later lines.
type pseudoSpan struct {
	raw   string
	text  string
	line  int
	start int
}

func (p *pseudoSpan) open(at linePos) {
	*p = pseudoSpan{text: at.text, line: at.line, start: at.col + 2}
}

func (p *pseudoSpan) note(at linePos) {
	if at.line == p.line {
		return
	}
	p.raw += safeSlice(p.text, p.start, len(p.text)) + "\n"
	p.text, p.line, p.start = at.text, at.line, 0
}

func (p *pseudoSpan) close(at linePos) string {
	p.note(at)
	return p.raw + safeSlice(p.text, p.start, at.col)
}

// replacingCapture assembles "A BY B" pairs from the token stream of a
// REPLACE statement or COPY REPLACING clause. Pseudo-text is taken from the
// line text between the delimiters, not from the split tokens, so
// "==(PFX)==" yields "(PFX)".
type replacingCapture struct {
	mode       ReplaceMode
	rightSide  bool
	inPseudo   bool
	leftPseudo bool
	left       []string
	right      []string
	leftDone   bool
	span       pseudoSpan
}

// feed consumes one token and returns a completed pair when there is one.
func (c *replacingCapture) feed(tok string, at linePos) (target, replacement string, mode ReplaceMode, done bool) {
	if tok == "" {
		return "", "", 0, false
	}
	lower := strings.ToLower(tok)

	if tok == "==" {
		if !c.inPseudo {
			c.inPseudo = true
			if !c.rightSide {
				c.leftPseudo = true
			}
			c.span.open(at)
			return "", "", 0, false
		}
		c.inPseudo = false
		text := c.span.close(at)
		if c.rightSide {
			c.right = []string{text}
			return c.complete()
		}
		c.left = []string{text}
		c.leftDone = true
		return "", "", 0, false
	}

	if c.inPseudo {
		c.span.note(at)
		// marks the side as started; replaced by the raw span on close
		if c.rightSide {
			c.right = append(c.right, tok)
		} else {
			c.left = append(c.left, tok)
		}
		return "", "", 0, false
	}

	if !c.rightSide {
		switch {
		case lower == "by" && len(c.left) != 0:
			c.rightSide = true
			return "", "", 0, false
		case len(c.left) == 0 && (lower == "leading" || lower == "trailing"):
			if lower == "leading" {
				c.mode = ReplaceLeading
			} else {
				c.mode = ReplaceTrailing
			}
			return "", "", 0, false
		case len(c.left) == 0 && lower == "also":
			return "", "", 0, false
		case c.leftDone:
			return "", "", 0, false
		}
		c.left = append(c.left, tok)
		c.leftDone = true
		return "", "", 0, false
	}

	c.right = append(c.right, tok)
	return c.complete()
}

func (c *replacingCapture) complete() (string, string, ReplaceMode, bool) {
	target := strings.TrimSpace(strings.Join(c.left, " "))
	replacement := strings.TrimSpace(strings.Join(c.right, " "))
	mode := c.mode
	if mode == ReplaceWord && c.leftPseudo {
		mode = ReplacePseudo
	}
	*c = replacingCapture{}
	return target, replacement, mode, target != ""
}

// pending reports whether a pair has been started but not completed.
func (c *replacingCapture) pending() bool {
	return len(c.left) != 0 || c.inPseudo || c.rightSide
}
