package pintosfs

import "strings"

// pathIter is a lazy sequence of borrowed name slices over an input
// path string; it never mutates the input, unlike a strtok-style
// tokenizer over a mutable buffer (REDESIGN FLAG, §9).
type pathIter struct {
	rest string
}

func newPathIter(input string) pathIter {
	return pathIter{rest: input}
}

// isAbsolute reports whether input begins with '/'.
func isAbsolute(input string) bool {
	return strings.HasPrefix(input, "/")
}

// next returns the next non-empty, '/'-delimited component, or ok=false
// at end of input. Empty components (consecutive or leading slashes)
// are skipped.
func (p *pathIter) next() (string, bool) {
	for {
		p.rest = strings.TrimPrefix(p.rest, "/")
		if p.rest == "" {
			return "", false
		}
		i := strings.IndexByte(p.rest, '/')
		if i < 0 {
			tok := p.rest
			p.rest = ""
			return tok, true
		}
		tok := p.rest[:i]
		p.rest = p.rest[i+1:]
		if tok != "" {
			return tok, true
		}
	}
}

// peek reports whether another component follows, without consuming it.
func (p *pathIter) peek() bool {
	save := p.rest
	_, ok := p.next()
	p.rest = save
	return ok
}
