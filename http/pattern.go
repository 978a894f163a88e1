package http

import (
	"strings"
)

type segmentKind int

const (
	segLiteral segmentKind = iota
	segParam
	segIntParam
	segPathParam
	segWildcard
)

type segment struct {
	kind    segmentKind
	literal string // segLiteral only
	name    string // param segments only
}

// Pattern is a compiled route template.
//
// Segments are either literals, named parameters ({id}, {id:int},
// {rest:path}) or a single-segment wildcard (*). A {name:path} parameter
// greedily captures the remainder of the path and is only legal as the
// final segment. Patterns are immutable once parsed.
type Pattern struct {
	raw      string
	segments []segment
	params   []string // parameter names in declaration order
	literals int
	slash    bool // registered with a trailing slash
}

// ParsePattern compiles a path template.
func ParsePattern(path string) (*Pattern, error) {
	if path == "" || !strings.HasPrefix(path, "/") {
		return nil, &ConfigurationError{Pattern: path, Message: "pattern must start with /"}
	}

	p := &Pattern{raw: path, slash: TrailingSlash(path)}
	seen := make(map[string]bool)

	for _, raw := range pathSegments(path) {
		seg, err := parseSegment(path, raw)
		if err != nil {
			return nil, err
		}

		if len(p.segments) > 0 && p.segments[len(p.segments)-1].kind == segPathParam {
			return nil, &ConfigurationError{Pattern: path, Message: "path parameter must be the final segment"}
		}

		switch seg.kind {
		case segLiteral:
			p.literals++
		case segParam, segIntParam, segPathParam:
			if seen[seg.name] {
				return nil, &ConfigurationError{Pattern: path, Message: "duplicate parameter " + seg.name}
			}
			seen[seg.name] = true
			p.params = append(p.params, seg.name)
		}

		p.segments = append(p.segments, seg)
	}

	return p, nil
}

func parseSegment(pattern, raw string) (segment, error) {
	if raw == "*" {
		return segment{kind: segWildcard}, nil
	}

	name, ok := isParamSegment(raw)
	if !ok {
		if strings.ContainsAny(raw, "{}") {
			return segment{}, &ConfigurationError{Pattern: pattern, Message: "malformed segment " + raw}
		}
		return segment{kind: segLiteral, literal: raw}, nil
	}

	kind := segParam
	if n, typ, found := strings.Cut(name, ":"); found {
		name = n
		switch typ {
		case "int":
			kind = segIntParam
		case "path":
			kind = segPathParam
		case "str", "string", "":
			kind = segParam
		default:
			return segment{}, &ConfigurationError{Pattern: pattern, Message: "unknown parameter type " + typ}
		}
	}
	if name == "" {
		return segment{}, &ConfigurationError{Pattern: pattern, Message: "parameter name is empty"}
	}

	return segment{kind: kind, name: name}, nil
}

// String returns the original template.
func (p *Pattern) String() string { return p.raw }

// ParamNames returns parameter names in declaration order.
func (p *Pattern) ParamNames() []string {
	return append([]string(nil), p.params...)
}

// Literals returns the number of literal segments, used for specificity
// tie-breaks between overlapping patterns.
func (p *Pattern) Literals() int { return p.literals }

// HasTrailingSlash reports whether the template was registered with a
// trailing slash. Only meaningful under strict-slash matching.
func (p *Pattern) HasTrailingSlash() bool { return p.slash }

// TrailingSlash reports whether a path ends in a slash (the root path does
// not count).
func TrailingSlash(path string) bool {
	return len(path) > 1 && strings.HasSuffix(path, "/")
}

// Shape normalizes the pattern for conflict detection: parameter names are
// erased so that /users/{id} and /users/{name} collide, while /users/{id}
// and /users/me do not.
func (p *Pattern) Shape(caseSensitive bool) string {
	var b strings.Builder
	for _, seg := range p.segments {
		b.WriteByte('/')
		switch seg.kind {
		case segLiteral:
			if caseSensitive {
				b.WriteString(seg.literal)
			} else {
				b.WriteString(strings.ToLower(seg.literal))
			}
		case segParam, segIntParam:
			b.WriteByte(':')
		case segPathParam:
			b.WriteString("*path")
		case segWildcard:
			b.WriteByte('*')
		}
	}
	if b.Len() == 0 {
		return "/"
	}
	return b.String()
}

// Match resolves path segments against the pattern. On success it returns
// parameter values aligned with ParamNames.
func (p *Pattern) Match(segs []string, caseSensitive bool) ([]string, bool) {
	values := make([]string, 0, len(p.params))

	for i, seg := range p.segments {
		switch seg.kind {
		case segPathParam:
			// Greedy remainder; requires at least one segment.
			if i >= len(segs) {
				return nil, false
			}
			values = append(values, strings.Join(segs[i:], "/"))
			return values, true

		case segLiteral:
			if i >= len(segs) || !literalEqual(seg.literal, segs[i], caseSensitive) {
				return nil, false
			}

		case segWildcard:
			if i >= len(segs) || segs[i] == "" {
				return nil, false
			}

		case segParam:
			if i >= len(segs) || segs[i] == "" {
				return nil, false
			}
			values = append(values, segs[i])

		case segIntParam:
			if i >= len(segs) || !allDigits(segs[i]) {
				return nil, false
			}
			values = append(values, segs[i])
		}
	}

	if len(segs) != len(p.segments) {
		return nil, false
	}
	return values, true
}

func literalEqual(a, b string, caseSensitive bool) bool {
	if caseSensitive {
		return a == b
	}
	return strings.EqualFold(a, b)
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// SplitPath normalizes a request path into segments for matching: a
// leading slash is ensured and, unless strictSlashes is set, the trailing
// slash is dropped.
func SplitPath(path string, strictSlashes bool) []string {
	if path == "" {
		path = "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if !strictSlashes && len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	return pathSegments(path)
}

func pathSegments(path string) []string {
	if path == "/" {
		return nil
	}
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}

	segs := make([]string, 0, 8)
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '/' {
			if start < i {
				segs = append(segs, path[start:i])
			}
			start = i + 1
		}
	}
	if start < len(path) {
		segs = append(segs, path[start:])
	}
	return segs
}
