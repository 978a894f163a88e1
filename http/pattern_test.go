package http

import (
	"errors"
	"reflect"
	"testing"
)

func TestParsePatternErrors(t *testing.T) {
	cases := []struct {
		name string
		path string
	}{
		{"no leading slash", "users/{id}"},
		{"empty", ""},
		{"path param not final", "/files/{rest:path}/meta"},
		{"duplicate param", "/a/{id}/b/{id}"},
		{"unknown type", "/a/{id:uuid}"},
		{"malformed braces", "/a/{id"},
		{"empty param name", "/a/{:int}"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParsePattern(tc.path)
			if err == nil {
				t.Fatalf("ParsePattern(%q) succeeded, want error", tc.path)
			}
			var ce *ConfigurationError
			if !errors.As(err, &ce) {
				t.Fatalf("ParsePattern(%q) returned %T, want *ConfigurationError", tc.path, err)
			}
		})
	}
}

func TestPatternMatch(t *testing.T) {
	cases := []struct {
		pattern string
		path    string
		want    map[string]string
		ok      bool
	}{
		{"/users/{id}", "/users/42", map[string]string{"id": "42"}, true},
		{"/users/{id}", "/users", nil, false},
		{"/users/{id}", "/users/42/posts", nil, false},
		{"/users/{id:int}", "/users/42", map[string]string{"id": "42"}, true},
		{"/users/{id:int}", "/users/alice", nil, false},
		{"/files/{rest:path}", "/files/a/b/c.txt", map[string]string{"rest": "a/b/c.txt"}, true},
		{"/files/{rest:path}", "/files", nil, false},
		{"/a/*/c", "/a/b/c", map[string]string{}, true},
		{"/a/*/c", "/a/c", nil, false},
		{"/", "/", map[string]string{}, true},
		{"/health", "/health", map[string]string{}, true},
		{"/health", "/Health", nil, false},
	}

	for _, tc := range cases {
		t.Run(tc.pattern+" "+tc.path, func(t *testing.T) {
			p, err := ParsePattern(tc.pattern)
			if err != nil {
				t.Fatalf("ParsePattern: %v", err)
			}

			values, ok := p.Match(SplitPath(tc.path, false), true)
			if ok != tc.ok {
				t.Fatalf("Match = %v, want %v", ok, tc.ok)
			}
			if !ok {
				return
			}

			got := make(map[string]string)
			for i, name := range p.ParamNames() {
				got[name] = values[i]
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("params = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestPatternMatchCaseInsensitive(t *testing.T) {
	p, err := ParsePattern("/Users/{id}")
	if err != nil {
		t.Fatalf("ParsePattern: %v", err)
	}
	if _, ok := p.Match(SplitPath("/users/7", false), false); !ok {
		t.Errorf("case-insensitive match failed")
	}
	if _, ok := p.Match(SplitPath("/users/7", false), true); ok {
		t.Errorf("case-sensitive match should fail")
	}
}

func TestPatternParamDeclarationOrder(t *testing.T) {
	p, err := ParsePattern("/orgs/{org}/repos/{repo}/issues/{id:int}")
	if err != nil {
		t.Fatalf("ParsePattern: %v", err)
	}
	want := []string{"org", "repo", "id"}
	if got := p.ParamNames(); !reflect.DeepEqual(got, want) {
		t.Errorf("ParamNames = %v, want %v", got, want)
	}
}

func TestPatternShape(t *testing.T) {
	shape := func(s string) string {
		p, err := ParsePattern(s)
		if err != nil {
			t.Fatalf("ParsePattern(%q): %v", s, err)
		}
		return p.Shape(true)
	}

	if shape("/users/{id}") != shape("/users/{name}") {
		t.Errorf("patterns differing only in param name should share a shape")
	}
	if shape("/users/{id}") == shape("/users/me") {
		t.Errorf("param and literal segments should not share a shape")
	}
	if shape("/users/{id}") == shape("/users/{rest:path}") {
		t.Errorf("single param and path remainder should not share a shape")
	}
}
