package svrattr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCommaString(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"simple", "a,b,c", []string{"a", "b", "c"}},
		{"whitespace trimmed", " a , b ,c", []string{"a", "b", "c"}},
		{"newline delimiter", "a\nb,c", []string{"a", "b", "c"}},
		{"escaped comma preserved", `a\,b,c`, []string{"a,b", "c"}},
		{"single token", "only", []string{"only"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseCommaString(tt.in))
		})
	}
}

func TestStrtokQuoted(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"simple", "a:b:c", []string{"a", "b", "c"}},
		{"quoted preserves delim", `a:"b:c":d`, []string{"a", `"b:c"`, "d"}},
		{"single quoted", `a:'b:c'`, []string{"a", `'b:c'`}},
		{"escaped delim", `a\:b:c`, []string{"a:b", "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StrtokQuoted(tt.in, ':'))
		})
	}
}

func TestEnvArrayToStr(t *testing.T) {
	out := EnvArrayToStr(map[string]string{"B": "2", "A": "1,x"}, ',')
	assert.Equal(t, `A=1\,x,B=2`, out)
}

func TestCompareLists(t *testing.T) {
	a := &List{}
	a.Append(&Node{Name: "x", Value: "1"})
	a.Append(&Node{Name: "y", Value: "2", Resource: "r1"})

	b := &List{}
	b.Append(&Node{Name: "y", Value: "2", Resource: "r2"}) // resource differs, ignored
	b.Append(&Node{Name: "x", Value: "1"})

	assert.True(t, CompareLists(a, b))

	c := &List{}
	c.Append(&Node{Name: "x", Value: "different"})
	assert.False(t, CompareLists(a, c))
}

func TestSortedInsert(t *testing.T) {
	l := &List{}
	l.SortedInsert(&Node{Name: "charlie"})
	l.SortedInsert(&Node{Name: "alpha"})
	l.SortedInsert(&Node{Name: "bravo"})

	var names []string
	for _, n := range l.Slice() {
		names = append(names, n.Name)
	}
	assert.Equal(t, []string{"alpha", "bravo", "charlie"}, names)
}

func TestNodeRetainRelease(t *testing.T) {
	n := &Node{Name: "x"}
	n.Retain()
	n.Retain()
	assert.False(t, n.Release())
	assert.True(t, n.Release())
}
