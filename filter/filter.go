// Package filter evaluates a sum-of-products predicate — one
// conjunction of n-gram indices per search literal — against a
// candidate bitmap.
package filter

import "github.com/purestorage/4grep/ngram"

// Conjunction is one set of bitmap indices that must all be present
// for the conjunction to be satisfied; typically the n-grams of one
// literal search substring.
type Conjunction struct {
	Indices []int
}

// NewConjunction builds a Conjunction from a literal substring using
// the same rolling scheme as the bitmap builder.
func NewConjunction(literal string) Conjunction {
	return Conjunction{Indices: ngram.IndicesOf(literal)}
}

// Query is an OR of Conjunctions: a bitmap matches the query iff any
// one of its conjunctions is fully contained in the bitmap.
type Query struct {
	Conjunctions []Conjunction
}

// NewQuery builds one conjunction per literal, combined with OR.
func NewQuery(literals ...string) Query {
	q := Query{Conjunctions: make([]Conjunction, len(literals))}
	for i, lit := range literals {
		q.Conjunctions[i] = NewConjunction(lit)
	}
	return q
}

// satisfied reports whether every index in c is set in bm.
func (c Conjunction) satisfied(bm *ngram.Bitmap) bool {
	for _, idx := range c.Indices {
		if !bm.Get(idx) {
			return false
		}
	}
	return true
}

// Matches reports whether bm matches q: at least one conjunction has
// every one of its indices set.
func (q Query) Matches(bm *ngram.Bitmap) bool {
	for _, c := range q.Conjunctions {
		if c.satisfied(bm) {
			return true
		}
	}
	return false
}

// ShouldSkip reports whether bm can be conclusively ruled out for q:
// true iff no conjunction is fully contained, i.e. the file cannot
// possibly contain any of the query's literals.
func ShouldSkip(bm *ngram.Bitmap, q Query) bool {
	return !q.Matches(bm)
}
