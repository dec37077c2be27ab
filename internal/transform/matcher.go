package transform

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"sparkify_etl/internal/config"
)

// Matcher computes the join key that pairs a log event with a song.
// Two (artist, title) pairs join when their keys are equal. An empty key
// never joins.
type Matcher interface {
	Key(artist, title string) string
}

// MatcherFor returns the matcher configured by join.strategy.
func MatcherFor(strategy string) (Matcher, error) {
	switch strategy {
	case "", config.JoinExact:
		return ExactMatcher{}, nil
	case config.JoinNormalized:
		return NewNormalizedMatcher(), nil
	default:
		return nil, fmt.Errorf("unknown join strategy %q", strategy)
	}
}

// ExactMatcher joins on literal equality of artist name and title.
type ExactMatcher struct{}

func (ExactMatcher) Key(artist, title string) string {
	if artist == "" || title == "" {
		return ""
	}
	return artist + "\x00" + title
}

// NormalizedMatcher joins on artist and title after NFKC normalisation,
// case folding, punctuation removal and whitespace collapsing.
type NormalizedMatcher struct {
	fold cases.Caser
}

func NewNormalizedMatcher() *NormalizedMatcher {
	return &NormalizedMatcher{fold: cases.Fold()}
}

func (m *NormalizedMatcher) Key(artist, title string) string {
	a, t := m.normalize(artist), m.normalize(title)
	if a == "" || t == "" {
		return ""
	}
	return a + "\x00" + t
}

func (m *NormalizedMatcher) normalize(s string) string {
	s = m.fold.String(norm.NFKC.String(s))
	s = strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return -1
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}
