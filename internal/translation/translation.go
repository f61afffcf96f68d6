// Package translation loads per-language-pair translation models and keeps
// the loaded models in a bounded cache.
package translation

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrModelClosed is returned by a Model that has been closed, usually after
// the cache evicted it.
var ErrModelClosed = errors.New("translation model closed")

// Language codes are alphanumeric subtags joined by '-' or '_' (en, zh-TW,
// mni-Mtei), so they are safe inside a model name.
var languageCodePattern = regexp.MustCompile(`^[A-Za-z0-9]+([_-][A-Za-z0-9]+)*$`)

const maxLanguageCodeLen = 16

// Pair is an ordered (source, target) language pair.
type Pair struct {
	Source string
	Target string
}

func (p Pair) String() string {
	return p.Source + "->" + p.Target
}

// Validate rejects codes that cannot name a published model.
func (p Pair) Validate() error {
	if !validLanguageCode(p.Source) {
		return fmt.Errorf("invalid source language code %q", p.Source)
	}
	if !validLanguageCode(p.Target) {
		return fmt.Errorf("invalid target language code %q", p.Target)
	}
	return nil
}

func validLanguageCode(code string) bool {
	return len(code) <= maxLanguageCodeLen && languageCodePattern.MatchString(code)
}

// Model translates text for the single pair it was loaded for.
type Model interface {
	Translate(ctx context.Context, text string) (string, error)
	// Close releases the model. It must be safe to call more than once.
	Close() error
}

// Loader obtains a model scoped to exactly one language pair. It fails when
// no model is published for the pair.
type Loader interface {
	Load(ctx context.Context, pair Pair) (Model, error)
}

// splitWhitespace separates leading and trailing whitespace from the text
// that actually needs translating.
func splitWhitespace(text string) (prefix, core, suffix string) {
	start := strings.IndexFunc(text, func(r rune) bool { return !unicode.IsSpace(r) })
	if start < 0 {
		return text, "", ""
	}
	end := strings.LastIndexFunc(text, func(r rune) bool { return !unicode.IsSpace(r) })
	_, size := utf8.DecodeRuneInString(text[end:])
	return text[:start], text[start : end+size], text[end+size:]
}
