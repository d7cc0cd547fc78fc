// Package words produces the indefinite word stream a typing session
// consumes. Words arrive in pages of 100; the accumulated list only ever
// grows, so every player in a session sees the same sequence.
package words

import (
	"math/rand"
	"sync"
)

const (
	// PageSize is the number of words added per extension.
	PageSize = 100

	// yoShare is the fraction of each page drawn from the "yo" list.
	yoShare = 0.1
)

// Source supplies the raw word pools a Provider samples from.
type Source interface {
	RegularWords() ([]string, error)
	YoWords() ([]string, error)
}

// Provider accumulates the word list for a single session. Words never
// shrinks; the new-word cursor starts past the initial page, so fresh words
// broadcast during play come from subsequently generated pages.
type Provider struct {
	mu      sync.Mutex
	source  Source
	rng     *rand.Rand
	words   []string
	cursor  int
	regular []string
	yo      []string
}

// NewProvider builds a provider over the given source and generates the
// initial page.
func NewProvider(source Source, seed int64) (*Provider, error) {
	p := &Provider{
		source: source,
		rng:    rand.New(rand.NewSource(seed)),
	}
	regular, err := source.RegularWords()
	if err != nil {
		return nil, err
	}
	yo, err := source.YoWords()
	if err != nil {
		return nil, err
	}
	p.regular = regular
	p.yo = yo

	p.extend()
	p.cursor = len(p.words)
	return p, nil
}

// Words returns the full list accumulated so far.
func (p *Provider) Words() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.words))
	copy(out, p.words)
	return out
}

// WordAt returns the word at position i, extending the list page by page
// until it reaches that far.
func (p *Provider) WordAt(i int) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i >= len(p.words) {
		p.extend()
	}
	return p.words[i]
}

// NextWord returns the next fresh word, extending the list by a page when
// the cursor is exhausted.
func (p *Provider) NextWord() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cursor >= len(p.words) {
		p.extend()
	}
	word := p.words[p.cursor]
	p.cursor++
	return word
}

// extend appends one page: 90% regular and 10% yo words, shuffled.
// Callers hold p.mu.
func (p *Provider) extend() {
	yoCount := int(float64(PageSize) * yoShare)
	page := make([]string, 0, PageSize)
	for i := 0; i < PageSize-yoCount; i++ {
		page = append(page, p.regular[p.rng.Intn(len(p.regular))])
	}
	for i := 0; i < yoCount; i++ {
		page = append(page, p.yo[p.rng.Intn(len(p.yo))])
	}
	p.rng.Shuffle(len(page), func(i, j int) {
		page[i], page[j] = page[j], page[i]
	})
	p.words = append(p.words, page...)
}
