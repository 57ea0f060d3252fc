// Package lexical computes lexical-richness statistics of a text column.
package lexical

import (
	"math"
	"regexp"
	"strings"
	"sync"
)

// DefaultThreshold is the MTLD type-token ratio threshold.
const DefaultThreshold = 0.72

var (
	reDigits = regexp.MustCompile(`[0-9]+`)
	// ASCII punctuation except the dash, which becomes a word separator
	rePunct = regexp.MustCompile("[!\"#$%&'()*+,./:;<=>?@\\[\\\\\\]^_`{|}~]")
)

// Analysis holds the tokenization of one text.
type Analysis struct {
	Wordlist []string
	Words    int
	Terms    int
}

// Analyzer memoizes Analysis per text so that every lexical metric of one
// calculator shares a single tokenization per record. It is safe for
// concurrent use.
type Analyzer struct {
	mu    sync.Mutex
	cache map[string]*Analysis
}

func NewAnalyzer() *Analyzer {
	return &Analyzer{cache: make(map[string]*Analysis)}
}

// Analyze returns the cached analysis of text, computing it on first use.
func (a *Analyzer) Analyze(text string) *Analysis {
	a.mu.Lock()
	defer a.mu.Unlock()
	if res, ok := a.cache[text]; ok {
		return res
	}
	res := analyze(text)
	a.cache[text] = res
	return res
}

// Len reports the number of cached texts.
func (a *Analyzer) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.cache)
}

func analyze(text string) *Analysis {
	words := Tokenize(text)
	types := make(map[string]struct{}, len(words))
	for _, w := range words {
		types[w] = struct{}{}
	}
	return &Analysis{Wordlist: words, Words: len(words), Terms: len(types)}
}

// Tokenize lowercases text, drops digits, turns dashes into spaces, strips
// ASCII punctuation and splits on whitespace.
func Tokenize(text string) []string {
	text = strings.ToLower(text)
	text = reDigits.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "-", " ")
	text = rePunct.ReplaceAllString(text, "")
	return strings.Fields(text)
}

// TTR is the type-token ratio t/w.
func (a *Analysis) TTR() float64 {
	if a.Words == 0 {
		return math.NaN()
	}
	return float64(a.Terms) / float64(a.Words)
}

// RTTR is the root type-token ratio t/sqrt(w).
func (a *Analysis) RTTR() float64 {
	if a.Words == 0 {
		return math.NaN()
	}
	return float64(a.Terms) / math.Sqrt(float64(a.Words))
}

// CTTR is the corrected type-token ratio t/sqrt(2w).
func (a *Analysis) CTTR() float64 {
	if a.Words == 0 {
		return math.NaN()
	}
	return float64(a.Terms) / math.Sqrt(2*float64(a.Words))
}

// Herdan is log(t)/log(w); undefined for fewer than two words.
func (a *Analysis) Herdan() float64 {
	if a.Words < 2 {
		return math.NaN()
	}
	return math.Log(float64(a.Terms)) / math.Log(float64(a.Words))
}

// MTLD is the measure of textual lexical diversity: the mean of a forward
// and a backward pass, each counting how many segments it takes for the
// running type-token ratio to fall to threshold.
func (a *Analysis) MTLD(threshold float64) float64 {
	if a.Words == 0 || threshold >= 1 {
		return math.NaN()
	}
	forward := a.mtldPass(threshold, false)
	backward := a.mtldPass(threshold, true)
	return (forward + backward) / 2
}

func (a *Analysis) mtldPass(threshold float64, reverse bool) float64 {
	terms := make(map[string]struct{})
	counter := 0
	factors := 0.0
	ttr := 1.0
	n := len(a.Wordlist)
	for k := 0; k < n; k++ {
		word := a.Wordlist[k]
		if reverse {
			word = a.Wordlist[n-1-k]
		}
		counter++
		terms[word] = struct{}{}
		ttr = float64(len(terms)) / float64(counter)
		if ttr <= threshold {
			counter = 0
			terms = make(map[string]struct{})
			factors++
		}
	}
	if counter > 0 {
		factors += (1 - ttr) / (1 - threshold)
	}
	if factors == 0 {
		whole := a.TTR()
		if whole == 1 {
			factors = 1
		} else {
			factors = (1 - whole) / (1 - threshold)
		}
	}
	return float64(n) / factors
}
