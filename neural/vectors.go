package neural

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/datar-psa/mtdetect/api"
)

// Vectors is an in-memory word-vector model in word2vec text format:
// an optional "count dim" header line followed by "word v1 v2 ..." lines.
type Vectors struct {
	mu    sync.RWMutex
	dim   int
	words map[string][]float64
}

var (
	_ api.TokenEmbedder = (*Vectors)(nil)
	_ io.Closer         = (*Vectors)(nil)
)

// LoadVectors reads a word-vector file. A missing file returns an error
// wrapping os.ErrNotExist.
func LoadVectors(path string) (*Vectors, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open word vectors: %w", err)
	}
	defer f.Close()
	v, err := ReadVectors(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return v, nil
}

// ReadVectors parses word vectors from r.
func ReadVectors(r io.Reader) (*Vectors, error) {
	v := &Vectors{words: make(map[string][]float64)}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if line == 1 && len(fields) == 2 {
			if _, err := strconv.Atoi(fields[0]); err == nil {
				dim, err := strconv.Atoi(fields[1])
				if err != nil {
					return nil, fmt.Errorf("line 1: bad dimension %q", fields[1])
				}
				v.dim = dim
				continue
			}
		}
		if len(fields) < 2 {
			return nil, fmt.Errorf("line %d: word without vector", line)
		}
		vec := make([]float64, len(fields)-1)
		for i, s := range fields[1:] {
			x, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			vec[i] = x
		}
		if v.dim == 0 {
			v.dim = len(vec)
		}
		if len(vec) != v.dim {
			return nil, fmt.Errorf("line %d: vector has %d values, want %d", line, len(vec), v.dim)
		}
		v.words[fields[0]] = vec
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(v.words) == 0 {
		return nil, fmt.Errorf("no vectors found")
	}
	return v, nil
}

// Dim is the vector dimension.
func (v *Vectors) Dim() int { return v.dim }

// Len is the vocabulary size.
func (v *Vectors) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.words)
}

// EmbedTokens looks up every token, falling back to its lowercase form.
// Unknown tokens get a nil vector.
func (v *Vectors) EmbedTokens(ctx context.Context, tokens []string) ([][]float64, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.words == nil {
		return nil, fmt.Errorf("word vectors are closed")
	}
	out := make([][]float64, len(tokens))
	for i, tok := range tokens {
		if vec, ok := v.words[tok]; ok {
			out[i] = vec
			continue
		}
		out[i] = v.words[strings.ToLower(tok)]
	}
	return out, nil
}

// Close drops the vocabulary.
func (v *Vectors) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.words = nil
	return nil
}
