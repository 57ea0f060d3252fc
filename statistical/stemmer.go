package statistical

import (
	"context"
	"fmt"

	"github.com/kljensen/snowball"

	"github.com/datar-psa/mtdetect/api"
)

// SnowballStemmer stems words locally with the Snowball algorithm for one
// language (english, french, spanish, russian, swedish, norwegian or
// hungarian).
type SnowballStemmer struct {
	Language string
}

var _ api.Stemmer = (*SnowballStemmer)(nil)

// NewSnowballStemmer checks that language is supported.
func NewSnowballStemmer(language string) (*SnowballStemmer, error) {
	if _, err := snowball.Stem("test", language, true); err != nil {
		return nil, fmt.Errorf("snowball stemmer: %w", err)
	}
	return &SnowballStemmer{Language: language}, nil
}

func (s *SnowballStemmer) Stem(ctx context.Context, words []string) ([]string, error) {
	out := make([]string, len(words))
	for i, w := range words {
		stem, err := snowball.Stem(w, s.Language, true)
		if err != nil {
			return nil, err
		}
		out[i] = stem
	}
	return out, nil
}
