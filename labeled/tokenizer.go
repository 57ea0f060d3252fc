package labeled

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultMaxLength is the truncation length of a TiktokenTokenizer.
const DefaultMaxLength = 512

// Encodings holds padded token IDs and their attention masks, one row per
// text. All rows of one Encodings have the same length.
type Encodings struct {
	InputIDs      [][]int32
	AttentionMask [][]int32
}

// Len returns the number of rows.
func (e Encodings) Len() int { return len(e.InputIDs) }

func (e Encodings) subset(idx []int) Encodings {
	out := Encodings{
		InputIDs:      make([][]int32, len(idx)),
		AttentionMask: make([][]int32, len(idx)),
	}
	for i, j := range idx {
		out.InputIDs[i] = e.InputIDs[j]
		out.AttentionMask[i] = e.AttentionMask[j]
	}
	return out
}

// Tokenizer turns texts into fixed-size encodings.
type Tokenizer interface {
	Encode(texts []string) (Encodings, error)
}

type bpe interface {
	Encode(text string, allowedSpecial, disallowedSpecial []string) []int
}

// TiktokenTokenizer encodes with a tiktoken BPE, truncating each text to
// MaxLength tokens and padding every row to the longest one.
type TiktokenTokenizer struct {
	encoding  string
	maxLength int
	padID     int32

	once    sync.Once
	enc     bpe
	initErr error
}

var _ Tokenizer = (*TiktokenTokenizer)(nil)

// NewTiktokenTokenizer creates a tokenizer for a tiktoken encoding such as
// "cl100k_base". The BPE ranks are fetched on first use.
func NewTiktokenTokenizer(encoding string, maxLength int) (*TiktokenTokenizer, error) {
	if encoding == "" {
		return nil, fmt.Errorf("tiktoken encoding is required")
	}
	if maxLength == 0 {
		maxLength = DefaultMaxLength
	}
	if maxLength < 0 {
		return nil, fmt.Errorf("max length must be positive, got %d", maxLength)
	}
	return &TiktokenTokenizer{encoding: encoding, maxLength: maxLength}, nil
}

func (t *TiktokenTokenizer) init() error {
	t.once.Do(func() {
		if t.enc != nil {
			return
		}
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("init tiktoken encoding %s: %w", t.encoding, err)
			return
		}
		t.enc = enc
	})
	return t.initErr
}

// Encode implements Tokenizer.
func (t *TiktokenTokenizer) Encode(texts []string) (Encodings, error) {
	if err := t.init(); err != nil {
		return Encodings{}, err
	}
	ids := make([][]int, len(texts))
	longest := 0
	for i, text := range texts {
		tokens := t.enc.Encode(text, nil, nil)
		if len(tokens) > t.maxLength {
			tokens = tokens[:t.maxLength]
		}
		ids[i] = tokens
		longest = max(longest, len(tokens))
	}
	return pad(ids, longest, t.padID), nil
}

func pad(ids [][]int, length int, padID int32) Encodings {
	out := Encodings{
		InputIDs:      make([][]int32, len(ids)),
		AttentionMask: make([][]int32, len(ids)),
	}
	for i, row := range ids {
		inputIDs := make([]int32, length)
		mask := make([]int32, length)
		for j := range inputIDs {
			if j < len(row) {
				inputIDs[j] = int32(row[j])
				mask[j] = 1
			} else {
				inputIDs[j] = padID
			}
		}
		out.InputIDs[i] = inputIDs
		out.AttentionMask[i] = mask
	}
	return out
}
