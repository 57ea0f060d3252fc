// Package labeled builds the detection dataset: human targets and machine
// translations, tokenized and labeled for a binary classifier.
package labeled

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
)

// Labels of the detection task.
const (
	LabelHuman   float32 = 0
	LabelMachine float32 = 1
)

// DefaultTestSize is the share of items put in the eval split.
const DefaultTestSize = 0.2

// DeviceCPU is host memory, where every dataset lives when created.
const DeviceCPU = "cpu"

// ErrPlacementUnsupported is returned by Place for a device the dataset
// cannot move to.
var ErrPlacementUnsupported = errors.New("device placement not supported")

// Placer moves encodings and labels to a compute device.
type Placer interface {
	Place(device string, enc Encodings, labels []float32) error
}

// Dataset is a tokenized, labeled list of texts.
type Dataset struct {
	Texts     []string
	Encodings Encodings
	Labels    []float32

	device string
	placer Placer
}

// New checks that texts, encodings and labels line up.
func New(texts []string, enc Encodings, labels []float32) (*Dataset, error) {
	if len(texts) != len(labels) || enc.Len() != len(labels) || len(enc.AttentionMask) != len(labels) {
		return nil, fmt.Errorf("dataset has %d texts, %d encodings and %d labels", len(texts), enc.Len(), len(labels))
	}
	return &Dataset{Texts: texts, Encodings: enc, Labels: labels, device: DeviceCPU}, nil
}

// FromTexts interleaves every target (labeled human) with its translation
// (labeled machine) and tokenizes the result.
func FromTexts(targets, translations []string, tok Tokenizer) (*Dataset, error) {
	if len(targets) != len(translations) {
		return nil, fmt.Errorf("%d targets but %d translations", len(targets), len(translations))
	}
	texts := make([]string, 0, 2*len(targets))
	labels := make([]float32, 0, 2*len(targets))
	for i := range targets {
		texts = append(texts, targets[i], translations[i])
		labels = append(labels, LabelHuman, LabelMachine)
	}
	enc, err := tok.Encode(texts)
	if err != nil {
		return nil, fmt.Errorf("tokenize: %w", err)
	}
	return New(texts, enc, labels)
}

// Len returns the number of items.
func (d *Dataset) Len() int { return len(d.Labels) }

// Device returns where the dataset lives.
func (d *Dataset) Device() string { return d.device }

// SetPlacer attaches the device backend used by Place.
func (d *Dataset) SetPlacer(p Placer) { d.placer = p }

// Place moves the dataset to device. Without a Placer only "cpu" is
// supported.
func (d *Dataset) Place(device string) error {
	if device == "" || device == d.device {
		return nil
	}
	if d.placer == nil {
		return fmt.Errorf("%w: %s", ErrPlacementUnsupported, device)
	}
	if err := d.placer.Place(device, d.Encodings, d.Labels); err != nil {
		return fmt.Errorf("place on %s: %w", device, err)
	}
	d.device = device
	return nil
}

// Split shuffles the items with seed and returns train and eval datasets.
// The eval split has ceil(n*testSize) items and train the rest.
func (d *Dataset) Split(testSize float64, seed uint64) (train, eval *Dataset, err error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, fmt.Errorf("test size must be in (0,1), got %v", testSize)
	}
	n := d.Len()
	nEval := int(math.Ceil(float64(n) * testSize))
	nTrain := n - nEval
	if nTrain < 1 || nEval < 1 {
		return nil, nil, fmt.Errorf("cannot split %d items with test size %v", n, testSize)
	}

	perm := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)).Perm(n)
	return d.subset(perm[:nTrain]), d.subset(perm[nTrain:]), nil
}

func (d *Dataset) subset(idx []int) *Dataset {
	out := &Dataset{
		Texts:     make([]string, len(idx)),
		Encodings: d.Encodings.subset(idx),
		Labels:    make([]float32, len(idx)),
		device:    d.device,
		placer:    d.placer,
	}
	for i, j := range idx {
		out.Texts[i] = d.Texts[j]
		out.Labels[i] = d.Labels[j]
	}
	return out
}
