package labeled

import "fmt"

// ClassificationMetrics scores a binary detector. Machine (label 1) is the
// positive class; a ratio with a zero denominator is 0.
type ClassificationMetrics struct {
	Accuracy  float64 `json:"accuracy"`
	F1        float64 `json:"f1"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
}

// MetricNames lists the keys of ClassificationMetrics.Map in order.
var MetricNames = []string{"accuracy", "f1", "precision", "recall"}

// Map returns the metrics keyed by MetricNames.
func (m ClassificationMetrics) Map() map[string]float64 {
	return map[string]float64{
		"accuracy":  m.Accuracy,
		"f1":        m.F1,
		"precision": m.Precision,
		"recall":    m.Recall,
	}
}

// ComputeMetrics takes the argmax of each prediction row as the predicted
// class and compares it with labels.
func ComputeMetrics(predictions [][]float64, labels []int) (ClassificationMetrics, error) {
	if len(predictions) != len(labels) {
		return ClassificationMetrics{}, fmt.Errorf("%d predictions for %d labels", len(predictions), len(labels))
	}
	if len(labels) == 0 {
		return ClassificationMetrics{}, fmt.Errorf("no predictions")
	}
	var tp, fp, fn, correct int
	for i, row := range predictions {
		if len(row) == 0 {
			return ClassificationMetrics{}, fmt.Errorf("prediction %d is empty", i)
		}
		pred := argmax(row)
		label := labels[i]
		if pred == label {
			correct++
		}
		switch {
		case pred == 1 && label == 1:
			tp++
		case pred == 1:
			fp++
		case label == 1:
			fn++
		}
	}
	m := ClassificationMetrics{
		Accuracy:  float64(correct) / float64(len(labels)),
		Precision: ratio(tp, tp+fp),
		Recall:    ratio(tp, tp+fn),
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	return m, nil
}

func argmax(row []float64) int {
	best := 0
	for i, v := range row {
		if v > row[best] {
			best = i
		}
	}
	return best
}

func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}
