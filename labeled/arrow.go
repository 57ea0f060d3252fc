package labeled

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

var schema = arrow.NewSchema([]arrow.Field{
	{Name: "text", Type: arrow.BinaryTypes.String},
	{Name: "label", Type: arrow.PrimitiveTypes.Float32},
	{Name: "input_ids", Type: arrow.ListOf(arrow.PrimitiveTypes.Int32)},
	{Name: "attention_mask", Type: arrow.ListOf(arrow.PrimitiveTypes.Int32)},
}, nil)

// Save writes the dataset to path as an Arrow IPC file.
func (d *Dataset) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create dataset file: %w", err)
	}
	if err := d.writeArrow(file); err != nil {
		_ = file.Close()
		return fmt.Errorf("save %s: %w", path, err)
	}
	return file.Close()
}

func (d *Dataset) writeArrow(file *os.File) error {
	pool := memory.NewGoAllocator()
	b := array.NewRecordBuilder(pool, schema)
	defer b.Release()

	b.Field(0).(*array.StringBuilder).AppendValues(d.Texts, nil)
	b.Field(1).(*array.Float32Builder).AppendValues(d.Labels, nil)
	appendLists(b.Field(2).(*array.ListBuilder), d.Encodings.InputIDs)
	appendLists(b.Field(3).(*array.ListBuilder), d.Encodings.AttentionMask)

	rec := b.NewRecord()
	defer rec.Release()

	fw, err := ipc.NewFileWriter(file, ipc.WithSchema(schema), ipc.WithAllocator(pool))
	if err != nil {
		return fmt.Errorf("create arrow writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		_ = fw.Close()
		return fmt.Errorf("write arrow record: %w", err)
	}
	return fw.Close()
}

func appendLists(lb *array.ListBuilder, rows [][]int32) {
	vb := lb.ValueBuilder().(*array.Int32Builder)
	for _, row := range rows {
		lb.Append(true)
		vb.AppendValues(row, nil)
	}
}

// Load reads a dataset written by Save.
func Load(path string) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer file.Close()

	pool := memory.NewGoAllocator()
	fr, err := ipc.NewFileReader(file, ipc.WithAllocator(pool))
	if err != nil {
		return nil, fmt.Errorf("open arrow file %s: %w", path, err)
	}
	defer fr.Close()

	var (
		texts  []string
		labels []float32
		enc    Encodings
	)
	for n := 0; n < fr.NumRecords(); n++ {
		rec, err := fr.Record(n)
		if err != nil {
			return nil, fmt.Errorf("read arrow record %d: %w", n, err)
		}
		textCol, ok1 := rec.Column(0).(*array.String)
		labelCol, ok2 := rec.Column(1).(*array.Float32)
		idsCol, ok3 := rec.Column(2).(*array.List)
		maskCol, ok4 := rec.Column(3).(*array.List)
		if !ok1 || !ok2 || !ok3 || !ok4 {
			return nil, fmt.Errorf("%s is not a labeled dataset", path)
		}
		for i := 0; i < int(rec.NumRows()); i++ {
			texts = append(texts, textCol.Value(i))
			labels = append(labels, labelCol.Value(i))
		}
		enc.InputIDs = append(enc.InputIDs, readLists(idsCol)...)
		enc.AttentionMask = append(enc.AttentionMask, readLists(maskCol)...)
	}
	return New(texts, enc, labels)
}

func readLists(col *array.List) [][]int32 {
	values := col.ListValues().(*array.Int32).Int32Values()
	out := make([][]int32, col.Len())
	for i := range out {
		start, end := col.ValueOffsets(i)
		out[i] = append([]int32(nil), values[start:end]...)
	}
	return out
}
