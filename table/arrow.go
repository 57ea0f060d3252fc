package table

import (
	"fmt"
	"io"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// WriteArrow writes the frame as an Arrow IPC file with one utf8 column per frame column.
func WriteArrow(w io.Writer, f *Frame) error {
	return writeArrow(w, f, nil, nil)
}

// WriteArrow writes input and score columns as an Arrow IPC file.
// Score columns are float64; non-finite scores are written as nulls.
func (t *ScoreTable) WriteArrow(w io.Writer) error {
	return writeArrow(w, t.frame, t.metrics, t.scores)
}

func writeArrow(w io.Writer, f *Frame, metrics []string, scores map[string][]float64) error {
	pool := memory.NewGoAllocator()

	fields := make([]arrow.Field, 0, len(f.columns)+len(metrics))
	for _, c := range f.columns {
		fields = append(fields, arrow.Field{Name: c, Type: arrow.BinaryTypes.String})
	}
	for _, m := range metrics {
		fields = append(fields, arrow.Field{Name: m, Type: arrow.PrimitiveTypes.Float64, Nullable: true})
	}
	schema := arrow.NewSchema(fields, nil)

	b := array.NewRecordBuilder(pool, schema)
	defer b.Release()

	for i := range f.columns {
		b.Field(i).(*array.StringBuilder).AppendValues(f.cells[i], nil)
	}
	for j, m := range metrics {
		vals := scores[m]
		valid := make([]bool, len(vals))
		for i, v := range vals {
			valid[i] = !math.IsNaN(v) && !math.IsInf(v, 0)
		}
		b.Field(len(f.columns)+j).(*array.Float64Builder).AppendValues(vals, valid)
	}

	rec := b.NewRecord()
	defer rec.Release()

	fw, err := ipc.NewFileWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(pool))
	if err != nil {
		return fmt.Errorf("create arrow writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		_ = fw.Close()
		return fmt.Errorf("write arrow record: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("close arrow writer: %w", err)
	}
	return nil
}

// ReadArrow reads a frame from an Arrow IPC file. String columns are read
// as-is; other column types are rendered with their Arrow string form and
// nulls become empty strings.
func ReadArrow(r ipc.ReadAtSeeker) (*Frame, error) {
	pool := memory.NewGoAllocator()
	fr, err := ipc.NewFileReader(r, ipc.WithAllocator(pool))
	if err != nil {
		return nil, fmt.Errorf("open arrow file: %w", err)
	}
	defer fr.Close()

	schema := fr.Schema()
	names := make([]string, schema.NumFields())
	for i, fld := range schema.Fields() {
		names[i] = fld.Name
	}
	f, err := NewFrame(names...)
	if err != nil {
		return nil, err
	}

	for n := 0; n < fr.NumRecords(); n++ {
		rec, err := fr.Record(n)
		if err != nil {
			return nil, fmt.Errorf("read arrow record %d: %w", n, err)
		}
		rows := int(rec.NumRows())
		for c := range names {
			col := rec.Column(c)
			strs, isString := col.(*array.String)
			for i := 0; i < rows; i++ {
				var v string
				switch {
				case col.IsNull(i):
				case isString:
					v = strs.Value(i)
				default:
					v = col.ValueStr(i)
				}
				f.cells[c] = append(f.cells[c], v)
			}
		}
		f.rows += rows
	}
	return f, nil
}
