package dialect

// sliceReader is an in-memory RowReader for exercising WriteRows.
type sliceReader struct {
	rows   [][]interface{}
	pos    int
	cur    []interface{}
	outErr error // reported by Err after the rows are exhausted
	closed bool
}

func (r *sliceReader) Next() bool {
	if r.pos >= len(r.rows) {
		return false
	}
	r.cur = r.rows[r.pos]
	r.pos++
	return true
}

func (r *sliceReader) Values() ([]interface{}, error) { return r.cur, nil }
func (r *sliceReader) Err() error                     { return r.outErr }
func (r *sliceReader) Close() error                   { r.closed = true; return nil }

var testColumns = []Column{
	{Name: "id", NativeType: "integer", Nullable: false, OrdinalPosition: 1},
	{Name: "name", NativeType: "text", Nullable: true, OrdinalPosition: 2},
}
