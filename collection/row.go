package collection

// Row is a document of a collection. I is a monotonic id assigned on insert
// and replayed identically when the command log is loaded. Payload is never
// modified in place: a patch replaces the slice.
type Row struct {
	I       int64
	Payload []byte
}

func (r *Row) Less(than *Row) bool {
	return r.I < than.I
}
