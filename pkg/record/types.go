// ABOUTME: Record and Snapshot data model for live collections
// ABOUTME: Records are replaced whole, snapshots are never mutated

package record

// Record is one document of a collection: a stable id assigned by the
// remote source plus an opaque field map.
type Record struct {
	ID     string
	fields map[string]any
}

// New builds a record, copying fields so later writes by the caller are not
// observed through the record.
func New(id string, fields map[string]any) Record {
	cp := make(map[string]any, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	return Record{ID: id, fields: cp}
}

// Get returns the raw value stored under field.
func (r Record) Get(field string) (any, bool) {
	v, ok := r.fields[field]
	return v, ok
}

// Fields returns a copy of the field map.
func (r Record) Fields() map[string]any {
	cp := make(map[string]any, len(r.fields))
	for k, v := range r.fields {
		cp[k] = v
	}
	return cp
}

// Len returns the number of fields.
func (r Record) Len() int {
	return len(r.fields)
}

// Snapshot is the complete state of a collection at one point in logical
// time. The zero value is the empty snapshot.
type Snapshot struct {
	records []Record
	index   map[string]int
}

// NewSnapshot builds a snapshot from records in order. When an id repeats,
// the first position is kept and the later value wins.
func NewSnapshot(records []Record) Snapshot {
	out := make([]Record, 0, len(records))
	index := make(map[string]int, len(records))
	for _, r := range records {
		if i, ok := index[r.ID]; ok {
			out[i] = r
			continue
		}
		index[r.ID] = len(out)
		out = append(out, r)
	}
	return Snapshot{records: out, index: index}
}

// Len returns the number of records.
func (s Snapshot) Len() int {
	return len(s.records)
}

// At returns the i-th record.
func (s Snapshot) At(i int) Record {
	return s.records[i]
}

// Get looks a record up by id.
func (s Snapshot) Get(id string) (Record, bool) {
	i, ok := s.index[id]
	if !ok {
		return Record{}, false
	}
	return s.records[i], true
}

// Records returns the records in order. The slice is a copy.
func (s Snapshot) Records() []Record {
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// IDs returns record ids in order.
func (s Snapshot) IDs() []string {
	ids := make([]string, len(s.records))
	for i, r := range s.records {
		ids[i] = r.ID
	}
	return ids
}
