package model

// Snapshot is the reconciled "current" view of the dataset: an ordered
// sequence of records, insertion order = first-seen order, unique by PIID.
// The store owns the snapshot; the reconciler only reads it and returns a
// fresh one.
type Snapshot struct {
	records []ContractRecord
	index   map[string]int
}

// NewSnapshot builds a snapshot from records in order. A PIID seen twice
// keeps the later record in the earlier record's position.
func NewSnapshot(records []ContractRecord) *Snapshot {
	s := &Snapshot{index: make(map[string]int, len(records))}
	for _, r := range records {
		if i, ok := s.index[r.PIID]; ok {
			s.records[i] = r
			continue
		}
		s.index[r.PIID] = len(s.records)
		s.records = append(s.records, r)
	}
	return s
}

// Len returns the number of records, deleted markers included.
func (s *Snapshot) Len() int {
	return len(s.records)
}

// ActiveLen returns the number of records without a deletion marker.
func (s *Snapshot) ActiveLen() int {
	n := 0
	for _, r := range s.records {
		if r.DeletedDate == nil {
			n++
		}
	}
	return n
}

// Get returns the record for a PIID.
func (s *Snapshot) Get(piid string) (ContractRecord, bool) {
	i, ok := s.index[piid]
	if !ok {
		return ContractRecord{}, false
	}
	return s.records[i], true
}

// Records returns the records in insertion order. The slice is a copy.
func (s *Snapshot) Records() []ContractRecord {
	out := make([]ContractRecord, len(s.records))
	copy(out, s.records)
	return out
}
