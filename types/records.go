package types

// RecordsBySplits is one fetched batch, grouped by split, handed from a fetcher
// to the consuming pipeline.
type RecordsBySplits struct {
	// Records maps split ID to the messages fetched for it, in fetch order.
	Records map[string][]Message

	// Finished holds IDs of splits that reached their end during this fetch.
	Finished []string
}

// NewRecordsBySplits returns an empty batch.
func NewRecordsBySplits() *RecordsBySplits {
	return &RecordsBySplits{Records: make(map[string][]Message)}
}

// Add appends a message to the split's record list.
func (r *RecordsBySplits) Add(splitID string, msg Message) {
	r.Records[splitID] = append(r.Records[splitID], msg)
}

// AddFinished marks the split as finished.
func (r *RecordsBySplits) AddFinished(splitID string) {
	r.Finished = append(r.Finished, splitID)
}

// Len returns the total number of messages across all splits.
func (r *RecordsBySplits) Len() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, msgs := range r.Records {
		n += len(msgs)
	}

	return n
}

// IsEmpty reports whether the batch carries neither messages nor finished splits.
func (r *RecordsBySplits) IsEmpty() bool {
	return r == nil || (r.Len() == 0 && len(r.Finished) == 0)
}
