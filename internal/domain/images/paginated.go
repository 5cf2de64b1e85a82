package images

// ListFilter selects one page of records in store order.
type ListFilter struct {
	Status     Status
	Limit      int
	StartAfter ImageID
}

// Page is one page of records plus the key to resume after, empty on the last page.
type Page struct {
	Records []*AnalysisRecord
	NextKey ImageID
}

// HasMore reports whether another page can be requested.
func (p Page) HasMore() bool { return p.NextKey != "" }
