package generations

import "time"

// Generation records one document produced by the generate endpoint.
type Generation struct {
	ID         string
	RequestID  string
	DocType    string
	Mode       string
	Format     string
	DocxName   string
	PDFName    string
	PDFPages   int
	SizeBytes  int64
	ArchiveKey string
	CreatedAt  time.Time
	DeletedAt  *time.Time
}

// Deleted reports whether the local files were swept.
func (g Generation) Deleted() bool {
	return g.DeletedAt != nil
}

// ListFilter narrows List. A zero Limit uses DefaultLimit.
type ListFilter struct {
	DocType string
	Limit   int
	Offset  int
}

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Normalized applies the default and maximum page size.
func (f ListFilter) Normalized() ListFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}
