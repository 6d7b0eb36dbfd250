package model

// Paging describes the position of a listing page.
type Paging struct {
	PageNumber  int
	PageSize    int
	HasNext     bool
	HasPrevious bool
}

// NewPaging builds a Paging; HasPrevious is derived from the page number.
func NewPaging(pageNumber, pageSize int, hasNext bool) Paging {
	return Paging{
		PageNumber:  pageNumber,
		PageSize:    pageSize,
		HasNext:     hasNext,
		HasPrevious: pageNumber > 1,
	}
}

// PrevPage and NextPage are used by the listing template for links.
func (p Paging) PrevPage() int { return p.PageNumber - 1 }
func (p Paging) NextPage() int { return p.PageNumber + 1 }
