package extract

import "github.com/spherical/pdf-describer/internal/domain"

// ResolveRange picks the pages a run will visit. An explicit range is clamped
// to the document; otherwise the run starts at the resume point. The result is
// rejected when start > end.
func ResolveRange(opts domain.RunOptions, pageCount, resumePage int) (domain.PageRange, error) {
	opts = opts.WithDefaults()

	r := domain.PageRange{
		End:      min(pageCount, opts.EndPage),
		Explicit: opts.IsExplicitRange(),
	}
	if r.Explicit {
		r.Start = max(1, opts.StartPage)
	} else {
		r.Start = max(resumePage, opts.StartPage)
	}

	if r.Start > r.End {
		return r, domain.RangeError(r.Start, r.End)
	}
	return r, nil
}
