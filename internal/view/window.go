package view

// DefaultRowSize is the row height estimate used when none is given.
const DefaultRowSize = 40

// Geometry is everything the window computation depends on.
type Geometry struct {
	Count          int
	RowSize        int
	ScrollOffset   int
	ViewportHeight int
	Overscan       int
}

// VirtualItem is one materialized row. Offset is absolute from the top of
// the scroll container, so rows can be mounted in any order.
type VirtualItem struct {
	Index  int
	Key    int
	Offset int
	Size   int
}

// Window is the derived slice of a list that intersects the viewport.
// Items covers indices [Start, End). ScrollOffset is the requested offset
// clamped to the scrollable range.
type Window struct {
	Start        int
	End          int
	Items        []VirtualItem
	TotalExtent  int
	ScrollOffset int
}

// ComputeWindow returns the minimal contiguous range of rows intersecting
// [ScrollOffset, ScrollOffset+ViewportHeight), widened by Overscan rows on
// each side.
func ComputeWindow(g Geometry) Window {
	rowSize := g.RowSize
	if rowSize <= 0 {
		rowSize = DefaultRowSize
	}
	if g.Count <= 0 {
		return Window{}
	}

	w := Window{TotalExtent: g.Count * rowSize}
	if g.ViewportHeight <= 0 {
		return w
	}

	scroll := g.ScrollOffset
	if maxScroll := w.TotalExtent - g.ViewportHeight; scroll > maxScroll {
		scroll = maxScroll
	}
	if scroll < 0 {
		scroll = 0
	}

	w.ScrollOffset = scroll

	overscan := max(g.Overscan, 0)
	start := scroll/rowSize - overscan
	end := (scroll+g.ViewportHeight+rowSize-1)/rowSize + overscan
	w.Start = max(start, 0)
	w.End = min(end, g.Count)

	w.Items = make([]VirtualItem, 0, w.End-w.Start)
	for i := w.Start; i < w.End; i++ {
		w.Items = append(w.Items, VirtualItem{
			Index:  i,
			Key:    i,
			Offset: i * rowSize,
			Size:   rowSize,
		})
	}
	return w
}

// Virtualizer keeps the current Geometry and recomputes the Window every
// time one of its inputs changes. Published windows are never modified.
type Virtualizer struct {
	geom   Geometry
	window Window
}

func NewVirtualizer(rowSize, overscan int) *Virtualizer {
	v := &Virtualizer{geom: Geometry{RowSize: rowSize, Overscan: overscan}}
	v.recompute()
	return v
}

func (v *Virtualizer) SetCount(n int) {
	if n == v.geom.Count {
		return
	}
	v.geom.Count = n
	v.recompute()
}

func (v *Virtualizer) SetRowSize(px int) {
	if px == v.geom.RowSize {
		return
	}
	v.geom.RowSize = px
	v.recompute()
}

func (v *Virtualizer) SetViewport(scrollOffset, height int) {
	if scrollOffset == v.geom.ScrollOffset && height == v.geom.ViewportHeight {
		return
	}
	v.geom.ScrollOffset = scrollOffset
	v.geom.ViewportHeight = height
	v.recompute()
}

func (v *Virtualizer) Geometry() Geometry { return v.geom }

func (v *Virtualizer) Window() Window { return v.window }

func (v *Virtualizer) recompute() {
	v.window = ComputeWindow(v.geom)
}
