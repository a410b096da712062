package catalog

import "chillistore/internal/models"

const (
	// InitialWindow is how many matches a shopper sees before revealing more.
	InitialWindow = 12
	// RevealIncrement is how many more matches each "reveal more" shows.
	RevealIncrement = 12
)

// Window is the number of matches currently revealed.
type Window struct {
	size int
}

// NewWindow returns the initial reveal window.
func NewWindow() Window {
	return Window{size: InitialWindow}
}

// WindowOf returns a window of the given size, never smaller than InitialWindow.
func WindowOf(size int) Window {
	if size < InitialWindow {
		size = InitialWindow
	}
	return Window{size: size}
}

// Size is the number of matches the window shows at most.
func (w Window) Size() int {
	if w.size <= 0 {
		return InitialWindow
	}
	return w.size
}

// RevealMore grows the window by RevealIncrement.
func (w Window) RevealMore() Window {
	return Window{size: w.Size() + RevealIncrement}
}

// Page is the visible slice of a Result.
type Page struct {
	Items   []models.Product
	Total   int
	HasMore bool
}

// Apply cuts r down to the window.
func (w Window) Apply(r Result) Page {
	n := w.Size()
	if n > len(r.Items) {
		n = len(r.Items)
	}
	return Page{
		Items:   r.Items[:n:n],
		Total:   r.Total,
		HasMore: r.Total > w.Size(),
	}
}
