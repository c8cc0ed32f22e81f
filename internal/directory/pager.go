package directory

// PageLink is one entry of a pagination control.
type PageLink struct {
	Page     int  `json:"page,omitempty"`
	Current  bool `json:"current,omitempty"`
	Ellipsis bool `json:"ellipsis,omitempty"`
}

const windowSize = 5

// PageWindow returns up to five consecutive pages around current.
func PageWindow(current, total int) []PageLink {
	if total <= 0 {
		return nil
	}
	current = min(max(current, 1), total)
	start := max(1, current-windowSize/2)
	end := min(total, start+windowSize-1)
	start = max(1, end-windowSize+1)
	links := make([]PageLink, 0, end-start+1)
	for p := start; p <= end; p++ {
		links = append(links, PageLink{Page: p, Current: p == current})
	}
	return links
}

// ReferralLinks returns first, last and the neighbours of current, with ellipses
// for the gaps: 1 … c-1 c c+1 … n. Up to five pages are listed without gaps.
func ReferralLinks(current, total int) []PageLink {
	if total <= 0 {
		return nil
	}
	current = min(max(current, 1), total)
	if total <= windowSize {
		links := make([]PageLink, 0, total)
		for p := 1; p <= total; p++ {
			links = append(links, PageLink{Page: p, Current: p == current})
		}
		return links
	}
	links := []PageLink{{Page: 1, Current: current == 1}}
	lo := max(2, current-1)
	hi := min(total-1, current+1)
	if lo > 2 {
		links = append(links, PageLink{Ellipsis: true})
	}
	for p := lo; p <= hi; p++ {
		links = append(links, PageLink{Page: p, Current: p == current})
	}
	if hi < total-1 {
		links = append(links, PageLink{Ellipsis: true})
	}
	return append(links, PageLink{Page: total, Current: current == total})
}
