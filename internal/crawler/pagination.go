package crawler

import (
	"strconv"
	"strings"
)

// DetectPageCount returns the highest page number advertised by the listing's
// pagination control, or 1 when there is no control or no numeric signal.
func DetectPageCount(doc Node, sel PaginationSelectors) int {
	maxPage := 1
	if doc == nil || sel.Region == "" {
		return maxPage
	}

	region, ok := doc.First(sel.Region)
	if !ok {
		return maxPage
	}

	if sel.Labelled != "" && sel.LabelPattern != nil {
		for _, control := range region.Find(sel.Labelled) {
			label, _ := control.Attr("aria-label")
			for _, m := range sel.LabelPattern.FindAllStringSubmatch(strings.ToLower(label), -1) {
				if n, err := strconv.Atoi(m[1]); err == nil && n > maxPage {
					maxPage = n
				}
			}
		}
	}

	if sel.Numbered != "" {
		for _, control := range region.Find(sel.Numbered) {
			if n, ok := pageNumber(control.Text()); ok && n > maxPage {
				maxPage = n
			}
		}
	}

	return maxPage
}

// pageNumber accepts text made only of ASCII digits
func pageNumber(text string) (int, bool) {
	if text == "" {
		return 0, false
	}
	for _, r := range text {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0, false
	}
	return n, true
}
