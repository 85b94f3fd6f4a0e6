package document

import (
	"regexp"
	"strings"
)

// element is one extracted unit of a document, usually a page.
type element struct {
	Text string
	Page int
}

type piece struct {
	Text string
	Page int
}

// chunkWords combines the elements and cuts them into runs of at most size words. Each
// piece records the page its first word came from.
func chunkWords(elems []element, size int) []piece {
	type word struct {
		w    string
		page int
	}
	var words []word
	for _, e := range elems {
		for _, w := range strings.Fields(e.Text) {
			words = append(words, word{w: w, page: e.Page})
		}
	}
	var out []piece
	for start := 0; start < len(words); start += size {
		end := min(start+size, len(words))
		parts := make([]string, 0, end-start)
		for _, w := range words[start:end] {
			parts = append(parts, w.w)
		}
		out = append(out, piece{Text: strings.Join(parts, " "), Page: words[start].page})
	}
	return out
}

// combine joins element texts with blank lines.
func combine(elems []element) string {
	parts := make([]string, 0, len(elems))
	for _, e := range elems {
		parts = append(parts, e.Text)
	}
	return strings.Join(parts, "\n\n")
}

var referenceHeadings = map[string]struct{}{
	"references":   {},
	"bibliography": {},
	"works cited":  {},
}

// dropReferences truncates the document at the first reference heading line.
func dropReferences(elems []element) []element {
	for i, e := range elems {
		lines := strings.Split(e.Text, "\n")
		for j, ln := range lines {
			key := strings.ToLower(strings.TrimSpace(strings.Trim(strings.TrimSpace(ln), "#:")))
			if _, ok := referenceHeadings[key]; !ok {
				continue
			}
			out := append([]element(nil), elems[:i]...)
			if head := strings.TrimSpace(strings.Join(lines[:j], "\n")); head != "" {
				out = append(out, element{Text: head, Page: e.Page})
			}
			return out
		}
	}
	return elems
}

func dropEmpty(elems []element) []element {
	out := elems[:0:0]
	for _, e := range elems {
		if strings.TrimSpace(e.Text) != "" {
			out = append(out, e)
		}
	}
	return out
}

// dropPageFurniture removes first and last lines that repeat on most pages, such as
// running headers and page footers.
func dropPageFurniture(elems []element) []element {
	if len(elems) < 3 {
		return elems
	}
	counts := map[string]int{}
	for _, e := range elems {
		lines := strings.Split(e.Text, "\n")
		seen := map[string]bool{}
		for _, ln := range []string{lines[0], lines[len(lines)-1]} {
			key := furnitureKey(ln)
			if key != "" && !seen[key] {
				seen[key] = true
				counts[key]++
			}
		}
	}
	out := make([]element, len(elems))
	for i, e := range elems {
		lines := strings.Split(e.Text, "\n")
		kept := lines[:0:0]
		for j, ln := range lines {
			edge := j == 0 || j == len(lines)-1
			if edge && counts[furnitureKey(ln)]*2 > len(elems) {
				continue
			}
			kept = append(kept, ln)
		}
		out[i] = element{Text: strings.Join(kept, "\n"), Page: e.Page}
	}
	return out
}

var reDigits = regexp.MustCompile(`\d+`)

// furnitureKey ignores page numbers so "Page 3 of 9" matches across pages.
func furnitureKey(line string) string {
	return reDigits.ReplaceAllString(strings.ToLower(strings.TrimSpace(line)), "#")
}
