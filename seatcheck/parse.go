package seatcheck

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

// Selectors names the CSS classes that mark the schedule table rows and
// their cells. The reservation site renders the schedule as markup, not
// an API, so these track the page structure.
type Selectors struct {
	Row         string
	StartTime   string
	RemainSeats string
	Status      string
}

// DefaultSelectors matches the current route-info page layout.
var DefaultSelectors = Selectors{
	Row:         "bus_time_box",
	StartTime:   "start_time",
	RemainSeats: "remain_seat",
	Status:      "seat_state",
}

// scheduleRow is one departure row scraped from the page.
type scheduleRow struct {
	Time        string
	RemainSeats string
	Status      string
}

// parseSchedule extracts the departure rows from a route-info page.
// A page with no matching rows parses to an empty slice, not an error.
func parseSchedule(r io.Reader, sel Selectors) ([]scheduleRow, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	var rows []scheduleRow
	for _, node := range findByClass(root, sel.Row) {
		row := scheduleRow{
			Time:        normalizeTime(classText(node, sel.StartTime)),
			RemainSeats: strings.TrimSpace(classText(node, sel.RemainSeats)),
			Status:      strings.TrimSpace(classText(node, sel.Status)),
		}
		if row.Time == "" {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// classText returns the trimmed text of the first descendant carrying
// the class, or "" when absent.
func classText(n *html.Node, class string) string {
	nodes := findByClass(n, class)
	if len(nodes) == 0 {
		return ""
	}
	return strings.TrimSpace(textContent(nodes[0]))
}

// normalizeTime strips all whitespace so "09 : 00" compares to "09:00".
func normalizeTime(s string) string {
	return strings.Join(strings.Fields(s), "")
}

func findByClass(n *html.Node, class string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && hasClass(node, class) {
			out = append(out, node)
			// Matching nodes do not nest in the schedule table.
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func hasClass(n *html.Node, class string) bool {
	for _, attr := range n.Attr {
		if attr.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(attr.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			b.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
