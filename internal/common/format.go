package common

import (
	"fmt"
	"strings"
)

// DefaultWidth is the separator width for report output.
const DefaultWidth = 80

// PrintHeader prints a report title between separator lines.
func PrintHeader(title string, width int) {
	rule := strings.Repeat("=", width)
	fmt.Println("\n" + rule)
	fmt.Println(title)
	fmt.Println(rule)
}

// PrintFooter prints a report summary between separator lines.
func PrintFooter(message string, width int) {
	rule := strings.Repeat("=", width)
	fmt.Println("\n" + rule)
	fmt.Println(message)
	fmt.Println(rule + "\n")
}

// PrintBoxSeparator prints a box-drawing separator line for sub-sections.
func PrintBoxSeparator(width int) {
	fmt.Println("├" + strings.Repeat("─", width))
}

// BoxPrefix returns the box-drawing prefix for list items.
func BoxPrefix(isLast bool) string {
	if isLast {
		return "└  "
	}
	return "│  "
}
