package cmdutils

import (
	"fmt"
	"io"
)

const logo = "📚"

// PrintResponse writes an assistant reply to w under the bookrag banner.
func PrintResponse(w io.Writer, text string) {
	if text == "" {
		return
	}

	fmt.Fprintf(w, "\n%s bookrag\n%s\n\n", logo, text)
}
