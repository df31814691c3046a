package retrieval

import (
	"fmt"
	"strings"

	"github.com/bookrag/bookrag/internal/catalog"
)

// Result texts returned instead of a formatted list.
const (
	NoResults        = "No results found."
	NoKeywordResults = "No results found for %q."
	FilteredOut      = "Found %d results for %q, but none matched the price filter (max %d)."
	DetailNotFound   = "No catalog item found for %q."
)

const excerptRunes = 150

func renderResults(results []Result) string {
	var sb strings.Builder
	for i, r := range results {
		if i > 0 {
			sb.WriteString("\n")
		}
		badge := "[indexed]"
		if r.Provenance == ProvenanceLive {
			badge = "[live]"
		}
		fmt.Fprintf(&sb, "%d. %s %s%s\n", i+1, r.Item.Title, badge, tierBadge(r.Tier))
		fmt.Fprintf(&sb, "   Author: %s | Category: %s\n", r.Item.Author, r.Item.Category)
		fmt.Fprintf(&sb, "   Popularity: %d | Price: %d won", r.Popularity(), r.Price())
		if r.Live != nil {
			fmt.Fprintf(&sb, " | Used: %s", usedAnnotation(r.Live.UsedCount, r.Live.UsedMinPrice))
		}
		sb.WriteString("\n")
		fmt.Fprintf(&sb, "   Rating: %.1f | Published: %s\n", r.Item.Rating, formatDate(r.Item.PubDate))
		fmt.Fprintf(&sb, "   Description: %s\n", excerpt(r.Item.Description))
	}
	return sb.String()
}

func renderKeyword(items []catalog.Item) string {
	var sb strings.Builder
	for i, it := range items {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "%d. %s [live]%s\n", i+1, it.Title, tierBadge(TierFor(it.Popularity)))
		fmt.Fprintf(&sb, "   Author: %s | Category: %s\n", it.Author, it.Category)
		fmt.Fprintf(&sb, "   Popularity: %d | Price: %d won | Used: %s\n",
			it.Popularity, it.Price, usedAnnotation(it.UsedCount, it.UsedMinPrice))
		fmt.Fprintf(&sb, "   ISBN: %s\n", it.ID)
		fmt.Fprintf(&sb, "   Description: %s\n", excerpt(it.Description))
	}
	return sb.String()
}

func renderDetail(it catalog.Item) string {
	ebook := "not available"
	if it.EbookAvailable {
		ebook = "available"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Title: %s\n", it.Title)
	fmt.Fprintf(&sb, "Author: %s\n", it.Author)
	fmt.Fprintf(&sb, "ISBN: %s\n", it.ID)
	fmt.Fprintf(&sb, "Rating: %.1f\n", it.Rating)
	fmt.Fprintf(&sb, "E-book: %s\n", ebook)
	fmt.Fprintf(&sb, "Used copies: %d\n", it.UsedCount)
	fmt.Fprintf(&sb, "Description: %s\n", excerpt(it.Description))
	if it.Link != "" {
		fmt.Fprintf(&sb, "Link: %s\n", it.Link)
	}
	return sb.String()
}

func tierBadge(t Tier) string {
	switch t {
	case TierBestseller:
		return " [bestseller]"
	case TierPopular:
		return " [popular]"
	default:
		return ""
	}
}

func usedAnnotation(count, minPrice int) string {
	if count <= 0 {
		return "no secondary stock"
	}
	return fmt.Sprintf("%d used from %d won", count, minPrice)
}

// excerpt cuts s at exactly excerptRunes runes.
func excerpt(s string) string {
	r := []rune(s)
	if len(r) <= excerptRunes {
		return s
	}
	return string(r[:excerptRunes])
}

// formatDate renders a YYYYMMDD integer as YYYY-MM-DD.
func formatDate(d int) string {
	if d < 10000101 || d > 99991231 {
		return "unknown"
	}
	return fmt.Sprintf("%04d-%02d-%02d", d/10000, d/100%100, d%100)
}
