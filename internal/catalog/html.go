package catalog

import (
	"html"
	"net/url"
	"regexp"
	"strings"

	"github.com/go-shiori/go-readability"
)

var (
	reScript   = regexp.MustCompile(`(?is)<script[\s\S]*?</script>`)
	reStyle    = regexp.MustCompile(`(?is)<style[\s\S]*?</style>`)
	reTags     = regexp.MustCompile(`<[^>]+>`)
	reSpaces   = regexp.MustCompile(`\s+`)
	reLikeHTML = regexp.MustCompile(`<[a-zA-Z/][^>]*>`)
)

// cleanDescription turns a catalog description, which may carry HTML markup
// or escaped entities, into a single line of plain text.
func cleanDescription(desc string, base *url.URL) string {
	desc = html.UnescapeString(strings.TrimSpace(desc))
	if desc == "" || !reLikeHTML.MatchString(desc) {
		return reSpaces.ReplaceAllString(desc, " ")
	}

	if base == nil {
		base = &url.URL{Scheme: "https", Host: "catalog.invalid"}
	}
	if article, err := readability.FromReader(strings.NewReader(desc), base); err == nil {
		if text := strings.TrimSpace(article.TextContent); text != "" {
			return reSpaces.ReplaceAllString(text, " ")
		}
	}
	return stripHTMLTags(desc)
}

// stripHTMLTags removes script/style blocks and tags, collapsing whitespace.
func stripHTMLTags(text string) string {
	text = reScript.ReplaceAllString(text, "")
	text = reStyle.ReplaceAllString(text, "")
	text = reTags.ReplaceAllString(text, " ")
	text = reSpaces.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
