package parse

import (
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

var stripPolicy = bluemonday.StrictPolicy()

var mdConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
	),
)

// StripHTML removes all markup from a fragment and collapses whitespace.
// Used on review bodies and any text destined for tokenization.
func StripHTML(fragment string) string {
	clean := stripPolicy.Sanitize(fragment)
	clean = html.UnescapeString(clean)
	return strings.Join(strings.Fields(clean), " ")
}

// HTMLToMarkdown converts a description block to markdown. If conversion
// fails or produces empty output, returns the stripped plain text instead.
func HTMLToMarkdown(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}
	result, err := mdConverter.ConvertString(fragment)
	if err != nil || strings.TrimSpace(result) == "" {
		return StripHTML(fragment)
	}
	return strings.TrimSpace(result)
}
