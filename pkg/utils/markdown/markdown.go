package markdown

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/russross/blackfriday/v2"
)

// Markdown wraps markdown source code and provides methods to render it.
type Markdown struct {
	// Source is the markdown source code.
	Source string
	// renderedHTML caches the HTML content rendered from the markdown source.
	renderedHTML *template.HTML
}

var (
	bfRenderer = blackfriday.NewHTMLRenderer(blackfriday.HTMLRendererParameters{
		Flags: blackfriday.Safelink | blackfriday.NofollowLinks | blackfriday.HrefTargetBlank,
	})
	bfExtensions = blackfriday.NoIntraEmphasis | blackfriday.Autolink | blackfriday.Strikethrough | blackfriday.SpaceHeadings
	policy       = bluemonday.UGCPolicy()

	linkTextEscaper = strings.NewReplacer(
		`\`, `\\`,
		`[`, `\[`,
		`]`, `\]`,
		"`", "\\`",
		`*`, `\*`,
		`_`, `\_`,
		"\r", " ",
		"\n", " ",
	)
)

func NewMarkdown(source string) *Markdown {
	return &Markdown{Source: source}
}

// ThumbnailLink builds the clickable thumbnail snippet
// [![title](imageURL)](linkURL).
func ThumbnailLink(title, imageURL, linkURL string) *Markdown {
	return NewMarkdown(fmt.Sprintf("[![%s](%s)](%s)", EscapeLinkText(title), imageURL, linkURL))
}

// EscapeLinkText escapes characters that would end or restyle markdown link
// text.
func EscapeLinkText(s string) string {
	return linkTextEscaper.Replace(s)
}

func (m *Markdown) String() string {
	return m.Source
}

// Render converts the Markdown Source into sanitized HTML.
func (m *Markdown) Render() template.HTML {
	if m.renderedHTML != nil {
		return *m.renderedHTML
	}

	unsafe := blackfriday.Run([]byte(m.Source),
		blackfriday.WithRenderer(bfRenderer),
		blackfriday.WithExtensions(bfExtensions),
	)
	safe := policy.SanitizeBytes(unsafe)
	html := template.HTML(bytes.TrimSpace(safe))
	m.renderedHTML = &html
	return html
}

// MarshalJSON encodes the markdown source as a JSON string.
func (m Markdown) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Source)
}
