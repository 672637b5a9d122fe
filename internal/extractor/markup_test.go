package extractor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkdown(t *testing.T) {
	src := "# Title\n\nSome *emphasis* and `code` here,\nwrapped line.\n\n" +
		"- first item\n- second item\n\n" +
		"```go\nfmt.Println(1)\n```\n\n" +
		"See <https://example.com> and [docs](https://x.test).\n"

	path := writeFile(t, "notes.md", []byte(src))
	res, err := Markdown{}.Extract(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t,
		"Title\nSome emphasis and code here, wrapped line.\nfirst item\nsecond item\nfmt.Println(1)\nSee https://example.com and docs.",
		res.Text)
}

func TestMarkdownEmpty(t *testing.T) {
	assert.Equal(t, "", markdownText([]byte("\n\n   \n")))
}

func TestHTML(t *testing.T) {
	src := `<!doctype html><html><head><title>Page</title>
<style>body { color: red }</style><script>var x = 1;</script></head>
<body><h1>Heading</h1>
<p>First   paragraph
  spans lines.</p><noscript>enable js</noscript>
<ul><li>one</li><li>two</li></ul></body></html>`

	path := writeFile(t, "page.html", []byte(src))
	res, err := HTML{}.Extract(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "Page Heading First paragraph spans lines. onetwo", res.Text)
	assert.NotContains(t, res.Text, "color")
	assert.NotContains(t, res.Text, "var x")
}
