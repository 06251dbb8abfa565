package testutil

import (
	"bytes"
	"io"
	"net/http"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

// ParseHTML parses body into a goquery document for assertions.
func ParseHTML(t testing.TB, body []byte) *goquery.Document {
	t.Helper()

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	require.NoError(t, err, "parse html")
	return doc
}

// ReadDocument drains resp and parses it as HTML.
func ReadDocument(t testing.TB, resp *http.Response) *goquery.Document {
	t.Helper()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return ParseHTML(t, body)
}
