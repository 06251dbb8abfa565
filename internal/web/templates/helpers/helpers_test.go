package helpers

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNavActive(t *testing.T) {
	t.Parallel()

	tests := []struct {
		current string
		pattern string
		prefix  bool
		want    bool
	}{
		{current: "/", pattern: "/", prefix: true, want: true},
		{current: "/dashboard", pattern: "/", prefix: true, want: false},
		{current: "/dashboard/", pattern: "/dashboard", want: true},
		{current: "/dashboard/runs", pattern: "/dashboard", prefix: true, want: true},
		{current: "/dashboard/runs", pattern: "/dashboard", want: false},
		{current: "/dashboards", pattern: "/dashboard", prefix: true, want: false},
		{current: "", pattern: "//", want: true},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, NavActive(tc.current, tc.pattern, tc.prefix), "%s vs %s", tc.current, tc.pattern)
	}
}

func TestWriterEscapes(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	hw := NewWriter(&buf)
	hw.Raw("<p>")
	hw.Text(`<b>"x"</b>`)
	hw.Rawf(`<a href="%s">`, `/?a=1&b="2"`)
	hw.Component(context.Background(), TextComponent("&"))
	require.NoError(t, hw.Err())
	require.Equal(t, `<p>&lt;b&gt;&#34;x&#34;&lt;/b&gt;<a href="/?a=1&amp;b=&#34;2&#34;">&amp;`, buf.String())
}

func TestIsProductionAndDate(t *testing.T) {
	t.Parallel()

	require.True(t, IsProduction(" Production "))
	require.True(t, IsProduction("prod"))
	require.False(t, IsProduction("staging"))

	require.Empty(t, Date(time.Time{}, ""))
	require.Equal(t, "2025-01-01", Date(time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC), ""))
}
