package transcript

import (
	"testing"

	"github.com/stretchr/testify/require"

	appErr "github.com/vidsage/vidsage/internal/pkg/errors"
)

func TestExtractVideoID(t *testing.T) {
	cases := []struct {
		name string
		url  string
		want string
	}{
		{"watch url", "https://www.youtube.com/watch?v=kCc8FmEb1nY", "kCc8FmEb1nY"},
		{"short url", "https://youtu.be/kCc8FmEb1nY", "kCc8FmEb1nY"},
		{"mobile host", "https://m.youtube.com/watch?v=kCc8FmEb1nY&t=42", "kCc8FmEb1nY"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractVideoID(tc.url)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestExtractVideoID_Rejects(t *testing.T) {
	for _, raw := range []string{
		"",
		"not a url",
		"https://example.com/watch?v=kCc8FmEb1nY",
		"https://www.youtube.com/watch?v=short",
		"https://youtu.be/",
	} {
		_, err := ExtractVideoID(raw)
		require.ErrorIs(t, err, appErr.ErrBadSourceURL, "url %q", raw)
	}
}

func TestParseTimedText(t *testing.T) {
	body := []byte(`<?xml version="1.0" encoding="utf-8"?>
<transcript>
  <text start="0.0" dur="2.5">hello &amp; welcome</text>
  <text start="2.5" dur="3.0">  </text>
  <text start="5.5" dur="2.0">to the show</text>
</transcript>`)
	segments, err := ParseTimedText(body)
	require.NoError(t, err)
	require.Equal(t, []string{"hello & welcome", "to the show"}, segments)
}

func TestParseTimedText_BadXML(t *testing.T) {
	_, err := ParseTimedText([]byte("<transcript><text>unclosed"))
	require.Error(t, err)
}
