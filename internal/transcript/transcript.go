package transcript

import (
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	appErr "github.com/vidsage/vidsage/internal/pkg/errors"
)

// Provider fetches the ordered transcript segments for one video.
type Provider interface {
	Fetch(ctx context.Context, videoID string) ([]string, error)
}

// ExtractVideoID pulls the 11-character video id out of a YouTube URL.
func ExtractVideoID(raw string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("%w: %s", appErr.ErrBadSourceURL, raw)
	}
	host := strings.ToLower(parsed.Host)
	var id string
	switch {
	case strings.HasSuffix(host, "youtube.com"):
		id = parsed.Query().Get("v")
	case strings.HasSuffix(host, "youtu.be"):
		id = strings.Trim(parsed.Path, "/")
	default:
		return "", fmt.Errorf("%w: unsupported host %s", appErr.ErrBadSourceURL, host)
	}
	if len(id) != 11 {
		return "", fmt.Errorf("%w: bad video id", appErr.ErrBadSourceURL)
	}
	return id, nil
}

const defaultTimedTextURL = "https://video.google.com/timedtext"

type timedTextResponse struct {
	XMLName xml.Name `xml:"transcript"`
	Texts   []struct {
		Value string `xml:",chardata"`
	} `xml:"text"`
}

// HTTPProvider pulls captions from the public timedtext endpoint.
type HTTPProvider struct {
	baseURL  string
	language string
	maxChars int
	client   *http.Client
}

func NewHTTPProvider(maxChars int) *HTTPProvider {
	return &HTTPProvider{
		baseURL:  defaultTimedTextURL,
		language: "en",
		maxChars: maxChars,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *HTTPProvider) Fetch(ctx context.Context, videoID string) ([]string, error) {
	endpoint := fmt.Sprintf("%s?lang=%s&v=%s", p.baseURL, url.QueryEscape(p.language), url.QueryEscape(videoID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch transcript: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, appErr.ErrNoTranscript
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch transcript: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, appErr.ErrNoTranscript
	}
	segments, err := ParseTimedText(body)
	if err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return nil, appErr.ErrNoTranscript
	}
	total := 0
	for _, seg := range segments {
		total += len(seg)
	}
	if p.maxChars > 0 && total > p.maxChars {
		return nil, fmt.Errorf("%w: %d chars (max %d)", appErr.ErrSourceTooLarge, total, p.maxChars)
	}
	return segments, nil
}

// ParseTimedText decodes the timedtext XML body into ordered segments.
func ParseTimedText(body []byte) ([]string, error) {
	var parsed timedTextResponse
	if err := xml.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}
	segments := make([]string, 0, len(parsed.Texts))
	for _, t := range parsed.Texts {
		text := strings.TrimSpace(html.UnescapeString(t.Value))
		if text == "" {
			continue
		}
		segments = append(segments, text)
	}
	return segments, nil
}
