package qq

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultPortraitURL = "https://r.qzone.qq.com/fcg-bin/cgi_get_portrait.fcg"
	defaultAvatarURL   = "https://q1.qlogo.cn/g?b=qq&nk=%s&s=640"
)

// Profile is the looked-up third-party identity.
type Profile struct {
	Nickname  string
	AvatarURL string
}

// Client looks up nickname and avatar for an external id. The portrait
// endpoint answers with a JSONP envelope; the payload is parsed with an
// explicit failure on malformed responses instead of blind string slicing.
type Client struct {
	http        *http.Client
	portraitURL string
	avatarURL   string
}

// NewClient creates a lookup client against the default endpoints.
func NewClient() *Client {
	return &Client{
		http:        &http.Client{Timeout: 10 * time.Second},
		portraitURL: defaultPortraitURL,
		avatarURL:   defaultAvatarURL,
	}
}

// NewClientWithBase creates a lookup client against custom endpoints, used
// by tests.
func NewClientWithBase(httpClient *http.Client, portraitURL, avatarURL string) *Client {
	return &Client{
		http:        httpClient,
		portraitURL: portraitURL,
		avatarURL:   avatarURL,
	}
}

// Lookup fetches the profile for the external id. A transport failure or a
// malformed payload is returned as an error; the caller decides whether an
// empty nickname is acceptable.
func (c *Client) Lookup(ctx context.Context, id string) (Profile, error) {
	endpoint := c.portraitURL + "?uins=" + url.QueryEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Profile{}, fmt.Errorf("build portrait request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("fetch portrait: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Profile{}, fmt.Errorf("read portrait response: %w", err)
	}

	nickname, err := parsePortrait(string(body))
	if err != nil {
		return Profile{}, err
	}

	return Profile{
		Nickname:  nickname,
		AvatarURL: c.AvatarFor(id),
	}, nil
}

// AvatarFor derives the avatar URL for an external id; it needs no lookup.
func (c *Client) AvatarFor(id string) string {
	return fmt.Sprintf(c.avatarURL, id)
}

// parsePortrait extracts the nickname from the JSONP envelope
// portraitCallBack({"<uin>": [...]}). The nickname sits at index 6 of the
// per-uin array, falling back to index 0.
func parsePortrait(payload string) (string, error) {
	start := strings.Index(payload, "(")
	end := strings.LastIndex(payload, ")")
	if start < 0 || end <= start {
		return "", fmt.Errorf("portrait payload is not JSONP")
	}

	var envelope map[string][]interface{}
	if err := json.Unmarshal([]byte(payload[start+1:end]), &envelope); err != nil {
		return "", fmt.Errorf("decode portrait payload: %w", err)
	}

	for _, fields := range envelope {
		if len(fields) == 0 {
			return "", fmt.Errorf("portrait payload has empty field list")
		}
		if len(fields) > 6 {
			if name, ok := fields[6].(string); ok && name != "" {
				return name, nil
			}
		}
		if name, ok := fields[0].(string); ok {
			return name, nil
		}
		return "", nil
	}
	return "", fmt.Errorf("portrait payload has no entries")
}
