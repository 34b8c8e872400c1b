package engine

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/grafov/m3u8"
)

// maxVariantHops master 嵌套的最大层数
const maxVariantHops = 3

// HLSParser 把 m3u8 地址解析成分片列表
type HLSParser struct {
	Client  *http.Client
	Headers http.Header
}

// IsPlaylist 根据地址或 Content-Type 判断是否为 m3u8
func IsPlaylist(rawURL, contentType string) bool {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "mpegurl") {
		return true
	}
	if u, err := url.Parse(rawURL); err == nil {
		return strings.HasSuffix(strings.ToLower(u.Path), ".m3u8")
	}
	return false
}

// Segments 返回媒体播放列表中各分片的绝对地址。
// master 列表会选择带宽最高的变体继续解析。
func (p *HLSParser) Segments(ctx context.Context, playlistURL string) ([]string, error) {
	current := playlistURL
	for hop := 0; hop < maxVariantHops; hop++ {
		playlist, listType, err := p.fetch(ctx, current)
		if err != nil {
			return nil, err
		}

		switch listType {
		case m3u8.MASTER:
			master := playlist.(*m3u8.MasterPlaylist)
			if len(master.Variants) == 0 {
				return nil, fmt.Errorf("master playlist %s has no variants", current)
			}
			variants := append([]*m3u8.Variant(nil), master.Variants...)
			sort.Slice(variants, func(i, j int) bool {
				return variants[i].Bandwidth > variants[j].Bandwidth
			})
			current = resolveURL(current, variants[0].URI)

		case m3u8.MEDIA:
			media := playlist.(*m3u8.MediaPlaylist)
			var segments []string
			for _, seg := range media.Segments {
				if seg == nil {
					continue
				}
				segments = append(segments, resolveURL(current, seg.URI))
			}
			if len(segments) == 0 {
				return nil, fmt.Errorf("media playlist %s has no segments", current)
			}
			return segments, nil
		}
	}
	return nil, fmt.Errorf("too many nested master playlists starting at %s", playlistURL)
}

func (p *HLSParser) fetch(ctx context.Context, rawURL string) (m3u8.Playlist, m3u8.ListType, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	for k, v := range p.Headers {
		req.Header[k] = v
	}

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, 0, fmt.Errorf("playlist %s: unexpected status %s", rawURL, resp.Status)
	}

	playlist, listType, err := m3u8.DecodeFrom(resp.Body, true)
	if err != nil {
		return nil, 0, fmt.Errorf("decode m3u8 %s: %w", rawURL, err)
	}
	return playlist, listType, nil
}

func resolveURL(base, ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if u.IsAbs() {
		return ref
	}
	baseU, err := url.Parse(base)
	if err != nil {
		return ref
	}
	return baseU.ResolveReference(u).String()
}
