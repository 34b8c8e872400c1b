package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// segmentReader 把 m3u8 的 TS 分片按顺序串成一个流，
// 每次只保持一个分片连接。
type segmentReader struct {
	ctx     context.Context
	fetcher *Fetcher
	header  http.Header

	segments []string
	next     int
	cur      io.ReadCloser
}

func newSegmentReader(ctx context.Context, f *Fetcher, header http.Header, segments []string) *segmentReader {
	return &segmentReader{
		ctx:      ctx,
		fetcher:  f,
		header:   header,
		segments: segments,
	}
}

func (r *segmentReader) Read(p []byte) (int, error) {
	for {
		if r.cur == nil {
			if r.next >= len(r.segments) {
				return 0, io.EOF
			}
			resp, err := r.fetcher.get(r.ctx, r.segments[r.next], r.header)
			if err != nil {
				return 0, fmt.Errorf("segment %d: %w", r.next, err)
			}
			r.cur = resp.Body
			r.next++
		}

		n, err := r.cur.Read(p)
		if err == io.EOF {
			r.cur.Close()
			r.cur = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (r *segmentReader) Close() error {
	if r.cur == nil {
		return nil
	}
	err := r.cur.Close()
	r.cur = nil
	return err
}
