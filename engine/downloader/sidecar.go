package downloader

import (
	"context"
	"fmt"

	"bilireel/engine"
)

// fetchCover 封面失败不影响主流程
func (c *Controller) fetchCover(ctx context.Context) {
	err := c.fetcher.Fetch(ctx, Request{
		URL:    c.desc.CoverURL,
		Dest:   c.desc.CoverPath,
		Header: c.baseHeader(),
	})
	if err != nil {
		c.logger.Printf("%s 封面下载失败: %v", c.desc.ID, err)
		return
	}
	c.logger.Printf("%s 封面已保存: %s", c.desc.ID, c.desc.CoverPath)
}

// fetchSubtitles 每条字幕单独一个协程，不阻塞后续阶段
func (c *Controller) fetchSubtitles(ctx context.Context) {
	for i, sub := range c.desc.Subtitles {
		lang := sub.Lang
		if lang == "" {
			lang = fmt.Sprintf("sub%d", i)
		}
		dest := c.desc.SidecarPath("." + lang + ".json")

		c.sidecars.Add(1)
		go func(url, dest string) {
			defer c.sidecars.Done()
			err := c.fetcher.Fetch(ctx, Request{URL: url, Dest: dest, Header: c.baseHeader()})
			if err != nil {
				c.logger.Printf("%s 字幕下载失败 (%s): %v", c.desc.ID, lang, err)
				return
			}
			c.logger.Printf("%s 字幕已保存: %s", c.desc.ID, dest)
		}(sub.URL, dest)
	}
}

// WaitSidecars 等待字幕协程结束
func (c *Controller) WaitSidecars() {
	c.sidecars.Wait()
}

// requestDanmaku 弹幕转换由前端完成，这里只发请求
func (c *Controller) requestDanmaku() {
	c.reporter.RequestDanmaku(engine.DanmakuRequest{
		ID:    c.desc.ID,
		Cid:   c.desc.Cid,
		Title: c.desc.Title,
		Path:  c.desc.SidecarPath(".ass"),
	})
}
