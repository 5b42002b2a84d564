package domain

import (
	"fmt"
	"time"
)

// for debug
func (p *Post) String() string {
	img := "-"
	if p.ImagePath != nil {
		img = *p.ImagePath
	}
	return fmt.Sprintf("[id:%d, author:%s, text:%s, image:%s, created:%s]",
		p.Id, p.Author, p.Text, img, p.CreatedAt.Format(time.StampMilli))
}

func (t *Thread) String() string {
	return fmt.Sprintf("[id:%d, board:%s, posts:%v, created:%s]",
		t.Id, t.Board, []int64(t.PostIds), t.CreatedAt.Format(time.StampMilli))
}
