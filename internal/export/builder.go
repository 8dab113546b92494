// Package export collects converted comments and writes the archive file.
package export

import (
	"github.com/you/gnasty-chatconv/internal/convert"
	"github.com/you/gnasty-chatconv/internal/core"
)

// Builder accumulates comments in input order and owns the run's
// first-timestamp baseline. It never reorders comments.
type Builder struct {
	tr         *convert.Transformer
	base       convert.Baseline
	comments   []core.Comment
	lastMs     int64
	outOfOrder int
}

func NewBuilder(tr *convert.Transformer) *Builder {
	return &Builder{tr: tr, comments: []core.Comment{}}
}

// Add converts one raw line. Successful results are appended; failed ones
// are returned for the caller to log and count.
func (b *Builder) Add(lineNo int, raw string) convert.Result {
	res, next := b.tr.Line(lineNo, raw, b.base)
	if !res.OK() {
		return res
	}
	if len(b.comments) > 0 && res.SentMs < b.lastMs {
		b.outOfOrder++
	}
	b.base = next
	b.lastMs = res.SentMs
	b.comments = append(b.comments, res.Comment)
	return res
}

// Len is the number of comments collected so far.
func (b *Builder) Len() int { return len(b.comments) }

// OutOfOrder counts comments sent earlier than the comment before them.
func (b *Builder) OutOfOrder() int { return b.outOfOrder }

// Document wraps the collected comments with the streamer header taken from
// the first comment.
func (b *Builder) Document() core.Document {
	doc := core.Document{Comments: b.comments}
	if len(b.comments) > 0 {
		doc.Streamer = &core.Streamer{Name: b.tr.Channel(), ID: b.comments[0].ChannelID}
	}
	return doc
}
