package sink

import "github.com/pkg/errors"

// Writer archives one record.
type Writer interface {
	Write(Record) error
}

// BatchWriter can archive many records at once, e.g. in one transaction.
type BatchWriter interface {
	Writer
	WriteBatch([]Record) error
}

// BufferedWriter groups records into batches before handing them to base.
// It is not safe for concurrent use.
type BufferedWriter struct {
	base      Writer
	batchSize int

	buffer []Record
	closed bool
}

type BufferedOptions struct {
	BatchSize int
}

func NewBufferedWriter(base Writer, opts BufferedOptions) *BufferedWriter {
	batch := opts.BatchSize
	if batch <= 0 {
		batch = 1
	}
	return &BufferedWriter{
		base:      base,
		batchSize: batch,
		buffer:    make([]Record, 0, batch),
	}
}

func (b *BufferedWriter) Write(rec Record) error {
	if b.closed {
		return errors.New("buffered writer closed")
	}
	b.buffer = append(b.buffer, rec)
	if len(b.buffer) < b.batchSize {
		return nil
	}
	return b.Flush()
}

// Flush writes any buffered records.
func (b *BufferedWriter) Flush() error {
	if len(b.buffer) == 0 {
		return nil
	}
	recs := b.buffer
	b.buffer = make([]Record, 0, b.batchSize)
	return b.writeAll(recs)
}

// Close flushes the remaining records. Writes after Close fail.
func (b *BufferedWriter) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	return b.Flush()
}

func (b *BufferedWriter) writeAll(recs []Record) error {
	if bw, ok := b.base.(BatchWriter); ok && len(recs) > 1 {
		return bw.WriteBatch(recs)
	}
	for _, rec := range recs {
		if err := b.base.Write(rec); err != nil {
			return err
		}
	}
	return nil
}
