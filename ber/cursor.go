package ber

// Cursor is a read position over a captured buffer.
//
// A cursor knows two ends: the captured end (bytes that actually exist) and
// the reported end (bytes the protocol claims). They differ for truncated
// captures. Reads are validated against the captured end only; the reported
// end lets callers tell "the capture stopped here" from "the encoding lies".
//
// Cursor is a value type. Decoding functions return new offsets and never
// mutate the cursor they were given.
type Cursor struct {
	buf      []byte
	off      int
	end      int
	reported int
}

// NewCursor returns a cursor over a fully captured message.
func NewCursor(data []byte) Cursor {
	return Cursor{buf: data, end: len(data), reported: len(data)}
}

// NewTruncatedCursor returns a cursor over data whose original length on the
// wire was reportedLength. A reportedLength smaller than len(data) is ignored.
func NewTruncatedCursor(data []byte, reportedLength int) Cursor {
	c := NewCursor(data)
	if reportedLength > c.reported {
		c.reported = reportedLength
	}
	return c
}

// Offset is the absolute position of the cursor in the captured buffer.
func (c Cursor) Offset() int { return c.off }

// At returns the same view positioned at off.
func (c Cursor) At(off int) Cursor {
	c.off = off
	return c
}

// Remaining returns the number of captured bytes left in the view.
func (c Cursor) Remaining() int {
	if c.off >= c.end {
		return 0
	}
	return c.end - c.off
}

// ReportedRemaining returns the number of bytes the view claims are left,
// captured or not.
func (c Cursor) ReportedRemaining() int {
	if c.off >= c.reported {
		return 0
	}
	return c.reported - c.off
}

// Done reports whether the view has no more reported bytes.
func (c Cursor) Done() bool { return c.ReportedRemaining() == 0 }

// Short reports whether the capture ends before the reported end of the view.
func (c Cursor) Short() bool { return c.Remaining() < c.ReportedRemaining() }

// Peek returns the next byte without advancing.
func (c Cursor) Peek() (byte, bool) {
	if c.Remaining() == 0 {
		return 0, false
	}
	return c.buf[c.off], true
}

// Bytes returns the captured bytes left in the view.
func (c Cursor) Bytes() []byte {
	if c.Remaining() == 0 {
		return nil
	}
	return c.buf[c.off:c.end]
}

// Limit returns a view of the next n reported bytes. The captured end of the
// child never exceeds the captured end of c.
func (c Cursor) Limit(n int) Cursor {
	child := c
	child.reported = c.off + n
	if child.reported < child.end {
		child.end = child.reported
	}
	return child
}
