package ber

import (
	"errors"
	"fmt"
)

// DefaultMaxDepth is the nesting limit used when a Context does not set one.
const DefaultMaxDepth = 32

// Context is the state of one decode call tree.
//
// It bounds the nesting of constructed elements, so recursive grammars
// cannot exhaust the stack, and carries Private, a scratch object owned
// by the caller for the lifetime of one message. A Context must not be
// shared between concurrent decodes.
type Context struct {
	MaxDepth int
	Private  any

	depth int
}

// NewContext returns a context with the given limit and private data.
// A non-positive limit means DefaultMaxDepth.
func NewContext(maxDepth int, private any) *Context {
	return &Context{MaxDepth: maxDepth, Private: private}
}

// Depth returns the current nesting level.
func (ctx *Context) Depth() int { return ctx.depth }

func (ctx *Context) limit() int {
	if ctx.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return ctx.MaxDepth
}

// Decode decodes one element of type t at the cursor.
//
// It returns the value, the offset following the element and an error. On
// error the value is the part of the tree decoded so far and may be nil.
// The returned offset is always the end of the declared element when its
// header could be read.
func Decode(t *Type, c Cursor, ctx *Context) (*Value, int, error) {
	if ctx == nil {
		ctx = &Context{}
	}
	return decode(t, c, ctx)
}

func decode(t *Type, c Cursor, ctx *Context) (*Value, int, error) {
	if t.Kind == KindChoice && t.Tag == nil {
		return decodeChoice(t, c, ctx)
	}

	h, l, pos, err := DecodeHeader(c)
	if err != nil {
		return nil, c.off, withDetail(err, t.Name)
	}
	if t.Tag != nil && !h.Is(*t.Tag) {
		return nil, c.off, newError(ErrTagMismatch, c.off,
			fmt.Sprintf("%s: expected %s, got %s", t.Name, *t.Tag, h))
	}
	if !l.Definite() {
		return nil, c.off, newError(ErrInvalidEncoding, c.off, t.Name+": indefinite length")
	}
	n := int(l)
	next := pos + n
	v := &Value{
		Name:   t.Name,
		Kind:   t.Kind,
		Header: h,
		Offset: c.off,
		Length: next - c.off,
	}
	if n > c.At(pos).ReportedRemaining() {
		return v, next, newError(ErrTruncated, pos,
			fmt.Sprintf("%s: length %d exceeds %d remaining", t.Name, n, c.At(pos).ReportedRemaining()))
	}
	content := c.At(pos).Limit(n)

	if t.Kind.Primitive() || t.Kind == KindAny {
		if h.Constructed && t.Kind.Primitive() {
			return v, next, newError(ErrInvalidEncoding, c.off, t.Name+": constructed encoding of a primitive type")
		}
		raw, _, err := ReadOctets(content, n)
		if err != nil {
			return v, next, withDetail(err, t.Name)
		}
		if err := decodeContent(t, v, raw); err != nil {
			return v, next, newError(unwrapSentinel(err), pos, t.Name+": "+err.Error())
		}
		if t.Hook != nil {
			t.Hook(ctx, v)
		}
		return v, next, nil
	}

	if !h.Constructed {
		return v, next, newError(ErrInvalidEncoding, c.off, t.Name+": primitive encoding of a constructed type")
	}
	if ctx.depth >= ctx.limit() {
		return v, next, newError(ErrRecursionLimit, c.off,
			fmt.Sprintf("%s: depth %d", t.Name, ctx.depth+1))
	}
	ctx.depth++
	defer func() { ctx.depth-- }()

	switch t.Kind {
	case KindSequence:
		err = decodeSequence(t, v, content, ctx)
	case KindSet:
		err = decodeSet(t, v, content, ctx)
	case KindSequenceOf:
		err = decodeSequenceOf(t, v, content, ctx)
	case KindExplicit:
		err = decodeExplicit(t, v, content, ctx)
	default:
		err = newError(ErrInvalidEncoding, c.off, "unsupported kind "+t.Kind.String())
	}
	if err != nil {
		return v, next, err
	}
	if t.Hook != nil {
		t.Hook(ctx, v)
	}
	return v, next, nil
}

func decodeChoice(t *Type, c Cursor, ctx *Context) (*Value, int, error) {
	h, _, err := DecodeTag(c)
	if err != nil {
		return nil, c.off, withDetail(err, t.Name)
	}
	i := t.alternative(h, 0)
	if i < 0 {
		return nil, c.off, newError(ErrTagMismatch, c.off,
			fmt.Sprintf("%s: no alternative for %s", t.Name, h))
	}
	alt := t.Alternatives[i]
	inner, next, err := decode(alt.Type, c, ctx)
	if inner != nil {
		inner.Name = alt.Name
	}
	v := &Value{
		Name:   t.Name,
		Kind:   KindChoice,
		Header: h,
		Offset: c.off,
		Length: next - c.off,
		Choice: i,
	}
	if inner != nil {
		v.Header = inner.Header
		v.Length = inner.Length
		v.Children = []*Value{inner}
	}
	if err != nil {
		return v, next, err
	}
	if t.Hook != nil {
		t.Hook(ctx, v)
	}
	return v, next, nil
}

func decodeSequence(t *Type, v *Value, c Cursor, ctx *Context) error {
	for _, f := range t.Fields {
		if c.Done() {
			if f.Optional {
				continue
			}
			return newError(ErrTagMismatch, c.off, fmt.Sprintf("%s: missing %s", t.Name, f.Name))
		}
		h, _, err := DecodeTag(c)
		if err != nil {
			return withDetail(err, t.Name+"."+f.Name)
		}
		if !f.Type.Matches(h) {
			if f.Optional {
				continue
			}
			return newError(ErrTagMismatch, c.off,
				fmt.Sprintf("%s.%s: unexpected %s", t.Name, f.Name, h))
		}
		child, next, err := decodeField(f, c, ctx)
		if child != nil {
			v.Children = append(v.Children, child)
		}
		if err != nil {
			return err
		}
		c = c.At(next)
	}
	return skipUnknown(t, v, c)
}

func decodeSet(t *Type, v *Value, c Cursor, ctx *Context) error {
	seen := make([]bool, len(t.Fields))
	for !c.Done() {
		h, _, err := DecodeTag(c)
		if err != nil {
			return withDetail(err, t.Name)
		}
		idx := -1
		for i, f := range t.Fields {
			if !seen[i] && f.Type.Matches(h) {
				idx = i
				break
			}
		}
		if idx < 0 {
			if err := skipUnknown(t, v, c); err != nil {
				return err
			}
			break
		}
		seen[idx] = true
		child, next, err := decodeField(t.Fields[idx], c, ctx)
		if child != nil {
			v.Children = append(v.Children, child)
		}
		if err != nil {
			return err
		}
		c = c.At(next)
	}
	for i, f := range t.Fields {
		if !seen[i] && !f.Optional {
			return newError(ErrTagMismatch, c.off, fmt.Sprintf("%s: missing %s", t.Name, f.Name))
		}
	}
	return nil
}

func decodeSequenceOf(t *Type, v *Value, c Cursor, ctx *Context) error {
	for !c.Done() {
		child, next, err := decode(t.Elem, c, ctx)
		if child != nil {
			v.Children = append(v.Children, child)
		}
		if err != nil {
			return err
		}
		c = c.At(next)
	}
	return nil
}

func decodeExplicit(t *Type, v *Value, c Cursor, ctx *Context) error {
	inner, next, err := decode(t.Elem, c, ctx)
	if inner != nil {
		v.Children = []*Value{inner}
	}
	if err != nil {
		return err
	}
	if !c.At(next).Done() {
		return newError(ErrInvalidEncoding, next, t.Name+": data after explicitly tagged value")
	}
	return nil
}

func decodeField(f Field, c Cursor, ctx *Context) (*Value, int, error) {
	child, next, err := decode(f.Type, c, ctx)
	if child != nil {
		child.Name = f.Name
	}
	return child, next, err
}

// skipUnknown keeps elements a grammar does not know about as ANY children,
// the way extensible SEQUENCEs grow in later protocol versions.
func skipUnknown(t *Type, v *Value, c Cursor) error {
	unknown := NewAny("unknown")
	for !c.Done() {
		h, l, pos, err := DecodeHeader(c)
		if err != nil {
			return withDetail(err, t.Name)
		}
		if !l.Definite() {
			return newError(ErrInvalidEncoding, c.off, t.Name+": indefinite length")
		}
		n := int(l)
		if n > c.At(pos).ReportedRemaining() {
			return newError(ErrTruncated, pos, t.Name+": unknown element overruns")
		}
		child := &Value{Name: unknown.Name, Kind: KindAny, Header: h, Offset: c.off, Length: pos + n - c.off}
		raw, _, err := ReadOctets(c.At(pos), n)
		if err != nil {
			v.Children = append(v.Children, child)
			return withDetail(err, t.Name)
		}
		child.Bytes = raw
		v.Children = append(v.Children, child)
		c = c.At(pos + n)
	}
	return nil
}

func decodeContent(t *Type, v *Value, raw []byte) error {
	var err error
	switch t.Kind {
	case KindBoolean:
		v.Bool, err = DecodeBoolean(raw)
	case KindInteger, KindEnumerated:
		v.Bytes = raw
		v.Int, err = DecodeSigned[int64](raw)
	case KindBitString:
		v.Bits, err = DecodeBitString(raw)
	case KindOctetString, KindAny:
		v.Bytes = raw
	case KindNull:
		err = DecodeNull(raw)
	case KindOID:
		v.OID, err = DecodeOID(raw)
	case KindString, KindTime:
		v.Str = DecodeString(raw)
	}
	return err
}

func unwrapSentinel(err error) error {
	for _, s := range []error{ErrTruncated, ErrTagMismatch, ErrRecursionLimit, ErrLengthTooLarge, ErrInvalidEncoding} {
		if errors.Is(err, s) {
			return s
		}
	}
	return ErrInvalidEncoding
}
