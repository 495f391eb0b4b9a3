package variant

import (
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// Type представляет тип значения в MMS Data
type Type int

const (
	// Float32 - IEEE 754 single precision floating-point (32-bit)
	Float32 Type = iota
	// Int32 - 32-bit signed integer
	Int32
	// UTCTime - UTC time согласно ISO/IEC 9506-2 (8 байт: 4 байта секунды + 3 байта доля секунды + 1 байт качество)
	UTCTime
	Bool
	BitString
	// Int64 - integer, не помещающийся в 32 бита
	Int64
	Unsigned
	// Float64 - IEEE 754 double precision
	Float64
	OctetString
	VisibleString
	MMSString
	// BinaryTime - TimeOfDay: миллисекунды от полуночи и, опционально, дни от 1984-01-01
	BinaryTime
	GeneralizedTime
	BCD
	ObjectID
	Array
	Structure
)

var typeNames = [...]string{
	Float32:         "float32",
	Int32:           "int32",
	UTCTime:         "utc-time",
	Bool:            "bool",
	BitString:       "bit-string",
	Int64:           "int64",
	Unsigned:        "unsigned",
	Float64:         "float64",
	OctetString:     "octet-string",
	VisibleString:   "visible-string",
	MMSString:       "mms-string",
	BinaryTime:      "binary-time",
	GeneralizedTime: "generalized-time",
	BCD:             "bcd",
	ObjectID:        "obj-id",
	Array:           "array",
	Structure:       "structure",
}

// String возвращает строковое представление Type
func (t Type) String() string {
	if t >= 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	var b strings.Builder
	b.WriteString("unknown(")
	b.WriteString(strconv.Itoa(int(t)))
	b.WriteByte(')')
	return b.String()
}

// BitStringValue содержимое bit-string
type BitStringValue struct {
	Data    []byte
	BitSize int
}

// At сообщает, установлен ли бит i (0 - старший бит первого байта)
func (b BitStringValue) At(i int) bool {
	if i < 0 || i >= b.BitSize {
		return false
	}
	return b.Data[i/8]&(0x80>>(uint(i)%8)) != 0
}

// UTCTimeValue время с байтом качества
type UTCTimeValue struct {
	Time    time.Time
	Quality byte
}

// Variant представляет типизированное значение MMS Data.
// Массивы и структуры хранят элементы как []*Variant.
type Variant struct {
	typ   Type
	value any
}

// Type возвращает тип значения Variant
func (v *Variant) Type() Type {
	return v.typ
}

// Float32 возвращает значение как float32
// Если тип не совпадает, пытается преобразовать значение к float32
// Возвращает 0.0 если преобразование невозможно
func (v *Variant) Float32() float32 {
	if v == nil {
		return 0.0
	}

	switch val := v.value.(type) {
	case float32:
		return val
	case float64:
		return float32(val)
	case int32:
		return float32(val)
	case int64:
		return float32(val)
	default:
		return 0.0
	}
}

// Float64 возвращает значение как float64
func (v *Variant) Float64() float64 {
	if v == nil {
		return 0
	}
	switch val := v.value.(type) {
	case float64:
		return val
	case float32:
		return float64(val)
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case uint64:
		return float64(val)
	}
	return 0
}

// Int32 возвращает значение как int32
// Если тип не совпадает, пытается преобразовать значение к int32
// Возвращает 0 если преобразование невозможно
func (v *Variant) Int32() int32 {
	if v == nil {
		return 0
	}

	switch val := v.value.(type) {
	case int32:
		return val
	case int64:
		return int32(val)
	case float32:
		return int32(val)
	default:
		return 0
	}
}

// Int64 возвращает целое значение как int64
func (v *Variant) Int64() int64 {
	if v == nil {
		return 0
	}
	switch val := v.value.(type) {
	case int64:
		return val
	case int32:
		return int64(val)
	case uint64:
		return int64(val)
	}
	return 0
}

// Uint64 возвращает значение unsigned
func (v *Variant) Uint64() uint64 {
	if v == nil {
		return 0
	}
	switch val := v.value.(type) {
	case uint64:
		return val
	case int32:
		return uint64(val)
	case int64:
		return uint64(val)
	}
	return 0
}

// Bool возвращает логическое значение
func (v *Variant) Bool() bool {
	if v == nil {
		return false
	}
	b, _ := v.value.(bool)
	return b
}

// Bytes возвращает содержимое octet-string и binary-time
func (v *Variant) Bytes() []byte {
	if v == nil {
		return nil
	}
	b, _ := v.value.([]byte)
	return b
}

// Str возвращает строковое значение
func (v *Variant) Str() string {
	if v == nil {
		return ""
	}
	s, _ := v.value.(string)
	return s
}

// BitString возвращает содержимое bit-string
func (v *Variant) BitString() BitStringValue {
	if v == nil {
		return BitStringValue{}
	}
	b, _ := v.value.(BitStringValue)
	return b
}

// Time возвращает значение как time.Time
// Если тип не совпадает, возвращает нулевое время
func (v *Variant) Time() time.Time {
	if v == nil {
		return time.Time{}
	}

	switch val := v.value.(type) {
	case time.Time:
		return val
	case UTCTimeValue:
		return val.Time
	default:
		return time.Time{}
	}
}

// TimeQuality возвращает байт качества utc-time
func (v *Variant) TimeQuality() byte {
	if v == nil {
		return 0
	}
	q, _ := v.value.(UTCTimeValue)
	return q.Quality
}

// Elements возвращает элементы массива или структуры
func (v *Variant) Elements() []*Variant {
	if v == nil {
		return nil
	}
	e, _ := v.value.([]*Variant)
	return e
}

// NewFloat32Variant создаёт новый Variant с float32 значением
func NewFloat32Variant(value float32) *Variant {
	return &Variant{
		typ:   Float32,
		value: value,
	}
}

func NewFloat64Variant(value float64) *Variant {
	return &Variant{typ: Float64, value: value}
}

// NewInt32Variant создаёт новый Variant с int32 значением
func NewInt32Variant(value int32) *Variant {
	return &Variant{
		typ:   Int32,
		value: value,
	}
}

func NewInt64Variant(value int64) *Variant {
	return &Variant{typ: Int64, value: value}
}

func NewUnsignedVariant(value uint64) *Variant {
	return &Variant{typ: Unsigned, value: value}
}

func NewBoolVariant(value bool) *Variant {
	return &Variant{typ: Bool, value: value}
}

// NewBitStringVariant создаёт bit-string из байтов данных и числа значащих бит
func NewBitStringVariant(data []byte, bitSize int) *Variant {
	return &Variant{typ: BitString, value: BitStringValue{Data: data, BitSize: bitSize}}
}

// NewBytesVariant создаёт значение с содержимым []byte: octet-string,
// binary-time
func NewBytesVariant(typ Type, value []byte) *Variant {
	return &Variant{typ: typ, value: value}
}

// NewStringVariant создаёт строковое значение: visible-string, mms-string,
// generalized-time, obj-id
func NewStringVariant(typ Type, value string) *Variant {
	return &Variant{typ: typ, value: value}
}

// NewUTCTimeVariant создаёт новый Variant с time.Time значением
func NewUTCTimeVariant(value time.Time) *Variant {
	return &Variant{
		typ:   UTCTime,
		value: value,
	}
}

// NewUTCTimeQualityVariant создаёт utc-time с байтом качества
func NewUTCTimeQualityVariant(value time.Time, quality byte) *Variant {
	return &Variant{typ: UTCTime, value: UTCTimeValue{Time: value, Quality: quality}}
}

// NewBinaryTimeVariant создаёт TimeOfDay
func NewBinaryTimeVariant(value time.Time) *Variant {
	return &Variant{typ: BinaryTime, value: value}
}

func NewBCDVariant(value int64) *Variant {
	return &Variant{typ: BCD, value: value}
}

// NewArrayVariant создаёт массив
func NewArrayVariant(elements []*Variant) *Variant {
	return &Variant{typ: Array, value: elements}
}

// NewStructureVariant создаёт структуру
func NewStructureVariant(elements []*Variant) *Variant {
	return &Variant{typ: Structure, value: elements}
}

// String возвращает строковое представление Variant в формате "тип(значение)"
// Например: "float32(4.2)"
// Использует strings.Builder вместо fmt.Sprintf для лучшей производительности GC
func (v *Variant) String() string {
	if v == nil {
		return "<nil>"
	}

	var b strings.Builder
	v.format(&b)
	return b.String()
}

func (v *Variant) format(b *strings.Builder) {
	if v == nil {
		b.WriteString("<nil>")
		return
	}
	b.WriteString(v.typ.String())
	b.WriteByte('(')

	switch v.typ {
	case Float32:
		b.WriteString(strconv.FormatFloat(float64(v.Float32()), 'g', -1, 32))
	case Float64:
		b.WriteString(strconv.FormatFloat(v.Float64(), 'g', -1, 64))
	case Int32, Int64, BCD:
		b.WriteString(strconv.FormatInt(v.Int64(), 10))
	case Unsigned:
		b.WriteString(strconv.FormatUint(v.Uint64(), 10))
	case Bool:
		b.WriteString(strconv.FormatBool(v.Bool()))
	case UTCTime, BinaryTime:
		b.WriteString(v.Time().Format(time.RFC3339Nano))
	case BitString:
		bs := v.BitString()
		for i := 0; i < bs.BitSize; i++ {
			if bs.At(i) {
				b.WriteByte('1')
			} else {
				b.WriteByte('0')
			}
		}
	case OctetString:
		b.WriteString(hex.EncodeToString(v.Bytes()))
	case VisibleString, MMSString, GeneralizedTime, ObjectID:
		b.WriteString(strconv.Quote(v.Str()))
	case Array, Structure:
		for i, e := range v.Elements() {
			if i > 0 {
				b.WriteString(", ")
			}
			e.format(b)
		}
	default:
		b.WriteString("<unknown>")
	}

	b.WriteByte(')')
}
