package mms

import (
	"fmt"
	"strings"

	"github.com/slonegd/otdissect/ber"
)

// TypeSpecification представляет спецификацию типа MMS
// Согласно ISO/IEC 9506-2:
//
//	TypeSpecification ::= CHOICE {
//	  typeName        [0] ObjectName,
//	  array           [1] IMPLICIT SEQUENCE {...},
//	  structure       [2] IMPLICIT SEQUENCE {...},
//	  boolean         [3] IMPLICIT NULL,
//	  bit-string      [4] IMPLICIT Integer32,
//	  integer         [5] IMPLICIT Unsigned8,
//	  unsigned        [6] IMPLICIT Unsigned8,
//	  floating-point  [7] IMPLICIT SEQUENCE {...},
//	  octet-string    [9] IMPLICIT Integer32,
//	  visible-string  [10] IMPLICIT Integer32,
//	  generalized-time [11] IMPLICIT NULL,
//	  binary-time     [12] IMPLICIT BOOLEAN,
//	  bcd             [13] IMPLICIT Unsigned8,
//	  objId           [15] IMPLICIT NULL,
//	  mMSString       [16] IMPLICIT Integer32,
//	  utc-time        [17] IMPLICIT NULL
//	}
//
// Отрицательный размер строки означает строку переменной длины не длиннее
// модуля значения.
type TypeSpecification struct {
	// Type - тип спецификации
	Type TypeSpecType
	// TypeName - для ссылки на именованный тип
	TypeName string
	// Structure - для структуры: компоненты с именами
	Structure *StructureTypeSpec
	// BitStringSize - для bit-string: размер в битах
	BitStringSize int
	// IntegerSize - для integer: размер в битах
	IntegerSize int
	// UnsignedSize - для unsigned: размер в битах
	UnsignedSize int
	// FloatingPoint - для floating-point: параметры формата
	FloatingPoint *FloatingPointTypeSpec
	// OctetStringSize - для octet-string: размер в октетах
	OctetStringSize int
	// VisibleStringSize - для visible-string: максимальный размер
	VisibleStringSize int
	// MMSStringSize - для mMSString: максимальный размер
	MMSStringSize int
	// BCDSize - для bcd: количество цифр
	BCDSize int
	// BinaryTimeWithDate - binary-time содержит дату
	BinaryTimeWithDate bool
	// Array - для массива: количество элементов и тип элемента
	Array *ArrayTypeSpec
}

// TypeSpecType представляет тип спецификации
type TypeSpecType int

const (
	TypeSpecStructure TypeSpecType = iota
	TypeSpecArray
	TypeSpecBoolean
	TypeSpecBitString
	TypeSpecInteger
	TypeSpecUnsigned
	TypeSpecFloatingPoint
	TypeSpecOctetString
	TypeSpecVisibleString
	TypeSpecMMSString
	TypeSpecUTCTime
	TypeSpecBinaryTime
	TypeSpecGeneralizedTime
	TypeSpecBCD
	TypeSpecObjID
	TypeSpecTypeName
)

var typeSpecNames = [...]string{
	"structure", "array", "boolean", "bit-string", "integer", "unsigned",
	"floating-point", "octet-string", "visible-string", "mMSString",
	"utc-time", "binary-time", "generalized-time", "bcd", "objId", "typeName",
}

func (t TypeSpecType) String() string {
	if t >= 0 && int(t) < len(typeSpecNames) {
		return typeSpecNames[t]
	}
	return fmt.Sprintf("TypeSpecType(%d)", int(t))
}

// StructureTypeSpec представляет спецификацию структуры
type StructureTypeSpec struct {
	Packed     bool
	Components []ComponentSpec
}

// ComponentSpec представляет компонент структуры
type ComponentSpec struct {
	Name string
	Type *TypeSpecification
}

// ArrayTypeSpec представляет спецификацию массива
type ArrayTypeSpec struct {
	Packed       bool
	ElementCount int
	ElementType  *TypeSpecification
}

// FloatingPointTypeSpec представляет спецификацию floating-point
type FloatingPointTypeSpec struct {
	ExponentWidth int
	FormatWidth   int
}

// VariableAccessAttributesResponse представляет ответ GetVariableAccessAttributes
//
//	GetVariableAccessAttributes-Response ::= SEQUENCE {
//	  mmsDeletable      [0] IMPLICIT BOOLEAN,
//	  address           [1] Address OPTIONAL,
//	  typeSpecification [2] TypeSpecification
//	}
type VariableAccessAttributesResponse struct {
	InvokeID          uint32
	MmsDeletable      bool
	TypeSpecification *TypeSpecification
}

// VariableAccessAttributesResponse возвращает ответ getVariableAccessAttributes
func (p *PDU) VariableAccessAttributesResponse() (*VariableAccessAttributesResponse, error) {
	svc, err := p.service(KindConfirmedResponse, GetVariableAccessAttributes)
	if err != nil {
		return nil, err
	}
	r := &VariableAccessAttributesResponse{InvokeID: p.InvokeID}
	if f := svc.Field("mmsDeletable"); f != nil {
		r.MmsDeletable = f.Bool
	}
	r.TypeSpecification, err = NewTypeSpecification(svc.Field("typeSpecification"))
	if err != nil {
		return nil, err
	}
	return r, nil
}

// NewTypeSpecification строит спецификацию из узла TypeSpecification.
// Узел может быть обёрнут в явный тег.
func NewTypeSpecification(v *ber.Value) (*TypeSpecification, error) {
	choice := unwrapExplicit(v)
	sel := choice.Selected()
	if sel == nil {
		return nil, fmt.Errorf("mms: empty TypeSpecification")
	}

	size := int(sel.Int)
	switch sel.Name {
	case "typeName":
		return &TypeSpecification{Type: TypeSpecTypeName, TypeName: FormatObjectName(sel)}, nil
	case "structure":
		return newStructureTypeSpec(sel)
	case "array":
		return newArrayTypeSpec(sel)
	case "boolean":
		return &TypeSpecification{Type: TypeSpecBoolean}, nil
	case "bit-string":
		return &TypeSpecification{Type: TypeSpecBitString, BitStringSize: size}, nil
	case "integer":
		return &TypeSpecification{Type: TypeSpecInteger, IntegerSize: size}, nil
	case "unsigned":
		return &TypeSpecification{Type: TypeSpecUnsigned, UnsignedSize: size}, nil
	case "floating-point":
		return newFloatingPointTypeSpec(sel)
	case "octet-string":
		return &TypeSpecification{Type: TypeSpecOctetString, OctetStringSize: size}, nil
	case "visible-string":
		return &TypeSpecification{Type: TypeSpecVisibleString, VisibleStringSize: size}, nil
	case "mMSString":
		return &TypeSpecification{Type: TypeSpecMMSString, MMSStringSize: size}, nil
	case "generalized-time":
		return &TypeSpecification{Type: TypeSpecGeneralizedTime}, nil
	case "binary-time":
		return &TypeSpecification{Type: TypeSpecBinaryTime, BinaryTimeWithDate: sel.Bool}, nil
	case "bcd":
		return &TypeSpecification{Type: TypeSpecBCD, BCDSize: size}, nil
	case "objId":
		return &TypeSpecification{Type: TypeSpecObjID}, nil
	case "utc-time":
		return &TypeSpecification{Type: TypeSpecUTCTime}, nil
	}
	return nil, fmt.Errorf("mms: unsupported TypeSpecification %q", sel.Name)
}

func newStructureTypeSpec(v *ber.Value) (*TypeSpecification, error) {
	s := &StructureTypeSpec{}
	if f := v.Field("packed"); f != nil {
		s.Packed = f.Bool
	}
	components := v.Field("components")
	if components == nil {
		return nil, fmt.Errorf("mms: structure missing components")
	}
	for i, c := range components.Children {
		var comp ComponentSpec
		if name := c.Field("componentName"); name != nil {
			comp.Name = name.Str
		}
		t, err := NewTypeSpecification(c.Field("componentType"))
		if err != nil {
			return nil, fmt.Errorf("component %d %q: %w", i, comp.Name, err)
		}
		comp.Type = t
		s.Components = append(s.Components, comp)
	}
	return &TypeSpecification{Type: TypeSpecStructure, Structure: s}, nil
}

func newArrayTypeSpec(v *ber.Value) (*TypeSpecification, error) {
	count := v.Field("numberOfElements")
	if count == nil {
		return nil, fmt.Errorf("mms: array missing numberOfElements")
	}
	elem, err := NewTypeSpecification(v.Field("elementType"))
	if err != nil {
		return nil, fmt.Errorf("array element: %w", err)
	}
	a := &ArrayTypeSpec{
		ElementCount: int(count.Int),
		ElementType:  elem,
	}
	if f := v.Field("packed"); f != nil {
		a.Packed = f.Bool
	}
	return &TypeSpecification{Type: TypeSpecArray, Array: a}, nil
}

func newFloatingPointTypeSpec(v *ber.Value) (*TypeSpecification, error) {
	format := v.Field("format-width")
	if format == nil {
		return nil, fmt.Errorf("mms: floating-point missing format-width")
	}
	exponent := v.Field("exponent-width")
	if exponent == nil {
		return nil, fmt.Errorf("mms: floating-point missing exponent-width")
	}
	return &TypeSpecification{
		Type: TypeSpecFloatingPoint,
		FloatingPoint: &FloatingPointTypeSpec{
			FormatWidth:   int(format.Int),
			ExponentWidth: int(exponent.Int),
		},
	}, nil
}

// String выводит спецификацию в сокращённой нотации, например
// "{mag:{f:float(32,8)} q:bit-string(-13) t:utc-time}"
func (t *TypeSpecification) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Type {
	case TypeSpecStructure:
		parts := make([]string, len(t.Structure.Components))
		for i, c := range t.Structure.Components {
			parts[i] = c.Name + ":" + c.Type.String()
		}
		return "{" + strings.Join(parts, " ") + "}"
	case TypeSpecArray:
		return fmt.Sprintf("array[%d]%s", t.Array.ElementCount, t.Array.ElementType)
	case TypeSpecBitString:
		return fmt.Sprintf("bit-string(%d)", t.BitStringSize)
	case TypeSpecInteger:
		return fmt.Sprintf("integer(%d)", t.IntegerSize)
	case TypeSpecUnsigned:
		return fmt.Sprintf("unsigned(%d)", t.UnsignedSize)
	case TypeSpecFloatingPoint:
		return fmt.Sprintf("float(%d,%d)", t.FloatingPoint.FormatWidth, t.FloatingPoint.ExponentWidth)
	case TypeSpecOctetString:
		return fmt.Sprintf("octet-string(%d)", t.OctetStringSize)
	case TypeSpecVisibleString:
		return fmt.Sprintf("visible-string(%d)", t.VisibleStringSize)
	case TypeSpecMMSString:
		return fmt.Sprintf("mMSString(%d)", t.MMSStringSize)
	case TypeSpecBCD:
		return fmt.Sprintf("bcd(%d)", t.BCDSize)
	case TypeSpecTypeName:
		return "type:" + t.TypeName
	}
	return t.Type.String()
}
