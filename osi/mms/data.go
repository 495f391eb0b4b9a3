package mms

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/slonegd/otdissect/ber"
	"github.com/slonegd/otdissect/osi/mms/variant"
)

// Форматы floating-point: первый октет содержит ширину экспоненты
const (
	floatFormatSingle = 0x08
	floatFormatDouble = 0x0b
)

// binaryTimeEpoch начало отсчёта дней в TimeOfDay
var binaryTimeEpoch = time.Date(1984, time.January, 1, 0, 0, 0, 0, time.UTC)

// DataValue преобразует узел Data в типизированное значение
func DataValue(v *ber.Value) (*variant.Variant, error) {
	sel := v.Unwrap()
	if sel == nil {
		return nil, fmt.Errorf("mms: empty Data")
	}
	switch sel.Name {
	case "array", "structure":
		elems := make([]*variant.Variant, 0, len(sel.Children))
		for _, c := range sel.Children {
			e, err := DataValue(c)
			if err != nil {
				return nil, err
			}
			elems = append(elems, e)
		}
		if sel.Name == "array" {
			return variant.NewArrayVariant(elems), nil
		}
		return variant.NewStructureVariant(elems), nil
	case "boolean":
		return variant.NewBoolVariant(sel.Bool), nil
	case "bit-string", "booleanArray":
		return variant.NewBitStringVariant(sel.Bits.Bytes, sel.Bits.BitLength), nil
	case "integer":
		if len(sel.Bytes) <= 4 {
			return variant.NewInt32Variant(int32(sel.Int)), nil
		}
		return variant.NewInt64Variant(sel.Int), nil
	case "unsigned":
		u, err := ber.DecodeUnsigned[uint64](sel.Bytes)
		if err != nil {
			return nil, fmt.Errorf("mms: unsigned: %w", err)
		}
		return variant.NewUnsignedVariant(u), nil
	case "floating-point":
		return parseFloatingPoint(sel.Bytes)
	case "octet-string":
		return variant.NewBytesVariant(variant.OctetString, sel.Bytes), nil
	case "visible-string":
		return variant.NewStringVariant(variant.VisibleString, sel.Str), nil
	case "mMSString":
		return variant.NewStringVariant(variant.MMSString, sel.Str), nil
	case "generalized-time":
		return variant.NewStringVariant(variant.GeneralizedTime, sel.Str), nil
	case "objId":
		return variant.NewStringVariant(variant.ObjectID, sel.OID.String()), nil
	case "bcd":
		return variant.NewBCDVariant(sel.Int), nil
	case "binary-time":
		return parseBinaryTime(sel.Bytes)
	case "utc-time":
		return parseUTCTime(sel.Bytes)
	}
	return nil, fmt.Errorf("mms: unsupported Data alternative %q", sel.Name)
}

// parseFloatingPoint парсит floating-point значение
// Структура: 1 байт (ширина экспоненты) + 4 или 8 байт значения IEEE 754
// в порядке big-endian
func parseFloatingPoint(buffer []byte) (*variant.Variant, error) {
	if len(buffer) == 0 {
		return nil, fmt.Errorf("mms: empty floating-point")
	}
	switch {
	case buffer[0] == floatFormatSingle && len(buffer) == 5:
		return variant.NewFloat32Variant(math.Float32frombits(binary.BigEndian.Uint32(buffer[1:]))), nil
	case buffer[0] == floatFormatDouble && len(buffer) == 9:
		return variant.NewFloat64Variant(math.Float64frombits(binary.BigEndian.Uint64(buffer[1:]))), nil
	}
	return nil, fmt.Errorf("mms: unsupported floating-point format 0x%02x with %d bytes", buffer[0], len(buffer))
}

// parseUTCTime парсит UTC time значение
// Структура согласно ISO/IEC 9506-2:
// - 4 байта: секунды с 1 января 1970 00:00:00 UTC (big-endian uint32)
// - 3 байта: доля секунды в единицах 1/2^24 секунды
// - 1 байт: качество времени
func parseUTCTime(buffer []byte) (*variant.Variant, error) {
	if len(buffer) != 8 {
		return nil, fmt.Errorf("mms: invalid utc-time length: expected 8 bytes, got %d", len(buffer))
	}
	seconds := binary.BigEndian.Uint32(buffer[0:4])
	fraction := uint32(buffer[4])<<16 | uint32(buffer[5])<<8 | uint32(buffer[6])
	// uint64, чтобы не переполнить произведение
	nanoseconds := uint64(fraction) * 1_000_000_000 / 0x1000000
	t := time.Unix(int64(seconds), int64(nanoseconds)).UTC()
	return variant.NewUTCTimeQualityVariant(t, buffer[7]), nil
}

// parseBinaryTime парсит TimeOfDay: 4 байта миллисекунд от полуночи и
// необязательные 2 байта дней от 1984-01-01
func parseBinaryTime(buffer []byte) (*variant.Variant, error) {
	if len(buffer) != 4 && len(buffer) != 6 {
		return nil, fmt.Errorf("mms: invalid binary-time length %d", len(buffer))
	}
	ms := binary.BigEndian.Uint32(buffer[0:4])
	t := binaryTimeEpoch.Add(time.Duration(ms) * time.Millisecond)
	if len(buffer) == 6 {
		days := binary.BigEndian.Uint16(buffer[4:6])
		t = t.AddDate(0, 0, int(days))
	}
	return variant.NewBinaryTimeVariant(t), nil
}
