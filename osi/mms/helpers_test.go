package mms

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/slonegd/otdissect/ber"
)

// parseHexString парсит hex строку в байты
// Удаляет пробелы, переносы строк и табы, затем парсит пары hex символов
func parseHexString(hexStr string) []byte {
	hexStr = strings.ReplaceAll(hexStr, " ", "")
	hexStr = strings.ReplaceAll(hexStr, "\n", "")
	hexStr = strings.ReplaceAll(hexStr, "\t", "")
	data := make([]byte, 0, len(hexStr)/2)
	for i := 0; i+1 < len(hexStr); i += 2 {
		var b byte
		if _, err := fmt.Sscanf(hexStr[i:i+2], "%02x", &b); err != nil {
			continue
		}
		data = append(data, b)
	}
	return data
}

// Сборка PDU для тестов

func join(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// cons контекстный конструктивный элемент [n]
func cons(n uint32, parts ...[]byte) []byte {
	return ber.AppendTLV(nil, ber.ContextTag(n, true), join(parts...))
}

// prim контекстный примитивный элемент [n]
func prim(n uint32, content []byte) []byte {
	return ber.AppendTLV(nil, ber.ContextTag(n, false), content)
}

func univ(tag ber.Tag, parts ...[]byte) []byte {
	return ber.AppendTLV(nil, ber.HeaderOf(tag), join(parts...))
}

func intContent(v int64) []byte {
	return ber.AppendInteger(nil, v)
}

func visible(s string) []byte {
	return univ(ber.VisibleString, []byte(s))
}

// domainName ObjectName domain-specific
func domainName(domain, item string) []byte {
	return cons(1, visible(domain), visible(item))
}

// vmdName ObjectName vmd-specific
func vmdName(item string) []byte {
	return prim(0, []byte(item))
}

func confirmedRequest(invokeID int64, service []byte) []byte {
	return cons(0, univ(ber.Integer, intContent(invokeID)), service)
}

func confirmedResponse(invokeID int64, service []byte) []byte {
	return cons(1, univ(ber.Integer, intContent(invokeID)), service)
}

// listOfVariable [0] с переменными по именам
func listOfVariable(names ...[]byte) []byte {
	vars := make([][]byte, len(names))
	for i, name := range names {
		vars[i] = univ(ber.SequenceConstructed, cons(0, name))
	}
	return cons(0, vars...)
}

func readRequest(invokeID int64, names ...[]byte) []byte {
	return confirmedRequest(invokeID, cons(uint32(Read), cons(1, listOfVariable(names...))))
}

func readListRequest(invokeID int64, list []byte) []byte {
	return confirmedRequest(invokeID, cons(uint32(Read), cons(1, cons(1, list))))
}

func readResponse(invokeID int64, results ...[]byte) []byte {
	return confirmedResponse(invokeID, cons(uint32(Read), cons(1, results...)))
}

func writeRequest(invokeID int64, name []byte, data ...[]byte) []byte {
	return confirmedRequest(invokeID, cons(uint32(Write), listOfVariable(name), cons(0, data...)))
}

func writeResponse(invokeID int64, results ...[]byte) []byte {
	return confirmedResponse(invokeID, cons(uint32(Write), results...))
}

func getNameList(invokeID int64, objectClass int64, scope []byte) []byte {
	return confirmedRequest(invokeID, cons(uint32(GetNameList),
		cons(0, prim(0, intContent(objectClass))),
		cons(1, scope),
	))
}

func informationReport(spec []byte, results ...[]byte) []byte {
	return cons(uint32(KindUnconfirmed), cons(0, spec, cons(0, results...)))
}

// Data

func dataFloat(f float32) []byte {
	content := []byte{floatFormatSingle, 0, 0, 0, 0}
	binary.BigEndian.PutUint32(content[1:], math.Float32bits(f))
	return prim(7, content)
}

func dataInt(v int64) []byte      { return prim(5, intContent(v)) }
func dataBool(b bool) []byte      { return prim(3, ber.AppendBoolean(nil, b)) }
func dataVisible(s string) []byte { return prim(10, []byte(s)) }
func dataArray(elems ...[]byte) []byte {
	return cons(1, elems...)
}
func dataStruct(elems ...[]byte) []byte {
	return cons(2, elems...)
}

func dataBitString(size int, offsets ...uint) []byte {
	return prim(4, ber.AppendBitString(nil, ber.BitsFromOffsets(size, offsets...)))
}

func failure(code DataAccessErrorCode) []byte {
	return prim(0, intContent(int64(code)))
}
