package cotp

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseHexString(s string) []byte {
	data, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	if err != nil {
		panic(err)
	}
	return data
}

// AARE от libIEC61850: сессия и выше не разбираются на этом уровне
const associateUserData = "0e 86 05 06 13 01 00 16 01 02 14 02 00 02 34 02 00 01 c1 74 31 72 a0 03 80 01 01 a2 6b 83 04 00 00 00 01 a5 12 30 07 80 01 00 81 02 51 01 30 07 80 01 00 81 02 51 01 61 4f 30 4d 02 01 01 a0 48 61 46 a1 07 06 05 28 ca 22 02 03 a2 03 02 01 00 a3 05 a1 03 02 01 00 be 2f 28 2d 02 01 03 a0 28 a9 26 80 03 00 fd e8 81 01 05 82 01 05 83 01 0a a4 16 80 01 01 81 03 05 f1 00 82 0c 03 ee 1c 00 00 00 02 00 00 40 ed 18"

func TestParseTPKT(t *testing.T) {
	tests := []struct {
		name   string
		hexStr string
		length uint16
		data   string
	}{
		{
			name:   "подтверждение соединения",
			hexStr: "03 00 00 16 11 d0 00 01 00 01 00 c0 01 0d c2 02 00 01 c1 02 00 01",
			length: 22,
			data:   "11 d0 00 01 00 01 00 c0 01 0d c2 02 00 01 c1 02 00 01",
		},
		{
			name:   "данные",
			hexStr: "03 00 00 8f 02 f0 80 " + associateUserData,
			length: 143,
			data:   "02 f0 80 " + associateUserData,
		},
		{
			name:   "хвост следующего пакета игнорируется",
			hexStr: "03 00 00 07 02 f0 80 03 00",
			length: 7,
			data:   "02 f0 80",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTPKT(parseHexString(tt.hexStr))
			require.NoError(t, err)
			assert.Equal(t, uint8(3), got.Version)
			assert.Equal(t, uint8(0), got.Reserved)
			assert.Equal(t, tt.length, got.Length)
			assert.Equal(t, parseHexString(tt.data), got.Data)
		})
	}
}

func TestParseCOTP(t *testing.T) {
	tests := []struct {
		name   string
		hexStr string
		want   *COTP
	}{
		{
			name:   "CC",
			hexStr: "11 d0 00 01 00 01 00 c0 01 0d c2 02 00 01 c1 02 00 01",
			want: &COTP{
				Length:   0x11,
				Type:     COTPTypeConnectionConfirm,
				DestRef:  0x0001,
				SrcRef:   0x0001,
				TpduSize: 0x0d,
				DstTSAP:  parseHexString("00 01"),
				SrcTSAP:  parseHexString("00 01"),
				Data:     []byte{},
			},
		},
		{
			name:   "DT последний",
			hexStr: "02 f0 80 " + associateUserData,
			want: &COTP{
				Length:         0x02,
				Type:           COTPTypeData,
				Flags:          0x80,
				IsLastDataUnit: true,
				Data:           parseHexString(associateUserData),
			},
		},
		{
			name:   "DT не последний",
			hexStr: "02 f0 05 aa bb",
			want: &COTP{
				Length:         0x02,
				Type:           COTPTypeData,
				Flags:          0x05,
				SequenceNumber: 5,
				Data:           []byte{0xaa, 0xbb},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCOTP(parseHexString(tt.hexStr))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTruncatedTPKT(t *testing.T) {
	full := parseHexString("03 00 00 8f 02 f0 80 " + associateUserData)

	t.Run("захвачено начало пакета", func(t *testing.T) {
		got, err := ParseTruncatedTPKT(full[:40], len(full))
		require.NoError(t, err)
		assert.Equal(t, uint16(143), got.Length)
		assert.Equal(t, full[4:40], got.Data)
	})

	t.Run("пакет целиком", func(t *testing.T) {
		got, err := ParseTruncatedTPKT(full, len(full))
		require.NoError(t, err)
		assert.Equal(t, full[4:], got.Data)
	})

	t.Run("длина больше сообщённой", func(t *testing.T) {
		_, err := ParseTruncatedTPKT(full[:40], 100)
		assert.ErrorIs(t, err, ErrShortTPKT)
	})

	t.Run("неверная версия", func(t *testing.T) {
		_, err := ParseTruncatedTPKT([]byte{0x04, 0x00, 0x00, 0x8f, 0x02}, len(full))
		assert.ErrorIs(t, err, ErrInvalidTPKT)
	})

	t.Run("короткий заголовок", func(t *testing.T) {
		_, err := ParseTruncatedTPKT(full[:2], len(full))
		assert.ErrorIs(t, err, ErrShortTPKT)
	})
}
