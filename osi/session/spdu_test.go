package session

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

func TestParseSessionSPDU_DataTransfer(t *testing.T) {
	tests := []struct {
		name       string
		hexStr     string
		giveTokens bool
		data       string
		offset     int
	}{
		{name: "GIVE TOKENS + DT", hexStr: "01 00 01 00 61 03 02 01 01", giveTokens: true, data: "61 03 02 01 01", offset: 4},
		{name: "DT без префикса", hexStr: "01 00 61 00", data: "61 00", offset: 2},
		{name: "DT с параметром", hexStr: "01 00 01 03 19 01 02 61 00", giveTokens: true, data: "61 00", offset: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spdu, err := ParseSessionSPDU(parseHexString(tt.hexStr))
			require.NoError(t, err)
			assert.Equal(t, SessionSPDUTypeDataTransfer, spdu.Type)
			assert.Equal(t, tt.giveTokens, spdu.GiveTokens)
			assert.Equal(t, parseHexString(tt.data), spdu.Data)
			assert.Equal(t, tt.offset, spdu.DataOffset)
		})
	}
}

func TestParseSessionSPDU_Connect(t *testing.T) {
	// CONNECT с селекторами и длинной формой длины пользовательских данных
	userData := strings.Repeat("aa ", 300)
	input := "0d ff 01 44 05 06 13 01 00 16 01 02 14 02 00 02 33 02 00 01 34 02 00 01 c1 ff 01 2c " + userData

	spdu, err := ParseSessionSPDU(parseHexString(input))
	require.NoError(t, err)
	assert.Equal(t, SessionSPDUTypeConnect, spdu.Type)
	assert.Equal(t, "CONNECT", spdu.Type.String())
	assert.Equal(t, 0x144, spdu.Length)
	assert.Equal(t, uint8(2), spdu.ProtocolVersion)
	assert.Equal(t, []byte{0x00, 0x01}, spdu.CallingSessionSelector)
	assert.Equal(t, []byte{0x00, 0x01}, spdu.CalledSessionSelector)
	assert.Len(t, spdu.Data, 300)
	assert.Equal(t, 28, spdu.DataOffset)
	assert.True(t, spdu.IsConnectionPhase())
}

func TestParseSessionSPDU_Release(t *testing.T) {
	spdu, err := ParseSessionSPDU(parseHexString("09 06 11 01 01 c1 01 62"))
	require.NoError(t, err)
	assert.Equal(t, SessionSPDUTypeFinish, spdu.Type)
	assert.Equal(t, uint8(1), spdu.TransportDisconnect)
	assert.Equal(t, []byte{0x62}, spdu.Data)
	assert.False(t, spdu.IsConnectionPhase())

	spdu, err = ParseSessionSPDU(parseHexString("19 03 11 01 03"))
	require.NoError(t, err)
	assert.Equal(t, SessionSPDUTypeAbort, spdu.Type)
	assert.Nil(t, spdu.Data)
}

func TestParseSessionSPDU_Ошибки(t *testing.T) {
	tests := []struct {
		name   string
		hexStr string
		want   error
	}{
		{name: "пустой", hexStr: "", want: ErrShortSPDU},
		{name: "длина больше данных", hexStr: "0e 10 05 06", want: ErrInvalidLength},
		{name: "неизвестный тип", hexStr: "63 00", want: ErrUnknownSPDU},
		{name: "параметр выходит за SPDU", hexStr: "0d 03 33 05 00", want: ErrInvalidParam},
		{name: "обрезанная расширенная длина", hexStr: "0d ff 01", want: ErrShortSPDU},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSessionSPDU(parseHexString(tt.hexStr))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
