package presentation

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

func TestParsePresentationPDU_CP(t *testing.T) {
	// CP-type с двумя контекстами: id-as-acse (1) и MMS (3)
	input := "31 43 a0 03 80 01 01 a2 3c 81 04 00 00 00 01 82 04 00 00 00 01 " +
		"a4 23 30 0f 02 01 01 06 04 52 01 00 01 30 04 06 02 51 01 " +
		"30 10 02 01 03 06 05 28 ca 22 02 01 30 04 06 02 51 01 " +
		"61 09 30 07 02 01 01 a0 02 60 00"

	pdu, err := ParsePresentationPDU(parseHexString(input))
	require.NoError(t, err)

	assert.Equal(t, CP, pdu.Type)
	assert.Equal(t, "CP-type", pdu.Type.String())
	assert.Equal(t, 1, pdu.ModeValue)
	assert.Equal(t, []byte{0, 0, 0, 1}, pdu.CallingPresentationSelector)
	assert.Equal(t, []byte{0, 0, 0, 1}, pdu.CalledPresentationSelector)
	require.Len(t, pdu.Contexts, 2)
	assert.Equal(t, 1, pdu.AcseContextId)
	assert.Equal(t, 3, pdu.MmsContextId)
	assert.Equal(t, 1, pdu.PresentationContextId)
	assert.Equal(t, DataValuesSingleASN1, pdu.PresentationDataValuesType)
	assert.Equal(t, []byte{0x60, 0x00}, pdu.Data)
	assert.Equal(t, 67, pdu.DataOffset)
}

func TestParsePresentationPDU_TD(t *testing.T) {
	pdu, err := ParsePresentationPDU(parseHexString("61 0a 30 08 02 01 03 a0 03 a0 01 00"))
	require.NoError(t, err)

	assert.Equal(t, TD, pdu.Type)
	assert.Equal(t, 3, pdu.PresentationContextId)
	assert.Equal(t, []byte{0xa0, 0x01, 0x00}, pdu.Data)
	assert.Equal(t, 9, pdu.DataOffset)
}

func TestParsePresentationPDU_CPR(t *testing.T) {
	pdu, err := ParsePresentationPDU(parseHexString("30 06 80 01 01 8a 01 02"))
	require.NoError(t, err)
	assert.Equal(t, CPR, pdu.Type)
	assert.Equal(t, 2, pdu.ProviderReason)
	assert.Nil(t, pdu.Data)
}

func TestParsePresentationPDU_Ошибки(t *testing.T) {
	tests := []struct {
		name   string
		hexStr string
		want   error
	}{
		{name: "пустой", hexStr: "", want: ErrEmpty},
		{name: "неизвестный тег", hexStr: "05 00", want: ErrUnknownPPDU},
		{name: "нет user-data", hexStr: "31 05 a0 03 80 01 01", want: ErrNoUserData},
		{name: "длина больше данных", hexStr: "31 10 a0 03", want: ErrInvalidPPDU},
		{name: "вложенный элемент выходит за родителя", hexStr: "31 05 a0 06 80 01 01", want: ErrInvalidPPDU},
		{name: "PDV-list не SEQUENCE", hexStr: "61 03 02 01 01", want: ErrInvalidPPDU},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePresentationPDU(parseHexString(tt.hexStr))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
