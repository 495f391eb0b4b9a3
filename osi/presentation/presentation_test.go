package presentation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slonegd/otdissect/osi/session"
)

// AARE от libIEC61850 целиком: TPKT, COTP, ACCEPT SPDU, CPA-PPDU
const associateResponse = "03 00 00 8f 02 f0 80 0e 86 05 06 13 01 00 16 01 02 14 02 00 02 34 02 00 01 c1 74 31 72 a0 03 80 01 01 a2 6b 83 04 00 00 00 01 a5 12 30 07 80 01 00 81 02 51 01 30 07 80 01 00 81 02 51 01 61 4f 30 4d 02 01 01 a0 48 61 46 a1 07 06 05 28 ca 22 02 03 a2 03 02 01 00 a3 05 a1 03 02 01 00 be 2f 28 2d 02 01 03 a0 28 a9 26 80 03 00 fd e8 81 01 05 82 01 05 83 01 0a a4 16 80 01 01 81 03 05 f1 00 82 0c 03 ee 1c 00 00 00 02 00 00 40 ed 18"

func TestParsePresentationPDU_CPA(t *testing.T) {
	spdu, err := session.ParseSessionSPDU(parseHexString(associateResponse)[7:])
	require.NoError(t, err)

	pdu, err := ParsePresentationPDU(spdu.Data)
	require.NoError(t, err)

	assert.Equal(t, CPA, pdu.Type)
	assert.Equal(t, "CPA-PPDU", pdu.Type.String())
	assert.Equal(t, 1, pdu.ModeValue)
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x01}, pdu.RespondingPresentationSelector)
	assert.Equal(t, []int{0, 0}, pdu.ContextResults)

	// идентификаторы ACSE и MMS приходят только в CP-type
	assert.Zero(t, pdu.AcseContextId)
	assert.Zero(t, pdu.MmsContextId)

	assert.Equal(t, 1, pdu.PresentationContextId)
	assert.Equal(t, 0, pdu.PresentationDataValuesType)
	require.Len(t, pdu.Data, 72)
	assert.Equal(t, []byte{0x61, 0x46, 0xa1, 0x07}, pdu.Data[:4])
	assert.Equal(t, []byte{0x00, 0x40, 0xed, 0x18}, pdu.Data[68:])
}

func TestParseTruncatedPresentationPDU(t *testing.T) {
	// TD-PPDU: PDV-list с context id 3 и single-ASN1-type
	full := parseHexString("61 0c 30 0a 02 01 03 a0 05 a1 03 02 01 07")

	t.Run("значение PDV обрезано", func(t *testing.T) {
		pdu, err := ParseTruncatedPresentationPDU(full[:12], len(full))
		require.NoError(t, err)
		assert.Equal(t, TD, pdu.Type)
		assert.Equal(t, 3, pdu.PresentationContextId)
		assert.Equal(t, DataValuesSingleASN1, pdu.PresentationDataValuesType)
		assert.Equal(t, full[9:12], pdu.Data)
	})

	t.Run("обрезан идентификатор контекста", func(t *testing.T) {
		pdu, err := ParseTruncatedPresentationPDU(full[:6], len(full))
		assert.ErrorIs(t, err, ErrInvalidPPDU)
		require.NotNil(t, pdu)
		assert.Nil(t, pdu.Data)
	})

	t.Run("без значения PDV", func(t *testing.T) {
		_, err := ParseTruncatedPresentationPDU(full[:7], len(full))
		assert.ErrorIs(t, err, ErrNoUserData)
	})

	t.Run("PPDU целиком", func(t *testing.T) {
		pdu, err := ParseTruncatedPresentationPDU(full, len(full))
		require.NoError(t, err)
		assert.Equal(t, full[9:], pdu.Data)
	})

	t.Run("пустое значение PDV", func(t *testing.T) {
		pdu, err := ParsePresentationPDU(parseHexString("61 07 30 05 02 01 03 a0 00"))
		require.NoError(t, err)
		assert.NotNil(t, pdu.Data)
		assert.Empty(t, pdu.Data)
	})
}
