package mms

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slonegd/otdissect/osi/mms/variant"
)

func TestReadResponse(t *testing.T) {
	tests := []struct {
		name      string
		buffer    string // hex строка без пробелов
		want      *ReadResponse
		wantError string
	}{
		{
			// a1 0e - confirmed-ResponsePDU
			//   02 01 01 - invokeID = 1
			//   a4 09 - confirmedServiceResponse: read
			//      a1 07 - listOfAccessResult
			//         87 05 - success floating-point
			//            08 3d a8 83 7c - формат + значение
			name:   "float32 успех",
			buffer: "a10e020101a409a1078705083da8837c",
			want: &ReadResponse{
				InvokeID: 1,
				ListOfAccessResult: []AccessResult{{
					Success: true,
					Value:   variant.NewFloat32Variant(math.Float32frombits(0x3da8837c)),
				}},
			},
		},
		{
			name:   "float32 успех, другое значение",
			buffer: "a10e020101a409a1078705083edf52cc",
			want: &ReadResponse{
				InvokeID: 1,
				ListOfAccessResult: []AccessResult{{
					Success: true,
					Value:   variant.NewFloat32Variant(math.Float32frombits(0x3edf52cc)),
				}},
			},
		},
		{
			// 80 01 0a - failure, код ошибки 10 = ObjectNonExistent
			name:   "ошибка ObjectNonExistent",
			buffer: "a10a020101a405a10380010a",
			want: &ReadResponse{
				InvokeID: 1,
				ListOfAccessResult: []AccessResult{{
					Success: false,
					Error:   &DataAccessError{ErrorCode: ObjectNonExistent},
				}},
			},
		},
		{
			// 91 08 - utc-time
			//   69 5b 76 07 - секунды = 1767605767
			//   27 6c 8b - доля секунды = 2581643 единиц из 2^24
			//   80 - качество времени
			name:   "UTC time успех",
			buffer: "a111020101a40ca10a9108695b7607276c8b80",
			want: &ReadResponse{
				InvokeID: 1,
				ListOfAccessResult: []AccessResult{{
					Success: true,
					Value:   variant.NewUTCTimeQualityVariant(time.Date(2026, 1, 5, 8, 27, 51, 153999984, time.UTC), 0x80),
				}},
			},
		},
		{
			// 87 03 - floating-point неподдерживаемой длины
			name:      "неверный floating-point",
			buffer:    "a10c020101a407a105870308aabb",
			wantError: "unsupported floating-point format",
		},
	}

	d := NewDispatcher()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pdu, err := d.Decode(parseHexString(tt.buffer), Frame{}, nil)
			require.NoError(t, err)

			got, err := pdu.ReadResponse()
			if tt.wantError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadResponseString(t *testing.T) {
	pdu, err := NewDispatcher().Decode(parseHexString("a111020101a40ca10a9108695b7607276c8b80"), Frame{}, nil)
	require.NoError(t, err)
	r, err := pdu.ReadResponse()
	require.NoError(t, err)
	assert.Equal(t, "ReadResponse{InvokeID: 1, Results: [Result[0]: 2026-01-05T08:27:51.153999984Z]}", r.String())
}

func TestReadRequest(t *testing.T) {
	d := NewDispatcher()

	t.Run("список переменных", func(t *testing.T) {
		data := readRequest(1,
			domainName("simpleIOGenericIO", "GGIO1$MX$AnIn1$mag$f"),
			vmdName("LLN0$ST$Mod"),
		)
		pdu, err := d.Decode(data, Frame{}, nil)
		require.NoError(t, err)

		r, err := pdu.ReadRequest()
		require.NoError(t, err)
		assert.Equal(t, &ReadRequest{
			InvokeID: 1,
			Variables: []VariableRef{
				{Scope: ScopeDomain, DomainID: "simpleIOGenericIO", ItemID: "GGIO1$MX$AnIn1$mag$f"},
				{Scope: ScopeVMD, ItemID: "LLN0$ST$Mod"},
			},
		}, r)
		assert.Equal(t, "ReadRequest{InvokeID: 1, Variables: [simpleIOGenericIO/GGIO1$MX$AnIn1$mag$f LLN0$ST$Mod]}", r.String())
		assert.Equal(t, "simpleIOGenericIO", pdu.Context.DomainID)
		assert.Equal(t, "GGIO1$MX$AnIn1$mag$f", pdu.Context.ItemID)
		assert.Equal(t, "LLN0$ST$Mod", pdu.Context.VMDName)
	})

	t.Run("именованный список", func(t *testing.T) {
		pdu, err := d.Decode(readListRequest(7, domainName("LD0", "LLN0$dsMeas")), Frame{}, nil)
		require.NoError(t, err)

		r, err := pdu.ReadRequest()
		require.NoError(t, err)
		assert.Equal(t, "LD0/LLN0$dsMeas", r.ListName)
		assert.Empty(t, r.Variables)
		assert.Equal(t, ClassGetDataSetValues, pdu.Class)
	})

	t.Run("не тот PDU", func(t *testing.T) {
		pdu, err := d.Decode(parseHexString("a10e020101a409a1078705083da8837c"), Frame{}, nil)
		require.NoError(t, err)
		_, err = pdu.ReadRequest()
		assert.ErrorIs(t, err, ErrNotApplicable)
	})
}

func TestWrite(t *testing.T) {
	d := NewDispatcher()

	pdu, err := d.Decode(writeRequest(3, domainName("LD0", "CSWI1$CO$Pos$Oper"),
		dataStruct(dataBool(true), dataInt(-5), dataVisible("op")),
	), Frame{}, nil)
	require.NoError(t, err)
	assert.Equal(t, ClassControl, pdu.Class)

	w, err := pdu.WriteRequest()
	require.NoError(t, err)
	require.Len(t, w.Data, 1)
	assert.Equal(t, variant.NewStructureVariant([]*variant.Variant{
		variant.NewBoolVariant(true),
		variant.NewInt32Variant(-5),
		variant.NewStringVariant(variant.VisibleString, "op"),
	}), w.Data[0])
	assert.Equal(t, "LD0/CSWI1$CO$Pos$Oper", w.Variables[0].String())

	pdu, err = d.Decode(writeResponse(3, prim(1, nil), failure(ObjectAccessDenied)), Frame{}, nil)
	require.NoError(t, err)
	r, err := pdu.WriteResponse()
	require.NoError(t, err)
	assert.Equal(t, []AccessResult{
		{Success: true},
		{Error: &DataAccessError{ErrorCode: ObjectAccessDenied}},
	}, r.Results)
	assert.Equal(t, 2, pdu.Context.AccessResultCount)
	assert.Equal(t, 1, pdu.Context.FailureCount)
}

func TestReport(t *testing.T) {
	pdu, err := NewDispatcher().Decode(informationReport(cons(1, vmdName("RPT")),
		dataVisible("LD0/LLN0$BR$brcbMeas01"),
		dataBitString(10, 1, 2),
		dataFloat(1.5),
	), Frame{}, nil)
	require.NoError(t, err)
	assert.Equal(t, KindUnconfirmed, pdu.Kind)
	assert.Equal(t, InformationReport, pdu.Service)
	assert.Equal(t, ClassReport, pdu.Class)
	assert.False(t, pdu.HasInvokeID)

	r, err := pdu.Report()
	require.NoError(t, err)
	assert.Equal(t, "RPT", r.ListName)
	require.Len(t, r.Results, 3)
	assert.Equal(t, "LD0/LLN0$BR$brcbMeas01", r.Results[0].Value.Str())
	assert.True(t, r.Results[1].Value.BitString().At(1))
	assert.False(t, r.Results[1].Value.BitString().At(0))
	assert.Equal(t, float32(1.5), r.Results[2].Value.Float32())
}
