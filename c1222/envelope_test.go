package c1222

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slonegd/otdissect/ber"
)

func tlv(tag byte, parts ...[]byte) []byte {
	var content []byte
	for _, p := range parts {
		content = append(content, p...)
	}
	return ber.AppendTLV(nil, ber.HeaderOf(ber.Tag(tag)), content)
}

type testMessage struct {
	called, calling, invocation, authValue, userInfo []byte
	keyID, iv                                        []byte
	raw                                              []byte
}

func buildMessage(epsem []byte, withInvocation bool) testMessage {
	m := testMessage{
		called:  tlv(0xa2, tlv(0x0d, []byte{0x85, 0x03})),
		calling: tlv(0xa6, tlv(0x06, []byte{0x2b, 0x06, 0x01, 0x04})),
		keyID:   tlv(0x80, []byte{0x02}),
		iv:      tlv(0x81, []byte{0x11, 0x22, 0x33, 0x44}),
	}
	m.authValue = tlv(0xac, tlv(0xa2, tlv(0xa0, tlv(0xa1, m.keyID, m.iv))))
	m.userInfo = tlv(0xbe, tlv(0x28, tlv(0x81, epsem)))
	elems := [][]byte{m.called, m.calling}
	if withInvocation {
		m.invocation = tlv(0xa8, tlv(0x02, []byte{0x07}))
		elems = append(elems, m.invocation)
	}
	elems = append(elems, m.authValue, m.userInfo)
	m.raw = tlv(0x60, elems...)
	return m
}

func (m testMessage) canonical(epsemLen int) []byte {
	var out []byte
	out = append(out, m.called...)
	out = append(out, m.invocation...)
	out = append(out, m.authValue...)
	out = append(out, m.userInfo[:len(m.userInfo)-epsemLen]...)
	out = append(out, m.calling...)
	out = append(out, m.keyID...)
	out = append(out, m.iv...)
	return out
}

// xorAuthenticator checks the MAC against a fixed value and "decrypts"
// by xor with 0x5a.
type xorAuthenticator struct {
	mac    [4]byte
	header []byte
	key    [KeySize]byte
	mode   SecurityMode
	calls  int
}

func (a *xorAuthenticator) AuthenticateAndDecrypt(header []byte, key [KeySize]byte, data []byte, mac [4]byte, mode SecurityMode) error {
	a.calls++
	a.header = append([]byte(nil), header...)
	a.key = key
	a.mode = mode
	if mac != a.mac {
		return errors.New("MAC mismatch")
	}
	for i := range data {
		data[i] ^= 0x5a
	}
	return nil
}

func xor(b []byte) []byte {
	out := make([]byte, len(b))
	for i := range b {
		out[i] = b[i] ^ 0x5a
	}
	return out
}

var (
	testKey = [KeySize]byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88, 0x99, 0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}
	testMAC = [4]byte{0xde, 0xad, 0xbe, 0xef}
	// one full read of table 5 followed by the terminator
	plainBody = []byte{0x03, 0x30, 0x00, 0x05, 0x00}
)

func cipherEPSEM() []byte {
	e := append([]byte{0x88}, xor(plainBody)...)
	return append(e, testMAC[:]...)
}

func TestDecodeMessage(t *testing.T) {
	epsem := cipherEPSEM()
	m := buildMessage(epsem, true)

	msg, err := DecodeMessage(m.raw)
	require.NoError(t, err)

	assert.Equal(t, epsem, msg.EPSEM)
	assert.Equal(t, len(m.raw)-len(epsem), msg.EPSEMOffset)
	assert.True(t, msg.HasKeyID)
	assert.Equal(t, uint8(2), msg.KeyID)
	assert.Equal(t, []byte{0x11, 0x22, 0x33, 0x44}, msg.IV)
	assert.Equal(t, m.keyID, msg.KeyIDElement)
	assert.Equal(t, m.iv, msg.IVElement)
	assert.Equal(t, ber.OID{643}, msg.CalledAPTitle())
	assert.Equal(t, ber.OID{1, 3, 6, 1, 4}, msg.CallingAPTitle())
}

func TestDecodeMessageErrors(t *testing.T) {
	_, err := DecodeMessage(parseHexString("61 00"))
	assert.ErrorIs(t, err, ErrNotC1222)

	msg, err := DecodeMessage(parseHexString("60 05 a2 03 0d 01 05"))
	assert.ErrorIs(t, err, ErrNoEPSEM)
	require.NotNil(t, msg)
	assert.Equal(t, ber.OID{5}, msg.CalledAPTitle())

	_, err = DecodeMessage(parseHexString("60 08 be 06 28 04 a0 02 30 00"))
	assert.ErrorIs(t, err, ErrNoEPSEM)

	_, err = DecodeMessage(nil)
	assert.Error(t, err)
}

func TestEnvelopeCleartext(t *testing.T) {
	epsem := append([]byte{0x80}, plainBody...)
	msg, err := DecodeMessage(buildMessage(epsem, true).raw)
	require.NoError(t, err)

	auth := &xorAuthenticator{mac: testMAC}
	res := NewEnvelope(Config{DecryptEnabled: true, Authenticator: auth, Keys: StaticKeyTable{2: testKey}}).Open(msg)

	assert.Equal(t, NotChecked, res.Status)
	assert.Zero(t, auth.calls)
	require.Len(t, res.EPSEM.Commands, 1)
	assert.Equal(t, FullRead{Table: 5}, res.EPSEM.Commands[0].Fields)
}

func TestEnvelopeCiphertext(t *testing.T) {
	epsem := cipherEPSEM()
	m := buildMessage(epsem, true)
	msg, err := DecodeMessage(m.raw)
	require.NoError(t, err)

	tests := []struct {
		name     string
		cfg      func(a *xorAuthenticator) Config
		mac      [4]byte
		status   CryptoStatus
		opaque   bool
		finding  FindingKind
		wantCall bool
	}{
		{
			name:     "decrypted",
			cfg:      func(a *xorAuthenticator) Config { return Config{DecryptEnabled: true, Authenticator: a, Keys: StaticKeyTable{2: testKey}} },
			mac:      testMAC,
			status:   Good,
			wantCall: true,
		},
		{
			name:   "decryption disabled",
			cfg:    func(a *xorAuthenticator) Config { return Config{Authenticator: a, Keys: StaticKeyTable{2: testKey}} },
			mac:    testMAC,
			status: NotChecked,
			opaque: true,
		},
		{
			name:   "no authenticator",
			cfg:    func(*xorAuthenticator) Config { return Config{DecryptEnabled: true, Keys: StaticKeyTable{2: testKey}} },
			mac:    testMAC,
			status: NotChecked,
			opaque: true,
		},
		{
			name:    "unknown key id",
			cfg:     func(a *xorAuthenticator) Config { return Config{DecryptEnabled: true, Authenticator: a, Keys: StaticKeyTable{1: testKey}} },
			mac:     testMAC,
			status:  Bad,
			opaque:  true,
			finding: KeyLookupFailed,
		},
		{
			name:    "no key table",
			cfg:     func(a *xorAuthenticator) Config { return Config{DecryptEnabled: true, Authenticator: a} },
			mac:     testMAC,
			status:  Bad,
			opaque:  true,
			finding: KeyLookupFailed,
		},
		{
			name:     "bad MAC",
			cfg:      func(a *xorAuthenticator) Config { return Config{DecryptEnabled: true, Authenticator: a, Keys: StaticKeyTable{2: testKey}} },
			mac:      [4]byte{1, 2, 3, 4},
			status:   Bad,
			opaque:   true,
			finding:  AuthenticationFailed,
			wantCall: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := &xorAuthenticator{mac: tt.mac}
			before := append([]byte(nil), msg.EPSEM...)

			res := NewEnvelope(tt.cfg(auth)).Open(msg)

			assert.Equal(t, tt.status, res.Status)
			require.NotNil(t, res.EPSEM)
			assert.Equal(t, tt.opaque, res.EPSEM.Opaque)
			assert.Equal(t, before, msg.EPSEM, "the captured EPSEM is never modified")
			if tt.finding != 0 {
				require.NotEmpty(t, res.Findings)
				assert.Equal(t, tt.finding, res.Findings[0].Kind)
			} else {
				assert.Empty(t, res.Findings)
			}
			assert.Equal(t, tt.wantCall, auth.calls == 1)

			if tt.wantCall {
				canonical := m.canonical(len(epsem))
				assert.Equal(t, canonical, res.Canonical)
				// canonical header followed by flags
				assert.Equal(t, append(append([]byte(nil), canonical...), 0x88), auth.header)
				assert.Equal(t, testKey, auth.key)
				assert.Equal(t, CiphertextAuthenticated, auth.mode)
			}
			if tt.status == Good {
				require.Len(t, res.EPSEM.Commands, 1)
				assert.Equal(t, FullRead{Table: 5}, res.EPSEM.Commands[0].Fields)
				assert.Equal(t, plainBody, res.EPSEM.Body)
			} else {
				assert.Nil(t, res.EPSEM.Commands)
			}
		})
	}
}

func TestEnvelopeCleartextAuthenticated(t *testing.T) {
	epsem := append([]byte{0x84}, plainBody...)
	epsem = append(epsem, testMAC[:]...)
	m := buildMessage(epsem, true)
	msg, err := DecodeMessage(m.raw)
	require.NoError(t, err)

	for _, mac := range [][4]byte{testMAC, {0, 0, 0, 0}} {
		auth := &xorAuthenticator{mac: mac}
		res := NewEnvelope(Config{DecryptEnabled: true, Authenticator: auth, Keys: StaticKeyTable{2: testKey}}).Open(msg)

		// the whole EPSEM but the MAC is authenticated
		want := append(m.canonical(len(epsem)), epsem[:len(epsem)-4]...)
		assert.Equal(t, want, auth.header)
		assert.Equal(t, CleartextAuthenticated, auth.mode)

		// cleartext is parsed whatever the outcome
		require.Len(t, res.EPSEM.Commands, 1)
		assert.False(t, res.EPSEM.Opaque)
		if mac == testMAC {
			assert.Equal(t, Good, res.Status)
		} else {
			assert.Equal(t, Bad, res.Status)
		}
	}
}

func TestEnvelopeMissingRequiredElement(t *testing.T) {
	msg, err := DecodeMessage(buildMessage(cipherEPSEM(), false).raw)
	require.NoError(t, err)

	auth := &xorAuthenticator{mac: testMAC}
	res := NewEnvelope(Config{DecryptEnabled: true, Authenticator: auth, Keys: StaticKeyTable{2: testKey}}).Open(msg)

	assert.Equal(t, NotChecked, res.Status)
	assert.True(t, res.EPSEM.Opaque)
	assert.Zero(t, auth.calls)
	require.Len(t, res.Findings, 1)
	assert.Equal(t, HeaderElementMissing, res.Findings[0].Kind)
	assert.Contains(t, res.Findings[0].Detail, "0xa8")
}

func TestEnvelopeShortEPSEM(t *testing.T) {
	msg, err := DecodeMessage(buildMessage([]byte{0x88, 0x01}, true).raw)
	require.NoError(t, err)

	res := NewEnvelope(Config{}).Open(msg)
	assert.Nil(t, res.EPSEM)
	require.Len(t, res.Findings, 1)
	assert.Equal(t, InvalidLength, res.Findings[0].Kind)
}

func TestCanonicalizeBaseOID(t *testing.T) {
	msg, err := DecodeMessage(buildMessage(cipherEPSEM(), true).raw)
	require.NoError(t, err)

	base, err := ber.ParseOID("2.16.124.113620.1.22")
	require.NoError(t, err)

	canonical, err := NewEnvelope(Config{BaseOID: base}).Canonicalize(msg)
	require.NoError(t, err)

	// relative 643 under the base becomes an absolute title
	called := parseHexString("a2 0b 06 09 60 7c 86 f7 54 01 16 85 03")
	assert.True(t, bytes.HasPrefix(canonical, called))

	// the calling title is already absolute
	assert.True(t, bytes.Contains(canonical, parseHexString("a6 06 06 04 2b 06 01 04")))
}

func TestLoadKeyTable(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    StaticKeyTable
		wantErr string
	}{
		{
			name:  "two keys",
			input: "- id: 0\n  key: 00112233445566778899aabbccddeeff\n- id: 2\n  key: \"00 11 22 33 44 55 66 77 88 99 aa bb cc dd ee ff\"\n",
			want:  StaticKeyTable{0: testKey, 2: testKey},
		},
		{name: "empty", input: "", want: StaticKeyTable{}},
		{name: "short key", input: "- id: 1\n  key: 0011\n", wantErr: "2 bytes"},
		{name: "not hex", input: "- id: 1\n  key: zz\n", wantErr: "key id 1"},
		{name: "duplicate", input: "- id: 1\n  key: 00112233445566778899aabbccddeeff\n- id: 1\n  key: 00112233445566778899aabbccddeeff\n", wantErr: "duplicate"},
		{name: "missing id", input: "- key: 00112233445566778899aabbccddeeff\n", wantErr: "missing id"},
		{name: "not a list", input: "id: 1\n", wantErr: "parse key table"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := LoadKeyTable(strings.NewReader(tt.input))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, table)
		})
	}
}

func TestFramer(t *testing.T) {
	m := buildMessage(cipherEPSEM(), true)
	var f Framer

	n, err := f.Extract(m.raw[:3])
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = f.Extract(append(append([]byte(nil), m.raw...), 0x60, 0x00))
	require.NoError(t, err)
	assert.Equal(t, len(m.raw), n)

	_, err = f.Extract([]byte{0x61, 0x00})
	assert.ErrorIs(t, err, ErrNotC1222)

	_, err = f.Extract([]byte{0x60, 0x80, 0x00, 0x00, 0x00, 0x00})
	assert.ErrorIs(t, err, ErrNotC1222)
}
