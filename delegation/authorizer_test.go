package delegation

import (
	"context"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultline/vaultline/ports"
)

type fakeReader struct {
	chainID uint64
	code    []byte
	nonce   uint64
}

func (r *fakeReader) ChainID() uint64 { return r.chainID }

func (r *fakeReader) CodeAt(ctx context.Context, address string) ([]byte, error) {
	return r.code, nil
}

func (r *fakeReader) PendingNonceAt(ctx context.Context, address string) (uint64, error) {
	return r.nonce, nil
}

func (r *fakeReader) Call(ctx context.Context, result any, method string, params ...any) error {
	return nil
}

type fakeReaders struct {
	reader *fakeReader
}

func (p *fakeReaders) Reader(chainID uint64) (ports.ChainReader, error) { return p.reader, nil }
func (p *fakeReaders) Register(chainID uint64, endpoint string)         {}
func (p *fakeReaders) Release(chainID uint64)                           {}
func (p *fakeReaders) Close()                                           {}

type fakeSigner struct {
	ports.Signer

	signed    []ports.SignRequest
	signature string
}

func (s *fakeSigner) Sign(ctx context.Context, req ports.SignRequest) (string, error) {
	s.signed = append(s.signed, req)
	return s.signature, nil
}

func designator(impl common.Address) []byte {
	return append([]byte{0xef, 0x01, 0x00}, impl.Bytes()...)
}

func testSignature(v byte) string {
	raw := make([]byte, 65)
	for i := range 32 {
		raw[i] = 0x11
		raw[32+i] = 0x22
	}
	raw[64] = v
	return "0x" + hex.EncodeToString(raw)
}

func TestIsDelegatedCode(t *testing.T) {
	impl := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	assert.True(t, IsDelegatedCode(designator(impl)))
	assert.False(t, IsDelegatedCode(nil), "empty account code")
	assert.False(t, IsDelegatedCode([]byte{0x60, 0x80, 0x60, 0x40}), "plain contract code")
	assert.False(t, IsDelegatedCode([]byte{0xef, 0x01, 0x00}), "prefix without address")
	assert.False(t, IsDelegatedCode(append(designator(impl), 0x00)), "trailing bytes")

	assert.Equal(t, impl, DelegatedTo(designator(impl)))
	assert.Equal(t, common.Address{}, DelegatedTo([]byte{0x60}))
}

func TestAuthorizationHashMatchesManualEncoding(t *testing.T) {
	impl := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	hash, err := AuthorizationHash(137, impl, 7)
	require.NoError(t, err)

	payload, err := rlp.EncodeToBytes([]any{uint64(137), impl, uint64(7)})
	require.NoError(t, err)
	want := crypto.Keccak256(append([]byte{0x05}, payload...))

	assert.Equal(t, common.BytesToHash(want), hash)
}

func TestPrepareAndSignProducesTuple(t *testing.T) {
	impl := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	reader := &fakeReader{chainID: 137, nonce: 9}
	signer := &fakeSigner{signature: testSignature(1)}

	a := NewAuthorizer(&fakeReaders{reader: reader}, signer)

	auth, err := a.PrepareAndSign(context.Background(), 137, "0xwallet", impl.Hex())
	require.NoError(t, err)
	require.NotNil(t, auth)

	assert.Equal(t, uint64(137), auth.ChainID)
	assert.Equal(t, impl, auth.Address)
	assert.Equal(t, uint64(9), auth.Nonce)
	assert.Equal(t, uint8(1), auth.YParity)

	require.Len(t, signer.signed, 1)
	assert.False(t, signer.signed[0].Hash, "authorization digests are signed raw")

	wantHash, err := AuthorizationHash(137, impl, 9)
	require.NoError(t, err)
	assert.Equal(t, wantHash.Hex(), signer.signed[0].Payload)
}

func TestPrepareAndSignSkipsExistingDelegation(t *testing.T) {
	impl := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	reader := &fakeReader{chainID: 137, code: designator(impl)}
	signer := &fakeSigner{signature: testSignature(0)}

	a := NewAuthorizer(&fakeReaders{reader: reader}, signer)

	auth, err := a.PrepareAndSign(context.Background(), 137, "0xwallet", impl.Hex())
	require.NoError(t, err)
	assert.Nil(t, auth)
	assert.Empty(t, signer.signed)
}

func TestPrepareAndSignReplacesForeignDelegation(t *testing.T) {
	oldImpl := common.HexToAddress("0x00000000000000000000000000000000000000bb")
	newImpl := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	reader := &fakeReader{chainID: 137, code: designator(oldImpl), nonce: 3}
	signer := &fakeSigner{signature: testSignature(28)}

	a := NewAuthorizer(&fakeReaders{reader: reader}, signer)

	auth, err := a.PrepareAndSign(context.Background(), 137, "0xwallet", newImpl.Hex())
	require.NoError(t, err)
	require.NotNil(t, auth)
	assert.Equal(t, newImpl, auth.Address)
	assert.Equal(t, uint8(1), auth.YParity, "legacy v 28 normalizes to parity 1")
}

func TestSerializeCompactForm(t *testing.T) {
	auth := &SignedAuthorization{YParity: 1}
	for i := range 32 {
		auth.R[i] = 0x11
		auth.S[i] = 0x22
	}

	s := auth.Serialize()

	require.True(t, strings.HasPrefix(s, "0x"))
	assert.Len(t, s, 2+130)
	assert.Equal(t, strings.Repeat("11", 32), s[2:66])
	assert.Equal(t, strings.Repeat("22", 32), s[66:130])
	assert.Equal(t, "01", s[130:])
}
