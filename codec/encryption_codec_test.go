package codec

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aswathylr-builds/storefront-checkout/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	commonpb "go.temporal.io/api/common/v1"
)

func testKey(seed byte) []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = seed + byte(i)
	}
	return key
}

func TestEncryptionCodec(t *testing.T) {
	codec, err := NewEncryptionCodec("k1", testKey(0))
	require.NoError(t, err)

	originalPayload := &commonpb.Payload{
		Metadata: map[string][]byte{
			"encoding": []byte("json/plain"),
		},
		Data: []byte(`{"razorpay_payment_id":"pay_1","razorpay_signature":"sig_1"}`),
	}

	encrypted, err := codec.Encode([]*commonpb.Payload{originalPayload})
	require.NoError(t, err)
	require.Len(t, encrypted, 1)

	assert.Equal(t, MetadataEncodingEncrypted, string(encrypted[0].Metadata["encoding"]))
	assert.Equal(t, "k1", string(encrypted[0].Metadata[MetadataEncryptionKeyID]))
	assert.NotContains(t, string(encrypted[0].Data), "pay_1")

	decrypted, err := codec.Decode(encrypted)
	require.NoError(t, err)
	require.Len(t, decrypted, 1)

	assert.Equal(t, originalPayload.Data, decrypted[0].Data)
	assert.Equal(t, "json/plain", string(decrypted[0].Metadata["encoding"]))
}

func TestEncryptionCodec_RejectsBadKeys(t *testing.T) {
	_, err := NewEncryptionCodec("k1", []byte("too short"))
	assert.Error(t, err)

	_, err = NewEncryptionCodec("", testKey(0))
	assert.Error(t, err)
}

func TestEncryptionCodec_KeyRotation(t *testing.T) {
	oldCodec, err := NewEncryptionCodec("k1", testKey(0))
	require.NoError(t, err)
	sealed, err := oldCodec.Encode([]*commonpb.Payload{{Data: []byte("history written before rotation")}})
	require.NoError(t, err)

	newCodec, err := NewEncryptionCodec("k2", testKey(100))
	require.NoError(t, err)

	_, err = newCodec.Decode(sealed)
	assert.Error(t, err, "retired key not registered yet")

	require.NoError(t, newCodec.AddKey("k1", testKey(0)))
	opened, err := newCodec.Decode(sealed)
	require.NoError(t, err)
	assert.Equal(t, "history written before rotation", string(opened[0].Data))

	resealed, err := newCodec.Encode(opened)
	require.NoError(t, err)
	assert.Equal(t, "k2", string(resealed[0].Metadata[MetadataEncryptionKeyID]))
}

func TestEncryptionDataConverter(t *testing.T) {
	codec, err := NewEncryptionCodec("k1", testKey(0))
	require.NoError(t, err)
	encryptionDC := NewEncryptionDataConverter(codec)

	req := models.CheckoutRequest{
		AttemptID: "attempt-1",
		Customer:  models.Customer{Name: "Asha Rao", Email: "asha@example.com"},
		Lines: []models.CartLine{
			{ProductID: "productA", Quantity: 2, UnitPrice: decimal.NewFromInt(100)},
		},
		ShippingCost: decimal.NewFromInt(20),
	}

	payloads, err := encryptionDC.ToPayloads(req)
	require.NoError(t, err)
	require.Len(t, payloads.Payloads, 1)
	assert.Equal(t, MetadataEncodingEncrypted, string(payloads.Payloads[0].Metadata["encoding"]))
	assert.NotContains(t, string(payloads.Payloads[0].Data), "asha@example.com")

	var decoded models.CheckoutRequest
	require.NoError(t, encryptionDC.FromPayloads(payloads, &decoded))
	assert.Equal(t, req.AttemptID, decoded.AttemptID)
	assert.Equal(t, req.Customer, decoded.Customer)
	require.Len(t, decoded.Lines, 1)
	assert.True(t, decoded.Lines[0].UnitPrice.Equal(decimal.NewFromInt(100)))

	// a callback payload arrives as a signal and must be sealed too
	payload, err := encryptionDC.ToPayload(models.CallbackPayload{"razorpay_signature": "sig_secret"})
	require.NoError(t, err)
	assert.NotContains(t, string(payload.Data), "sig_secret")
}

type wirePayloads struct {
	Payloads []struct {
		Metadata map[string][]byte `json:"metadata"`
		Data     []byte            `json:"data"`
	} `json:"payloads"`
}

func TestHTTPHandler_EncodeDecode(t *testing.T) {
	codec, err := NewEncryptionCodec("k1", testKey(0))
	require.NoError(t, err)
	handler := NewHTTPHandler(codec)

	call := func(path string, body []byte) wirePayloads {
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var out wirePayloads
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		return out
	}

	in := []byte(`{"payloads":[{"metadata":{"encoding":"anNvbi9wbGFpbg=="},"data":"InBheV8xIg=="}]}`)
	encoded := call("/encode", in)
	require.Len(t, encoded.Payloads, 1)
	assert.Equal(t, MetadataEncodingEncrypted, string(encoded.Payloads[0].Metadata["encoding"]))

	body, err := json.Marshal(encoded)
	require.NoError(t, err)
	decoded := call("/decode", body)
	require.Len(t, decoded.Payloads, 1)
	assert.Equal(t, `"pay_1"`, string(decoded.Payloads[0].Data))
}
