// Package codec encrypts workflow payloads so callback proofs, customer
// details and addresses never sit in Temporal history in clear text.
package codec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
	"net/http"

	commonpb "go.temporal.io/api/common/v1"
	"go.temporal.io/sdk/converter"
)

const (
	// MetadataEncodingEncrypted is the encoding type for encrypted payloads
	MetadataEncodingEncrypted = "binary/encrypted"
	// MetadataEncryptionKeyID names the key that sealed a payload
	MetadataEncryptionKeyID = "encryption-key-id"
)

// EncryptionCodec implements converter.PayloadCodec. New payloads are sealed
// with the active key; payloads sealed with a retired key still decode as
// long as that key is registered.
type EncryptionCodec struct {
	activeID string
	keys     map[string]cipher.AEAD
}

// NewEncryptionCodec creates a codec that seals with key under keyID.
// The key must be 32 bytes for AES-256.
func NewEncryptionCodec(keyID string, key []byte) (*EncryptionCodec, error) {
	if keyID == "" {
		return nil, fmt.Errorf("key id must not be empty")
	}
	c := &EncryptionCodec{activeID: keyID, keys: make(map[string]cipher.AEAD)}
	if err := c.AddKey(keyID, key); err != nil {
		return nil, err
	}
	return c, nil
}

// AddKey registers a decryption-only key. config registers the keys listed
// in ENCRYPTION_RETIRED_KEYS this way after a rotation.
func (e *EncryptionCodec) AddKey(keyID string, key []byte) error {
	if len(key) != 32 {
		return fmt.Errorf("key %s must be 32 bytes for AES-256, got %d bytes", keyID, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("failed to create GCM: %w", err)
	}
	e.keys[keyID] = gcm
	return nil
}

// Encode encrypts the provided payloads
func (e *EncryptionCodec) Encode(payloads []*commonpb.Payload) ([]*commonpb.Payload, error) {
	result := make([]*commonpb.Payload, len(payloads))

	for i, payload := range payloads {
		if isEncrypted(payload) {
			result[i] = payload
			continue
		}

		// The whole payload, metadata included, is sealed
		origBytes, err := payload.Marshal()
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}

		encrypted, err := e.encrypt(origBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt payload: %w", err)
		}

		result[i] = &commonpb.Payload{
			Metadata: map[string][]byte{
				converter.MetadataEncoding: []byte(MetadataEncodingEncrypted),
				MetadataEncryptionKeyID:    []byte(e.activeID),
			},
			Data: encrypted,
		}
	}

	return result, nil
}

// Decode decrypts the provided payloads
func (e *EncryptionCodec) Decode(payloads []*commonpb.Payload) ([]*commonpb.Payload, error) {
	result := make([]*commonpb.Payload, len(payloads))

	for i, payload := range payloads {
		if !isEncrypted(payload) {
			result[i] = payload
			continue
		}

		keyID := string(payload.Metadata[MetadataEncryptionKeyID])
		if keyID == "" {
			keyID = e.activeID
		}
		gcm, ok := e.keys[keyID]
		if !ok {
			return nil, fmt.Errorf("unknown encryption key %q", keyID)
		}

		decrypted, err := decrypt(gcm, payload.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt payload: %w", err)
		}

		result[i] = &commonpb.Payload{}
		if err := result[i].Unmarshal(decrypted); err != nil {
			return nil, fmt.Errorf("failed to unmarshal decrypted payload: %w", err)
		}
	}

	return result, nil
}

func isEncrypted(payload *commonpb.Payload) bool {
	return payload.Metadata != nil && string(payload.Metadata[converter.MetadataEncoding]) == MetadataEncodingEncrypted
}

// encrypt seals data with AES-GCM, prefixing the random nonce
func (e *EncryptionCodec) encrypt(plaintext []byte) ([]byte, error) {
	gcm := e.keys[e.activeID]
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decrypt(gcm cipher.AEAD, ciphertext []byte) ([]byte, error) {
	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plaintext, nil
}

// NewEncryptionDataConverter wraps the default data converter with the codec
func NewEncryptionDataConverter(codec *EncryptionCodec) converter.DataConverter {
	return converter.NewCodecDataConverter(converter.GetDefaultDataConverter(), codec)
}

// NewHTTPHandler serves /encode and /decode for the Temporal UI and CLI so
// operators can read checkout history without the key leaving this process.
// It decrypts anything it is sent; mount it on an internal listener only.
func NewHTTPHandler(codec *EncryptionCodec) http.Handler {
	return converter.NewPayloadCodecHTTPHandler(codec)
}
