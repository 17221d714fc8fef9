package config

import (
	"crypto/rand"
	"fmt"

	"github.com/aswathylr-builds/storefront-checkout/codec"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/log"
)

// TemporalClientOptions builds the client options shared by the worker, the
// starter and the API server. The returned codec is nil unless encryption is
// enabled.
func (c *Config) TemporalClientOptions(logger log.Logger) (client.Options, *codec.EncryptionCodec, error) {
	options := client.Options{
		HostPort:  c.Temporal.Host,
		Namespace: c.Temporal.Namespace,
		Logger:    logger,
	}
	if !c.Encryption.Enabled {
		return options, nil, nil
	}

	key, err := c.EncryptionKey(generateKey)
	if err != nil {
		return options, nil, err
	}
	payloadCodec, err := codec.NewEncryptionCodec(c.Encryption.KeyID, key)
	if err != nil {
		return options, nil, fmt.Errorf("failed to create encryption codec: %w", err)
	}

	retired, err := c.RetiredEncryptionKeys()
	if err != nil {
		return options, nil, err
	}
	for id, retiredKey := range retired {
		if err := payloadCodec.AddKey(id, retiredKey); err != nil {
			return options, nil, fmt.Errorf("failed to register retired key: %w", err)
		}
	}
	options.DataConverter = codec.NewEncryptionDataConverter(payloadCodec)
	return options, payloadCodec, nil
}

func generateKey() ([]byte, error) {
	key := make([]byte, 32) // AES-256
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate encryption key: %w", err)
	}
	return key, nil
}
