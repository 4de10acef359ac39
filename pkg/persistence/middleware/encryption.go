package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/blueprint/pkg/domain"
	"github.com/aretw0/blueprint/pkg/ports"
)

// envelopeKey holds the sealed node fields inside NodeData.Fields.
const envelopeKey = "__encrypted__"

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys is a list of old keys to try when decryption fails.
	// This enables zero-downtime key rotation.
	FallbackKeys [][]byte
}

type encryptionMiddleware struct {
	ports.Gateway
	config EncryptionConfig
}

// NewEncryptionMiddleware seals node fields with AES-GCM before they reach the
// store and opens them on the way back. Ids, kinds, positions and titles stay
// in clear text so the store can still merge deletions and list blueprints.
func NewEncryptionMiddleware(config EncryptionConfig) (Middleware, error) {
	if len(config.ActiveKey) != 32 {
		return nil, errors.New("active key must be 32 bytes (AES-256)")
	}
	return func(next ports.Gateway) ports.Gateway {
		return &encryptionMiddleware{Gateway: next, config: config}
	}, nil
}

func (m *encryptionMiddleware) UpsertGraph(ctx context.Context, req ports.UpsertRequest) (ports.UpsertResult, error) {
	sealed, err := m.seal(req.Graph)
	if err != nil {
		return ports.UpsertResult{}, err
	}
	req.Graph = sealed
	return m.Gateway.UpsertGraph(ctx, req)
}

func (m *encryptionMiddleware) GetBlueprint(ctx context.Context, id string) (*domain.Hydrated, error) {
	h, err := m.Gateway.GetBlueprint(ctx, id)
	if err != nil {
		return nil, err
	}
	if h.Graph, err = m.open(h.Graph); err != nil {
		return nil, err
	}
	return h, nil
}

func (m *encryptionMiddleware) CreateSnapshot(ctx context.Context, id string, opts ports.SnapshotOptions) (*domain.SnapshotRecord, error) {
	snap, err := m.Gateway.CreateSnapshot(ctx, id, opts)
	if err != nil {
		return nil, err
	}
	if snap.Graph, err = m.open(snap.Graph); err != nil {
		return nil, err
	}
	return snap, nil
}

func (m *encryptionMiddleware) seal(g domain.Graph) (domain.Graph, error) {
	out := g.Clone()
	for i, n := range out.Nodes {
		if len(n.Data.Fields) == 0 {
			continue
		}
		plainText, err := json.Marshal(n.Data.Fields)
		if err != nil {
			return domain.Graph{}, fmt.Errorf("failed to marshal fields of node %s: %w", n.ID, err)
		}
		ciphertext, err := encrypt(plainText, m.config.ActiveKey)
		if err != nil {
			return domain.Graph{}, fmt.Errorf("failed to encrypt node %s: %w", n.ID, err)
		}
		out.Nodes[i].Data.Fields = map[string]any{
			envelopeKey: base64.StdEncoding.EncodeToString(ciphertext),
		}
	}
	return out, nil
}

// open reverses seal. A node without an envelope is returned as stored.
func (m *encryptionMiddleware) open(g domain.Graph) (domain.Graph, error) {
	for i, n := range g.Nodes {
		encoded, ok := n.Data.Fields[envelopeKey].(string)
		if !ok {
			continue
		}
		ciphertext, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return domain.Graph{}, fmt.Errorf("%w: failed to decode ciphertext of node %s: %v", domain.ErrFatal, n.ID, err)
		}
		plainText, err := decryptWithRotation(ciphertext, m.config.ActiveKey, m.config.FallbackKeys)
		if err != nil {
			return domain.Graph{}, fmt.Errorf("%w: node %s: %v", domain.ErrFatal, n.ID, err)
		}
		var fields map[string]any
		if err := json.Unmarshal(plainText, &fields); err != nil {
			return domain.Graph{}, fmt.Errorf("%w: failed to unmarshal fields of node %s: %v", domain.ErrFatal, n.ID, err)
		}
		g.Nodes[i].Data.Fields = fields
	}
	return g, nil
}

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}
	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, body := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, body, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
