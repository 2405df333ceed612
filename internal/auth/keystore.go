// Package auth implementa a verificação de API keys.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// MinKeyLength é o tamanho mínimo aceito para uma API key
const MinKeyLength = 16

// KeyStore guarda os digests SHA-256 das chaves válidas.
// É imutável depois de criado.
type KeyStore struct {
	digests [][sha256.Size]byte
}

// NewKeyStore cria o store a partir das chaves configuradas.
// Chaves vazias são ignoradas; um conjunto vazio recusa qualquer chave.
func NewKeyStore(keys []string) *KeyStore {
	store := &KeyStore{}
	seen := make(map[[sha256.Size]byte]bool, len(keys))
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		digest := sha256.Sum256([]byte(key))
		if seen[digest] {
			continue
		}
		seen[digest] = true
		store.digests = append(store.digests, digest)
	}
	return store
}

// IsValid verifica a chave em tempo constante contra todas as chaves configuradas.
// O candidato passa pela mesma normalização das chaves (espaços nas pontas removidos).
func (s *KeyStore) IsValid(candidate string) bool {
	candidate = strings.TrimSpace(candidate)
	if s == nil || len(s.digests) == 0 || candidate == "" {
		return false
	}

	digest := sha256.Sum256([]byte(candidate))
	match := 0
	for i := range s.digests {
		// sem retorno antecipado: o tempo não depende de qual chave casou
		match |= subtle.ConstantTimeCompare(digest[:], s.digests[i][:])
	}
	return match == 1
}

// Size retorna quantas chaves distintas estão configuradas
func (s *KeyStore) Size() int {
	if s == nil {
		return 0
	}
	return len(s.digests)
}

// Fingerprint gera um identificador curto e irreversível da chave para logs
func Fingerprint(key string) string {
	if key == "" {
		return ""
	}
	digest := sha256.Sum256([]byte(key))
	return "key_" + hex.EncodeToString(digest[:6])
}
