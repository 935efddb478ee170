package jwt

import (
	"errors"
	"sync"

	jose "github.com/go-jose/go-jose/v4"
)

var (
	ErrNoActiveKey = errors.New("no_active_signing_key")
	ErrUnknownKID  = errors.New("unknown_kid")
)

// Keystore guarda la clave activa y las retiradas. Las retiradas solo
// verifican: así un refresh token firmado antes de rotar sigue siendo válido
// hasta que vence.
type Keystore struct {
	mu      sync.RWMutex
	active  *SigningKey
	retired map[string]*SigningKey
	order   []string
}

// NewKeystore crea un keystore con active como clave de firma.
func NewKeystore(active *SigningKey) *Keystore {
	ks := &Keystore{retired: map[string]*SigningKey{}}
	if active != nil {
		ks.active = active
		ks.order = append(ks.order, active.KID)
	}
	return ks
}

// Active retorna la clave de firma.
func (k *Keystore) Active() (*SigningKey, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.active == nil {
		return nil, ErrNoActiveKey
	}
	return k.active, nil
}

// Rotate promueve next a activa y deja la anterior como retirada.
func (k *Keystore) Rotate(next *SigningKey) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.active != nil {
		k.retired[k.active.KID] = k.active
	}
	k.active = next
	k.order = append(k.order, next.KID)
}

// Retire saca una clave retirada del keystore; tokens firmados con ella
// dejan de verificar.
func (k *Keystore) Retire(kid string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.retired, kid)
	out := k.order[:0]
	for _, id := range k.order {
		if id == kid && (k.active == nil || k.active.KID != kid) {
			continue
		}
		out = append(out, id)
	}
	k.order = out
}

// PublicKey busca la pública por KID (activa o retirada).
func (k *Keystore) PublicKey(kid string) (*SigningKey, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.active != nil && k.active.KID == kid {
		return k.active, nil
	}
	if r, ok := k.retired[kid]; ok {
		return r, nil
	}
	return nil, ErrUnknownKID
}

// JWKS retorna todas las públicas, la activa primero.
func (k *Keystore) JWKS() jose.JSONWebKeySet {
	k.mu.RLock()
	defer k.mu.RUnlock()
	set := jose.JSONWebKeySet{Keys: make([]jose.JSONWebKey, 0, len(k.order))}
	if k.active != nil {
		set.Keys = append(set.Keys, k.active.JWK())
	}
	for i := len(k.order) - 1; i >= 0; i-- {
		if r, ok := k.retired[k.order[i]]; ok {
			set.Keys = append(set.Keys, r.JWK())
		}
	}
	return set
}
