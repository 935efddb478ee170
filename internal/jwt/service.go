package jwt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken normaliza cualquier falla de verificación (firma, alg,
// issuer, expiración, formato). El detalle criptográfico no sale de acá.
var ErrInvalidToken = errors.New("invalid_token")

// clock skew tolerado en exp/nbf/iat.
const leeway = 30 * time.Second

// SignOptions son los claims registrados que pone el servicio de claves.
type SignOptions struct {
	Subject   string
	Audience  string
	Issuer    string
	ExpiresIn time.Duration
}

// KeyService es la capacidad de firma que consume el motor OAuth.
// El motor nunca toca bytes de claves.
type KeyService interface {
	// Sign serializa payload (struct con tags json) y agrega iss/sub/aud/iat/nbf/exp/jti.
	Sign(ctx context.Context, payload any, opts SignOptions) (string, error)

	// Verify valida firma, alg, issuer y vigencia y decodifica los claims en dst.
	// Cualquier falla retorna ErrInvalidToken.
	Verify(ctx context.Context, token, issuer string, dst any) error

	// ActiveKey retorna la clave de firma activa.
	ActiveKey(ctx context.Context) (*SigningKey, error)

	// JWKS retorna el documento público.
	JWKS(ctx context.Context) (jose.JSONWebKeySet, error)
}

// LocalKeyService implementa KeyService con un Keystore en proceso.
type LocalKeyService struct {
	keys *Keystore
	now  func() time.Time
}

// NewLocalKeyService crea el servicio sobre ks.
func NewLocalKeyService(ks *Keystore) *LocalKeyService {
	return &LocalKeyService{keys: ks, now: time.Now}
}

// WithClock reemplaza el reloj (tests).
func (s *LocalKeyService) WithClock(now func() time.Time) *LocalKeyService {
	s.now = now
	return s
}

// Keystore expone el keystore (rotación desde el CLI/tests).
func (s *LocalKeyService) Keystore() *Keystore { return s.keys }

func (s *LocalKeyService) Sign(_ context.Context, payload any, opts SignOptions) (string, error) {
	key, err := s.keys.Active()
	if err != nil {
		return "", err
	}
	claims, err := toMapClaims(payload)
	if err != nil {
		return "", err
	}

	now := s.now().UTC()
	claims["iat"] = now.Unix()
	claims["nbf"] = now.Unix()
	claims["jti"] = uuid.NewString()
	if opts.Issuer != "" {
		claims["iss"] = opts.Issuer
	}
	if opts.Subject != "" {
		claims["sub"] = opts.Subject
	}
	if opts.Audience != "" {
		claims["aud"] = opts.Audience
	}
	if opts.ExpiresIn > 0 {
		claims["exp"] = now.Add(opts.ExpiresIn).Unix()
	}

	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodEdDSA, claims)
	tk.Header["kid"] = key.KID
	tk.Header["typ"] = "JWT"
	return tk.SignedString(key.PrivateKey)
}

func (s *LocalKeyService) Verify(_ context.Context, token, issuer string, dst any) error {
	keyfunc := func(t *jwtv5.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, ErrUnknownKID
		}
		k, err := s.keys.PublicKey(kid)
		if err != nil {
			return nil, err
		}
		return k.PublicKey, nil
	}

	opts := []jwtv5.ParserOption{
		jwtv5.WithValidMethods([]string{Algorithm}),
		jwtv5.WithExpirationRequired(),
		jwtv5.WithLeeway(leeway),
		jwtv5.WithTimeFunc(s.now),
	}
	if issuer != "" {
		opts = append(opts, jwtv5.WithIssuer(issuer))
	}

	claims := jwtv5.MapClaims{}
	tok, err := jwtv5.ParseWithClaims(token, claims, keyfunc, opts...)
	if err != nil || !tok.Valid {
		return ErrInvalidToken
	}
	if dst == nil {
		return nil
	}
	b, err := json.Marshal(claims)
	if err != nil {
		return ErrInvalidToken
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return ErrInvalidToken
	}
	return nil
}

func (s *LocalKeyService) ActiveKey(context.Context) (*SigningKey, error) { return s.keys.Active() }

func (s *LocalKeyService) JWKS(context.Context) (jose.JSONWebKeySet, error) {
	return s.keys.JWKS(), nil
}

func toMapClaims(payload any) (jwtv5.MapClaims, error) {
	if payload == nil {
		return jwtv5.MapClaims{}, nil
	}
	if m, ok := payload.(jwtv5.MapClaims); ok {
		out := make(jwtv5.MapClaims, len(m))
		for k, v := range m {
			out[k] = v
		}
		return out, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("jwt: marshal claims: %w", err)
	}
	out := jwtv5.MapClaims{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("jwt: claims must be a JSON object: %w", err)
	}
	return out, nil
}
