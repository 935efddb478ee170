package health

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jwtx "github.com/dropDatabas3/authvital/internal/jwt"
)

func keys(t *testing.T) jwtx.KeyService {
	t.Helper()
	sk, err := jwtx.GenerateSigningKey()
	require.NoError(t, err)
	return jwtx.NewLocalKeyService(jwtx.NewKeystore(sk))
}

func TestCheck(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	t.Run("memory backends", func(t *testing.T) {
		resp := NewHealthService(Deps{Keys: keys(t), Issuer: "https://auth.example.com"}).Check(context.Background())
		assert.Equal(t, "ready", resp.Status)
		assert.NotEmpty(t, resp.ActiveKeyID)
		assert.Equal(t, "disabled", resp.Components["db"].Status)
	})

	t.Run("cache down degrades", func(t *testing.T) {
		resp := NewHealthService(Deps{Keys: keys(t), DBCheck: ok, CacheCheck: down}).Check(context.Background())
		assert.Equal(t, "degraded", resp.Status)
		assert.Equal(t, "error", resp.Components["cache"].Status)
	})

	t.Run("db down is critical", func(t *testing.T) {
		resp := NewHealthService(Deps{Keys: keys(t), DBCheck: down, CacheCheck: ok}).Check(context.Background())
		assert.Equal(t, "unavailable", resp.Status)
	})

	t.Run("no keys is critical", func(t *testing.T) {
		resp := NewHealthService(Deps{}).Check(context.Background())
		assert.Equal(t, "unavailable", resp.Status)
		assert.Equal(t, "error", resp.Components["keystore"].Status)
	})
}
