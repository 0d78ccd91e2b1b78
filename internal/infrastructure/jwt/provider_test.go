package jwtinfra

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tuition-notify/internal/config"
)

func writeKeys(t *testing.T) (privPath, pubPath string) {
	t.Helper()
	privKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	dir := t.TempDir()
	privPath = filepath.Join(dir, "private.pem")
	pubPath = filepath.Join(dir, "public.pem")

	privPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(privKey)})
	require.NoError(t, os.WriteFile(privPath, privPEM, 0600))

	pubBytes, err := x509.MarshalPKIXPublicKey(&privKey.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes})
	require.NoError(t, os.WriteFile(pubPath, pubPEM, 0600))
	return privPath, pubPath
}

func TestSignVerify(t *testing.T) {
	priv, pub := writeKeys(t)
	p, err := NewProvider(&config.Config{JWTPrivateKeyPath: priv, JWTPublicKeyPath: pub, JWTExpiry: time.Hour})
	require.NoError(t, err)

	tok, err := p.Sign("u1", "teacher")
	require.NoError(t, err)

	c, err := p.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", c.UserID)
	assert.Equal(t, "teacher", c.Role)
}

func TestVerifyOnly(t *testing.T) {
	_, pub := writeKeys(t)
	p, err := NewProvider(&config.Config{JWTPublicKeyPath: pub, JWTExpiry: time.Hour})
	require.NoError(t, err)

	_, err = p.Sign("u1", "admin")
	assert.ErrorIs(t, err, ErrNoSigningKey)

	_, err = p.Verify("garbage")
	assert.Error(t, err)
}

func TestExpiredToken(t *testing.T) {
	priv, pub := writeKeys(t)
	p, err := NewProvider(&config.Config{JWTPrivateKeyPath: priv, JWTPublicKeyPath: pub, JWTExpiry: -time.Minute})
	require.NoError(t, err)

	tok, err := p.Sign("u1", "admin")
	require.NoError(t, err)

	_, err = p.Verify(tok)
	assert.Error(t, err)
}

func TestMissingPublicKey(t *testing.T) {
	_, err := NewProvider(&config.Config{JWTPublicKeyPath: filepath.Join(t.TempDir(), "none.pem")})
	assert.ErrorContains(t, err, "read public key")
}
