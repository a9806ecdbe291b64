package main

import (
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/youmark/pkcs8"
)

type KeyFormat int

const (
	KeyInvalid KeyFormat = iota
	KeyPlain
	KeyEncrypted
)

func (f KeyFormat) String() string {
	switch f {
	case KeyPlain:
		return "unencrypted"
	case KeyEncrypted:
		return "encrypted"
	}
	return "invalid"
}

// ClassifyKey inspects the PEM armor only, the key material is not decoded.
func ClassifyKey(key string) KeyFormat {
	key = strings.TrimSpace(key)
	switch {
	case strings.Contains(key, "ENCRYPTED PRIVATE KEY"):
		return KeyEncrypted
	case strings.Contains(key, "PRIVATE KEY"):
		return KeyPlain
	}
	return KeyInvalid
}

// ParsePrivateKey decodes an RSA key from PKCS#8, PKCS#1 or passphrase protected PKCS#8 PEM.
func ParsePrivateKey(key string, passphrase string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(strings.TrimSpace(key)))
	if block == nil {
		return nil, fmt.Errorf("%w: private key is not PEM encoded", ErrUnsupportedKeyFormat)
	}
	switch block.Type {
	case "ENCRYPTED PRIVATE KEY":
		parsed, err := pkcs8.ParsePKCS8PrivateKeyRSA(block.Bytes, []byte(passphrase))
		if err != nil {
			return nil, fmt.Errorf("%w: failed to decrypt private key: %w", ErrUnsupportedKeyFormat, err)
		}
		return parsed, nil
	case "PRIVATE KEY":
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to parse PKCS#8 private key: %w", ErrUnsupportedKeyFormat, err)
		}
		rsaKey, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: private key is %T, RSA is required", ErrUnsupportedKeyFormat, parsed)
		}
		return rsaKey, nil
	case "RSA PRIVATE KEY":
		parsed, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to parse PKCS#1 private key: %w", ErrUnsupportedKeyFormat, err)
		}
		return parsed, nil
	}
	return nil, fmt.Errorf("%w: unexpected PEM block %q", ErrUnsupportedKeyFormat, block.Type)
}

// PublicKeyFingerprint is the SHA256:<base64> digest Snowflake registers for the public key.
func PublicKeyFingerprint(key *rsa.PrivateKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(der)
	return "SHA256:" + base64.StdEncoding.EncodeToString(sum[:]), nil
}

// accountLocator strips region and cloud suffixes: "xy12345.us-east-1" -> "XY12345".
func accountLocator(account string) string {
	locator, _, _ := strings.Cut(account, ".")
	return strings.ToUpper(locator)
}

const jwtLifetime = 59 * time.Minute

// KeyPairToken signs the JWT used by SNOWFLAKE_JWT authentication.
func KeyPairToken(account, user string, key *rsa.PrivateKey, now time.Time) (string, error) {
	fingerprint, err := PublicKeyFingerprint(key)
	if err != nil {
		return "", fmt.Errorf("%w: failed to fingerprint public key: %w", ErrUnsupportedKeyFormat, err)
	}
	subject := fmt.Sprintf("%v.%v", accountLocator(account), strings.ToUpper(user))
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss": subject + "." + fingerprint,
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(jwtLifetime).Unix(),
	})
	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("failed to sign jwt: %w", err)
	}
	return signed, nil
}
