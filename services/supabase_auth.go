package services

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SupabaseAuthService validates Supabase-issued JWTs. Asymmetric tokens
// (ES256, RS256) are verified against the project's JWKS endpoint; HS256 is a
// legacy fallback that needs the shared JWT secret.
type SupabaseAuthService struct {
	SupabaseURL  string
	JWTSecret    string
	rsaKeys      map[string]*rsa.PublicKey
	ecdsaKeys    map[string]*ecdsa.PublicKey
	keysMutex    sync.RWMutex
	lastKeyFetch time.Time
}

type SupabaseClaims struct {
	AccountID string                 `json:"sub"`
	Email     string                 `json:"email"`
	Role      string                 `json:"role"`
	Aud       string                 `json:"aud"`
	Exp       int64                  `json:"exp"`
	Iat       int64                  `json:"iat"`
	UserMeta  map[string]interface{} `json:"user_metadata"`
	AppMeta   map[string]interface{} `json:"app_metadata"`
	jwt.RegisteredClaims
}

type jwksResponse struct {
	Keys []jwkKey `json:"keys"`
}

type jwkKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	// RSA fields
	N string `json:"n,omitempty"`
	E string `json:"e,omitempty"`
	// EC fields
	Crv string `json:"crv,omitempty"`
	X   string `json:"x,omitempty"`
	Y   string `json:"y,omitempty"`
}

// Per Supabase docs the JWKS edge cache holds keys for 10 minutes.
const jwksCacheTTL = 10 * time.Minute

func NewSupabaseAuthService(supabaseURL, jwtSecret string) *SupabaseAuthService {
	return &SupabaseAuthService{
		SupabaseURL: supabaseURL,
		JWTSecret:   jwtSecret,
		rsaKeys:     make(map[string]*rsa.PublicKey),
		ecdsaKeys:   make(map[string]*ecdsa.PublicKey),
	}
}

// ValidateToken verifies the token signature and expiry and returns its claims.
func (s *SupabaseAuthService) ValidateToken(tokenString string) (*SupabaseClaims, error) {
	// Parse unverified first to read the header: the algorithm and key id
	// decide which validation path applies.
	token, _, err := new(jwt.Parser).ParseUnverified(tokenString, &SupabaseClaims{})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %v", err)
	}

	var keyID string
	if kid, ok := token.Header["kid"].(string); ok {
		keyID = kid
	}
	alg, _ := token.Header["alg"].(string)

	if s.JWTSecret != "" && alg == "HS256" {
		if claims, err := s.validateWithSecret(tokenString); err == nil {
			return claims, nil
		}
	}

	if keyID != "" {
		switch alg {
		case "ES256":
			return s.validateWithECDSA(tokenString, keyID)
		case "RS256":
			return s.validateWithRSA(tokenString, keyID)
		}
	}

	return nil, errors.New("invalid token: no valid validation method found")
}

func (s *SupabaseAuthService) validateWithSecret(tokenString string) (*SupabaseClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SupabaseClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.JWTSecret), nil
	})
	if err != nil {
		return nil, err
	}
	return s.checkClaims(token)
}

func (s *SupabaseAuthService) validateWithECDSA(tokenString, keyID string) (*SupabaseClaims, error) {
	publicKey, err := s.getECDSAPublicKey(keyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get ECDSA public key: %v", err)
	}

	token, err := jwt.ParseWithClaims(tokenString, &SupabaseClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return publicKey, nil
	})
	if err != nil {
		return nil, err
	}
	return s.checkClaims(token)
}

func (s *SupabaseAuthService) validateWithRSA(tokenString, keyID string) (*SupabaseClaims, error) {
	publicKey, err := s.getRSAPublicKey(keyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get RSA public key: %v", err)
	}

	token, err := jwt.ParseWithClaims(tokenString, &SupabaseClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return publicKey, nil
	})
	if err != nil {
		return nil, err
	}
	return s.checkClaims(token)
}

func (s *SupabaseAuthService) checkClaims(token *jwt.Token) (*SupabaseClaims, error) {
	claims, ok := token.Claims.(*SupabaseClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if time.Now().Unix() > claims.Exp {
		return nil, errors.New("token has expired")
	}
	return claims, nil
}

func (s *SupabaseAuthService) fetchJWKS() (*jwksResponse, error) {
	jwksURL := fmt.Sprintf("%s/auth/v1/.well-known/jwks.json", s.SupabaseURL)
	resp, err := http.Get(jwksURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("JWKS endpoint returned status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read JWKS response: %v", err)
	}

	var jwks jwksResponse
	if err := json.Unmarshal(body, &jwks); err != nil {
		return nil, fmt.Errorf("failed to parse JWKS: %v", err)
	}
	return &jwks, nil
}

func (s *SupabaseAuthService) getECDSAPublicKey(keyID string) (*ecdsa.PublicKey, error) {
	s.keysMutex.RLock()
	key, exists := s.ecdsaKeys[keyID]
	cacheValid := time.Since(s.lastKeyFetch) < jwksCacheTTL
	s.keysMutex.RUnlock()

	if exists && cacheValid {
		return key, nil
	}

	jwks, err := s.fetchJWKS()
	if err != nil {
		return nil, err
	}

	for _, k := range jwks.Keys {
		if k.Kid == keyID && k.Kty == "EC" {
			publicKey, err := parseECDSAPublicKey(k.Crv, k.X, k.Y)
			if err != nil {
				return nil, fmt.Errorf("failed to parse ECDSA public key: %v", err)
			}

			s.keysMutex.Lock()
			s.ecdsaKeys[keyID] = publicKey
			s.lastKeyFetch = time.Now()
			s.keysMutex.Unlock()

			return publicKey, nil
		}
	}

	return nil, fmt.Errorf("ECDSA public key not found for key ID: %s", keyID)
}

func (s *SupabaseAuthService) getRSAPublicKey(keyID string) (*rsa.PublicKey, error) {
	s.keysMutex.RLock()
	key, exists := s.rsaKeys[keyID]
	cacheValid := time.Since(s.lastKeyFetch) < jwksCacheTTL
	s.keysMutex.RUnlock()

	if exists && cacheValid {
		return key, nil
	}

	jwks, err := s.fetchJWKS()
	if err != nil {
		return nil, err
	}

	for _, k := range jwks.Keys {
		if k.Kid == keyID && k.Kty == "RSA" {
			publicKey, err := parseRSAPublicKey(k.N, k.E)
			if err != nil {
				return nil, fmt.Errorf("failed to parse RSA public key: %v", err)
			}

			s.keysMutex.Lock()
			s.rsaKeys[keyID] = publicKey
			s.lastKeyFetch = time.Now()
			s.keysMutex.Unlock()

			return publicKey, nil
		}
	}

	return nil, fmt.Errorf("RSA public key not found for key ID: %s", keyID)
}

func parseECDSAPublicKey(crv, xStr, yStr string) (*ecdsa.PublicKey, error) {
	var curve elliptic.Curve
	switch crv {
	case "P-256":
		curve = elliptic.P256()
	case "P-384":
		curve = elliptic.P384()
	case "P-521":
		curve = elliptic.P521()
	default:
		return nil, fmt.Errorf("unsupported curve: %s", crv)
	}

	xBytes, err := base64.RawURLEncoding.DecodeString(xStr)
	if err != nil {
		return nil, fmt.Errorf("failed to decode X coordinate: %v", err)
	}
	yBytes, err := base64.RawURLEncoding.DecodeString(yStr)
	if err != nil {
		return nil, fmt.Errorf("failed to decode Y coordinate: %v", err)
	}

	return &ecdsa.PublicKey{
		Curve: curve,
		X:     new(big.Int).SetBytes(xBytes),
		Y:     new(big.Int).SetBytes(yBytes),
	}, nil
}

func parseRSAPublicKey(nStr, eStr string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(nStr)
	if err != nil {
		return nil, fmt.Errorf("failed to decode modulus: %v", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(eStr)
	if err != nil {
		return nil, fmt.Errorf("failed to decode exponent: %v", err)
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}

// ExtractTokenFromHeader extracts the bearer token from an Authorization header.
func (s *SupabaseAuthService) ExtractTokenFromHeader(authHeader string) (string, error) {
	if authHeader == "" {
		return "", errors.New("authorization header is required")
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", errors.New("invalid authorization header format")
	}
	return parts[1], nil
}
