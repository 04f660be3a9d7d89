package attachment

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/frahmantamala/spm-sp2d/internal"
)

const downloadAudience = "attachment-download"

// DownloadClaims authorize one attachment download until they expire.
type DownloadClaims struct {
	AttachmentID int64 `json:"attachment_id"`
	jwt.RegisteredClaims
}

// URLSigner issues short-lived HS256 download tokens.
type URLSigner struct {
	secret  []byte
	ttl     time.Duration
	baseURL string
	now     func() time.Time
}

func NewURLSigner(secret string, ttl time.Duration, baseURL string) *URLSigner {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &URLSigner{secret: []byte(secret), ttl: ttl, baseURL: baseURL, now: time.Now}
}

func (s *URLSigner) Sign(attachmentID, userID int64) (SignedURL, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := &DownloadClaims{
		AttachmentID: attachmentID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			Audience:  jwt.ClaimStrings{downloadAudience},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return SignedURL{}, fmt.Errorf("sign download token: %w", err)
	}
	return SignedURL{
		URL:       fmt.Sprintf("%s/api/v1/files?token=%s", s.baseURL, token),
		ExpiresAt: expiresAt,
	}, nil
}

func (s *URLSigner) Parse(token string) (*DownloadClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &DownloadClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithAudience(downloadAudience), jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, internal.ErrTokenExpired
		}
		return nil, internal.ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*DownloadClaims)
	if !ok || !parsed.Valid || claims.AttachmentID <= 0 {
		return nil, internal.ErrInvalidToken
	}
	return claims, nil
}
