package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/Kartikhehe/terr-aqua-survey-platform-backend/internal/apperr"
	"github.com/Kartikhehe/terr-aqua-survey-platform-backend/internal/db"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const (
	accessTokenTTL  = 15 * time.Minute
	refreshTokenTTL = 7 * 24 * time.Hour
)

const userColumns = `id, email, username, password_hash, full_name, is_verified, created_at, updated_at`

type Service struct {
	secret []byte
	db     db.Querier
	redis  *redis.Client
	mailer Mailer
	otpTTL time.Duration

	now func() time.Time
}

type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

func NewService(secret string, q db.Querier, rdb *redis.Client, mailer Mailer, otpTTL time.Duration) *Service {
	if mailer == nil {
		mailer = LogMailer{}
	}
	if otpTTL <= 0 {
		otpTTL = 10 * time.Minute
	}
	return &Service{
		secret: []byte(secret),
		db:     q,
		redis:  rdb,
		mailer: mailer,
		otpTTL: otpTTL,
		now:    time.Now,
	}
}

var (
	hashPasswordFn    = bcrypt.GenerateFromPassword
	signTokenFn       = (*Service).signToken
	parseWithClaimsFn = jwt.ParseWithClaims
)

// genOTP returns a 6-digit verification code.
var genOTP = func() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// Register creates an unverified account and sends a verification code.
// Tokens are only issued after VerifyEmail succeeds.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (User, error) {
	if req.Email == "" || req.Username == "" || req.Password == "" {
		return User{}, apperr.New(apperr.KindValidation, "email, username, password required")
	}
	hash, err := hashPasswordFn([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}

	user := User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: string(hash),
		FullName:     req.FullName,
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO users (id, email, username, password_hash, full_name, is_verified)
		VALUES ($1,$2,$3,$4,$5,FALSE)
		RETURNING created_at, updated_at
	`, user.ID, user.Email, user.Username, user.PasswordHash, user.FullName)
	if err := row.Scan(&user.CreatedAt, &user.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, apperr.New(apperr.KindConflict, "email or username already registered")
		}
		return User{}, err
	}

	if err := s.sendOTP(ctx, user.Email); err != nil {
		return User{}, err
	}
	return user, nil
}

// VerifyEmail consumes the code sent at registration, marks the account
// verified and issues the first token pair.
func (s *Service) VerifyEmail(ctx context.Context, req VerifyRequest) (TokenResponse, error) {
	if req.Email == "" || req.Code == "" {
		return TokenResponse{}, apperr.New(apperr.KindValidation, "email and code required")
	}

	stored, err := s.redis.Get(ctx, otpKey(req.Email)).Result()
	if err != nil || stored != req.Code {
		return TokenResponse{}, apperr.New(apperr.KindValidation, "verification code invalid or expired")
	}

	var userID string
	err = s.db.QueryRow(ctx, `
		UPDATE users SET is_verified=TRUE, updated_at=NOW()
		WHERE email=$1
		RETURNING id
	`, req.Email).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TokenResponse{}, apperr.New(apperr.KindNotFound, "account not found")
		}
		return TokenResponse{}, err
	}

	if err := s.redis.Del(ctx, otpKey(req.Email)).Err(); err != nil {
		log.Printf("delete verification code for %s: %v", req.Email, err)
	}
	return s.GenerateTokens(ctx, userID)
}

// ResendOTP issues a fresh code for an account that is not verified yet.
func (s *Service) ResendOTP(ctx context.Context, email string) error {
	var verified bool
	err := s.db.QueryRow(ctx, `
		SELECT is_verified FROM users WHERE email=$1
	`, email).Scan(&verified)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.New(apperr.KindNotFound, "account not found")
		}
		return err
	}
	if verified {
		return apperr.New(apperr.KindValidation, "account already verified")
	}
	return s.sendOTP(ctx, email)
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (User, TokenResponse, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users WHERE email = $1
	`, req.Email)

	var user User
	err := row.Scan(&user.ID, &user.Email, &user.Username, &user.PasswordHash, &user.FullName, &user.IsVerified, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, TokenResponse{}, errors.New("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return User{}, TokenResponse{}, errors.New("invalid credentials")
	}
	if !user.IsVerified {
		return User{}, TokenResponse{}, errors.New("email not verified")
	}

	tokens, err := s.GenerateTokens(ctx, user.ID)
	if err != nil {
		return User{}, TokenResponse{}, err
	}
	return user, tokens, nil
}

func (s *Service) GenerateTokens(ctx context.Context, userID string) (TokenResponse, error) {
	access, err := signTokenFn(s, userID, accessTokenTTL)
	if err != nil {
		return TokenResponse{}, err
	}

	refresh, err := signTokenFn(s, userID, refreshTokenTTL)
	if err != nil {
		return TokenResponse{}, err
	}

	if err := s.saveRefreshToken(ctx, refresh, userID, refreshTokenTTL); err != nil {
		return TokenResponse{}, err
	}

	return TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(accessTokenTTL.Seconds()),
	}, nil
}

func (s *Service) ValidateRefreshToken(ctx context.Context, token string) (string, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return "", err
	}

	userID, expiresAt, err := s.lookupRefreshToken(ctx, token)
	if err != nil || userID != claims.UserID || s.now().After(expiresAt) {
		return "", errors.New("refresh token invalid")
	}
	return claims.UserID, nil
}

func (s *Service) ValidateAccessToken(token string) (string, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

func (s *Service) sendOTP(ctx context.Context, email string) error {
	code, err := genOTP()
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, otpKey(email), code, s.otpTTL).Err(); err != nil {
		return err
	}
	if err := s.mailer.SendOTP(ctx, email, code); err != nil {
		log.Printf("send verification code to %s: %v", email, err)
	}
	return nil
}

func otpKey(email string) string {
	return "otp:" + email
}

func (s *Service) signToken(userID string, ttl time.Duration) (string, error) {
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(s.now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(s.now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Service) parseToken(token string) (*Claims, error) {
	parsed, err := parseWithClaimsFn(token, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("token invalid")
	}
	return claims, nil
}

func (s *Service) saveRefreshToken(ctx context.Context, token, userID string, ttl time.Duration) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token, expires_at)
		VALUES ($1,$2,$3,$4)
	`, uuid.NewString(), userID, token, s.now().Add(ttl))
	return err
}

func (s *Service) lookupRefreshToken(ctx context.Context, token string) (string, time.Time, error) {
	row := s.db.QueryRow(ctx, `
		SELECT user_id, expires_at
		FROM refresh_tokens
		WHERE token = $1 AND revoked_at IS NULL
	`, token)
	var userID string
	var expiresAt time.Time
	if err := row.Scan(&userID, &expiresAt); err != nil {
		return "", time.Time{}, err
	}
	return userID, expiresAt, nil
}
