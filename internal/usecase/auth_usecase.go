package usecase

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"shop/internal/config"
	"shop/internal/domain/model"
	"shop/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// パスワード再設定トークンの有効期限
const resetTokenTTL = time.Hour

const minPasswordLen = 5

// 認証まわりのメール
type Mailer interface {
	SendSignupConfirmation(ctx context.Context, to string) error
	SendPasswordReset(ctx context.Context, to, link string) error
}

type UserDTO struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type LoginResult struct {
	User        UserDTO `json:"user"`
	AccessToken string  `json:"access_token"`
	ExpiresIn   int     `json:"expires_in"`
}

type SignupInput struct {
	Email           string
	Password        string
	ConfirmPassword string
}

type AuthUsecase struct {
	cfg    config.Config
	users  repository.UserRepository
	carts  repository.CartRepository
	mailer Mailer
	log    *zap.Logger
	now    func() time.Time
}

func NewAuthUsecase(
	cfg config.Config,
	users repository.UserRepository,
	carts repository.CartRepository,
	mailer Mailer,
	log *zap.Logger,
) *AuthUsecase {
	return &AuthUsecase{
		cfg:    cfg,
		users:  users,
		carts:  carts,
		mailer: mailer,
		log:    log,
		now:    time.Now,
	}
}

// Signup はユーザーと空のカートを作り、確認メールを送る
func (u *AuthUsecase) Signup(ctx context.Context, in SignupInput) (UserDTO, error) {
	const op = "auth.Signup"

	email, err := normalizeEmail(in.Email)
	if err != nil {
		return UserDTO{}, newError(KindValidation, op, "please enter a valid email", err)
	}
	if len(in.Password) < minPasswordLen {
		return UserDTO{}, newError(KindValidation, op, fmt.Sprintf("password must be at least %d characters", minPasswordLen), nil)
	}
	if in.Password != in.ConfirmPassword {
		return UserDTO{}, newError(KindValidation, op, "passwords have to match", nil)
	}

	//パスワードは必ずハッシュ化して保存（平文保存しない）
	pwHash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return UserDTO{}, newError(KindPersistence, op, "hash password", err)
	}

	user := &model.User{
		Email:        email,
		PasswordHash: string(pwHash),
		Role:         model.RoleUser,
	}
	if err := u.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return UserDTO{}, newError(KindConflict, op, "email exists already", err)
		}
		return UserDTO{}, fromRepo(op, "create user", err)
	}

	//空のカート（既にあれば何もしない）
	if err := u.carts.Save(ctx, model.NewCart(user.ID)); err != nil && !errors.Is(err, repository.ErrConflict) {
		return UserDTO{}, fromRepo(op, fmt.Sprintf("create cart of user %d", user.ID), err)
	}

	//メールが送れなくても登録は成功
	if err := u.mailer.SendSignupConfirmation(ctx, user.Email); err != nil {
		u.log.Warn("signup mail failed", zap.Int64("user_id", user.ID), zap.Error(err))
	}

	u.log.Info("user signed up", zap.Int64("user_id", user.ID))
	return toUserDTO(user), nil
}

// Login はメールとパスワードを照合してアクセストークンを発行する
func (u *AuthUsecase) Login(ctx context.Context, email, password string) (LoginResult, error) {
	const op = "auth.Login"

	normalized, err := normalizeEmail(email)
	if err != nil || password == "" {
		return LoginResult{}, newError(KindValidation, op, "invalid email or password", err)
	}

	user, err := u.users.FindByEmail(ctx, normalized)
	if errors.Is(err, repository.ErrNotFound) {
		return LoginResult{}, newError(KindUnauthorized, op, "invalid email or password", nil)
	}
	if err != nil {
		return LoginResult{}, fromRepo(op, "find user", err)
	}

	//パスワード照合（bcrypt）
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return LoginResult{}, newError(KindUnauthorized, op, "invalid email or password", nil)
	}

	token, expiresIn, err := u.issueAccessToken(user)
	if err != nil {
		return LoginResult{}, newError(KindPersistence, op, "sign token", err)
	}

	return LoginResult{
		User:        toUserDTO(user),
		AccessToken: token,
		ExpiresIn:   expiresIn,
	}, nil
}

// RequestPasswordReset はトークンを発行してリンクをメールする。
// 登録のないメールでも同じ応答にする。
func (u *AuthUsecase) RequestPasswordReset(ctx context.Context, email string) error {
	const op = "auth.RequestReset"

	normalized, err := normalizeEmail(email)
	if err != nil {
		return newError(KindValidation, op, "please enter a valid email", err)
	}

	user, err := u.users.FindByEmail(ctx, normalized)
	if errors.Is(err, repository.ErrNotFound) {
		u.log.Info("password reset for unknown email")
		return nil
	}
	if err != nil {
		return fromRepo(op, "find user", err)
	}

	token, err := newResetToken()
	if err != nil {
		return newError(KindPersistence, op, "generate reset token", err)
	}
	exp := u.now().Add(resetTokenTTL)
	user.ResetToken = &token
	user.ResetTokenExpiration = &exp

	if err := u.users.Update(ctx, user); err != nil {
		return fromRepo(op, fmt.Sprintf("update user %d", user.ID), err)
	}

	link := strings.TrimRight(u.cfg.AppBaseURL, "/") + "/reset/" + token
	if err := u.mailer.SendPasswordReset(ctx, user.Email, link); err != nil {
		return newError(KindPersistence, op, "send reset mail", err)
	}
	return nil
}

// ResetPassword は有効なトークンでパスワードを変える。
// token_versionを進めるので発行済みのアクセストークンは使えなくなる。
func (u *AuthUsecase) ResetPassword(ctx context.Context, token, password string) error {
	const op = "auth.ResetPassword"

	if strings.TrimSpace(token) == "" {
		return newError(KindValidation, op, "reset token is required", nil)
	}
	if len(password) < minPasswordLen {
		return newError(KindValidation, op, fmt.Sprintf("password must be at least %d characters", minPasswordLen), nil)
	}

	user, err := u.users.FindByResetToken(ctx, token, u.now())
	if errors.Is(err, repository.ErrNotFound) {
		return newError(KindNotFound, op, "reset token is invalid or expired", nil)
	}
	if err != nil {
		return fromRepo(op, "find user by reset token", err)
	}

	pwHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return newError(KindPersistence, op, "hash password", err)
	}

	user.PasswordHash = string(pwHash)
	user.ResetToken = nil
	user.ResetTokenExpiration = nil
	user.TokenVersion++

	if err := u.users.Update(ctx, user); err != nil {
		return fromRepo(op, fmt.Sprintf("update user %d", user.ID), err)
	}

	u.log.Info("password reset", zap.Int64("user_id", user.ID))
	return nil
}

// jwt発行
func (u *AuthUsecase) issueAccessToken(user *model.User) (string, int, error) {
	now := u.now()
	ttl := u.cfg.TokenTTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	claims := jwt.MapClaims{
		"sub":   strconv.FormatInt(user.ID, 10),
		"email": user.Email,
		"role":  string(user.Role),
		"tv":    user.TokenVersion,
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(u.cfg.JWTSecret))
	if err != nil {
		return "", 0, err
	}
	return signed, int(ttl.Seconds()), nil
}

func normalizeEmail(email string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil {
		return "", err
	}
	//表示名付き（"A <a@b>"）は受け付けない
	if addr.Name != "" || addr.Address != strings.TrimSpace(email) {
		return "", errors.New("bare address expected")
	}
	return strings.ToLower(addr.Address), nil
}

// 32バイトの乱数をhexにしたもの
func newResetToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func toUserDTO(u *model.User) UserDTO {
	return UserDTO{
		ID:    u.ID,
		Email: u.Email,
		Role:  string(u.Role),
	}
}
