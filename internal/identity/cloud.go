package identity

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"liquid-tasks/internal/models"
	"liquid-tasks/internal/store"
	"liquid-tasks/internal/utils"
)

const minPasswordLength = 8

// CloudProvider authenticates against the account database and keeps the
// resolved identity on this device by persisting a signed session token in
// the local store, so a restart resumes the signed-in state.
type CloudProvider struct {
	db     *gorm.DB
	local  *store.Store
	secret string
	ttl    time.Duration

	mu      sync.Mutex
	current *models.Identity
	subs    map[int64]func(*models.Identity)
	nextSub int64

	// mail delivers a verification token to an address. Defaults to logging;
	// main wires it to the job queue.
	mail func(email, token string)
}

func NewCloudProvider(db *gorm.DB, local *store.Store, secret string, ttl time.Duration) *CloudProvider {
	p := &CloudProvider{
		db:     db,
		local:  local,
		secret: secret,
		ttl:    ttl,
		subs:   make(map[int64]func(*models.Identity)),
	}
	p.restoreSession()
	return p
}

// SetMailFunc overrides verification mail delivery.
func (p *CloudProvider) SetMailFunc(fn func(email, token string)) {
	p.mu.Lock()
	p.mail = fn
	p.mu.Unlock()
}

func (p *CloudProvider) OnChange(fn func(*models.Identity)) (remove func()) {
	p.mu.Lock()
	p.nextSub++
	id := p.nextSub
	p.subs[id] = fn
	current := cloneIdentity(p.current)
	p.mu.Unlock()

	// Deliver the current state right away so new listeners resolve their
	// Unknown state without waiting for the next transition.
	fn(current)

	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

func (p *CloudProvider) SignUp(ctx context.Context, email, password string) (*models.Identity, error) {
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("invalid email address")
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	var existing models.Account
	err := p.db.WithContext(ctx).Where("email = ?", email).First(&existing).Error
	if err == nil {
		return nil, ErrEmailInUse
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("account lookup failed: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("password hashing failed: %w", err)
	}

	account := models.Account{
		ID:           uuid.Must(uuid.NewV4()),
		Email:        email,
		PasswordHash: string(hash),
		VerifyToken:  uuid.Must(uuid.NewV4()).String(),
		Provider:     "password",
	}
	if err := p.db.WithContext(ctx).Create(&account).Error; err != nil {
		return nil, fmt.Errorf("account creation failed: %w", err)
	}

	p.deliverVerification(account.Email, account.VerifyToken)

	return p.setCurrent(&account), nil
}

func (p *CloudProvider) SignIn(ctx context.Context, email, password string) (*models.Identity, error) {
	email = normalizeEmail(email)

	var account models.Account
	err := p.db.WithContext(ctx).Where("email = ?", email).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("account lookup failed: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	return p.setCurrent(&account), nil
}

// SignInFederated accepts a profile already verified by an upstream provider
// and maps it onto an account. Federated accounts are email-verified by
// construction.
func (p *CloudProvider) SignInFederated(ctx context.Context, provider, email, displayName, photoURL string) (*models.Identity, error) {
	email = normalizeEmail(email)
	if provider == "" || email == "" {
		return nil, fmt.Errorf("federated sign-in requires provider and email")
	}

	var account models.Account
	err := p.db.WithContext(ctx).Where("email = ?", email).First(&account).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		account = models.Account{
			ID:            uuid.Must(uuid.NewV4()),
			Email:         email,
			DisplayName:   displayName,
			PhotoURL:      photoURL,
			EmailVerified: true,
			Provider:      provider,
		}
		if err := p.db.WithContext(ctx).Create(&account).Error; err != nil {
			return nil, fmt.Errorf("account creation failed: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("account lookup failed: %w", err)
	default:
		account.EmailVerified = true
		if displayName != "" {
			account.DisplayName = displayName
		}
		if photoURL != "" {
			account.PhotoURL = photoURL
		}
		if err := p.db.WithContext(ctx).Save(&account).Error; err != nil {
			return nil, fmt.Errorf("account update failed: %w", err)
		}
	}

	return p.setCurrent(&account), nil
}

func (p *CloudProvider) SignOut(ctx context.Context) error {
	if err := p.local.Delete(store.KeySession); err != nil {
		log.Printf("⚠️  Failed to clear session token: %v", err)
	}

	p.mu.Lock()
	p.current = nil
	p.mu.Unlock()
	p.fire()
	return nil
}

func (p *CloudProvider) Current() *models.Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	return cloneIdentity(p.current)
}

// Reload re-reads the account row, picking up verification-status changes.
func (p *CloudProvider) Reload(ctx context.Context) (*models.Identity, error) {
	current := p.Current()
	if current == nil {
		return nil, ErrNotSignedIn
	}

	var account models.Account
	if err := p.db.WithContext(ctx).First(&account, "id = ?", current.ID).Error; err != nil {
		return nil, fmt.Errorf("account reload failed: %w", err)
	}
	return p.setCurrent(&account), nil
}

func (p *CloudProvider) SendVerification(ctx context.Context) error {
	current := p.Current()
	if current == nil {
		return ErrNotSignedIn
	}

	var account models.Account
	if err := p.db.WithContext(ctx).First(&account, "id = ?", current.ID).Error; err != nil {
		return fmt.Errorf("account lookup failed: %w", err)
	}
	if account.EmailVerified {
		return nil
	}
	if account.VerifyToken == "" {
		account.VerifyToken = uuid.Must(uuid.NewV4()).String()
		if err := p.db.WithContext(ctx).Save(&account).Error; err != nil {
			return fmt.Errorf("verification token update failed: %w", err)
		}
	}

	p.deliverVerification(account.Email, account.VerifyToken)
	return nil
}

func (p *CloudProvider) ConfirmVerification(ctx context.Context, token string) (*models.Identity, error) {
	if token == "" {
		return nil, fmt.Errorf("verification token is required")
	}

	var account models.Account
	err := p.db.WithContext(ctx).Where("verify_token = ?", token).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("invalid verification token")
	}
	if err != nil {
		return nil, fmt.Errorf("account lookup failed: %w", err)
	}

	account.EmailVerified = true
	account.VerifyToken = ""
	if err := p.db.WithContext(ctx).Save(&account).Error; err != nil {
		return nil, fmt.Errorf("verification update failed: %w", err)
	}

	p.mu.Lock()
	sameUser := p.current != nil && p.current.ID == account.ID.String()
	p.mu.Unlock()
	if sameUser {
		return p.setCurrent(&account), nil
	}
	return account.Identity(), nil
}

func (p *CloudProvider) setCurrent(account *models.Account) *models.Identity {
	id := account.Identity()

	token, err := signSessionToken(id.ID, p.secret, p.ttl)
	if err != nil {
		log.Printf("⚠️  Failed to sign session token: %v", err)
	} else if err := p.local.Set(store.KeySession, token); err != nil {
		log.Printf("⚠️  Failed to persist session token: %v", err)
	}

	p.mu.Lock()
	p.current = id
	p.mu.Unlock()
	p.fire()
	return cloneIdentity(id)
}

func (p *CloudProvider) fire() {
	p.mu.Lock()
	current := p.current
	fns := make([]func(*models.Identity), 0, len(p.subs))
	for _, fn := range p.subs {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(cloneIdentity(current))
	}
}

func (p *CloudProvider) restoreSession() {
	token, ok, err := p.local.Get(store.KeySession)
	if err != nil || !ok || token == "" {
		return
	}

	claims, err := utils.ParseJWT(token, p.secret)
	if err != nil {
		log.Printf("⚠️  Stored session token invalid, discarding: %v", err)
		p.local.Delete(store.KeySession)
		return
	}
	sub, _ := claims["sub"].(string)
	if !utils.IsValidUUID(sub) {
		p.local.Delete(store.KeySession)
		return
	}

	var account models.Account
	if err := p.db.First(&account, "id = ?", sub).Error; err != nil {
		log.Printf("⚠️  Session account %s not found: %v", sub, err)
		p.local.Delete(store.KeySession)
		return
	}

	p.mu.Lock()
	p.current = account.Identity()
	p.mu.Unlock()
	log.Printf("✅ Restored session for %s", account.Email)
}

func (p *CloudProvider) deliverVerification(email, token string) {
	p.mu.Lock()
	mail := p.mail
	p.mu.Unlock()

	if mail != nil {
		mail(email, token)
		return
	}
	log.Printf("📧 Verification token for %s: %s", email, token)
}

func signSessionToken(userID, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
		"iss": "liquid-tasks",
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return ErrWeakPassword
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func cloneIdentity(id *models.Identity) *models.Identity {
	if id == nil {
		return nil
	}
	clone := *id
	return &clone
}
