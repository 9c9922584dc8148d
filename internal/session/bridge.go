// Package session keeps the cached demo user (profile, settings, login flag)
// in step with the profiles and settings tables.
//
// The cache is authoritative the first time an email is seen; after that the
// database row wins and the cache is refreshed from it.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alextreichler/bekasberkah/internal/changefeed"
	"github.com/alextreichler/bekasberkah/internal/models"
	"github.com/alextreichler/bekasberkah/internal/store"
	"golang.org/x/sync/errgroup"
)

const (
	ProfileKey  = "bb_demo_profile"
	SettingsKey = "bb_demo_settings"
	LoginKey    = "bb_demo_logged_in"
	UserKey     = "user"
)

var (
	ErrNotLoggedIn        = errors.New("not logged in")
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUserGone means the rows were removed, usually by a concurrent
	// Logout, while ResolveCurrentUser was creating them.
	ErrUserGone = errors.New("user rows removed while resolving")
)

type Profile struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
	MemberSince string `json:"memberSince"`
}

type Settings struct {
	EmailUpdates  bool   `json:"emailUpdates"`
	SMSUpdates    bool   `json:"smsUpdates"`
	MarketingTips bool   `json:"marketingTips"`
	DarkMode      string `json:"darkMode"`
}

var DefaultProfile = Profile{
	Name:        "Rina Kusuma",
	Email:       "rina.kusuma@gmail.com",
	Phone:       "0821-4567-8901",
	Address:     "Jl. Ahmad Yani No. 45, Semarang",
	MemberSince: "12 Januari 2024",
}

var DefaultSettings = Settings{
	EmailUpdates:  true,
	SMSUpdates:    false,
	MarketingTips: true,
	DarkMode:      "system",
}

type EventKind string

const (
	EventLogin    EventKind = "login"
	EventLogout   EventKind = "logout"
	EventProfile  EventKind = "profile"
	EventSettings EventKind = "settings"
)

// Event is broadcast after every change to the cached user.
type Event struct {
	Kind  EventKind
	Email string
}

type CurrentUser struct {
	Role     string
	Profile  *models.UserProfile
	Settings *models.UserSettings
}

// userBlob is the cached authentication marker written at login.
type userBlob struct {
	Email           string `json:"email"`
	Name            string `json:"name"`
	Role            string `json:"role"`
	IsAuthenticated bool   `json:"isAuthenticated"`
}

type Bridge struct {
	storage Storage
	store   *store.Store
	logger  *slog.Logger
	events  changefeed.Hub[Event]
	cart    *Cart
}

type BridgeOption func(*Bridge)

func WithBridgeLogger(logger *slog.Logger) BridgeOption {
	return func(b *Bridge) {
		b.logger = logger
	}
}

func NewBridge(storage Storage, st *store.Store, opts ...BridgeOption) *Bridge {
	b := &Bridge{storage: storage, store: st, logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	b.cart = &Cart{storage: storage, logger: b.logger}
	return b
}

// OnChange registers fn for every session change and returns its remover.
func (b *Bridge) OnChange(fn func(Event)) func() {
	return b.events.Listen(fn)
}

func (b *Bridge) emit(kind EventKind, email string) {
	b.events.Emit(Event{Kind: kind, Email: email})
}

// loadBlob decodes the cached value of key over def. A missing or malformed
// value leaves def untouched.
func loadBlob[T any](b *Bridge, key string, def T) T {
	raw, ok := b.storage.Get(key)
	if !ok || raw == "" {
		return def
	}
	out := def
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		b.logger.Warn("Ignoring malformed session data", "key", key, "error", err)
		return def
	}
	return out
}

func (b *Bridge) storeBlob(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := b.storage.Set(key, string(raw)); err != nil {
		return fmt.Errorf("failed to cache %s: %w", key, err)
	}
	return nil
}

// LoadProfile returns the cached profile merged over the defaults.
func (b *Bridge) LoadProfile() Profile {
	return loadBlob(b, ProfileKey, DefaultProfile)
}

// LoadSettings returns the cached settings merged over the defaults.
func (b *Bridge) LoadSettings() Settings {
	return loadBlob(b, SettingsKey, DefaultSettings)
}

// IsLoggedIn reports whether the demo user is signed in. Only an explicit
// "false" means logged out, so a first visit gets the default demo profile.
func (b *Bridge) IsLoggedIn() bool {
	v, ok := b.storage.Get(LoginKey)
	return !ok || v != "false"
}

// Role returns the cached role, or "" when no valid user blob is cached.
func (b *Bridge) Role() string {
	u := loadBlob(b, UserKey, userBlob{})
	if u.Role == "admin" || u.Role == "user" {
		return u.Role
	}
	return ""
}

func (b *Bridge) setLoggedIn(v bool) error {
	flag := "false"
	if v {
		flag = "true"
	}
	if err := b.storage.Set(LoginKey, flag); err != nil {
		return fmt.Errorf("failed to cache login flag: %w", err)
	}
	return nil
}

// SignIn caches p as the current user and sets the login flag. Database rows
// are materialized by the next ResolveCurrentUser.
func (b *Bridge) SignIn(ctx context.Context, p Profile, role string) error {
	if strings.TrimSpace(p.Email) == "" {
		return errors.New("email is required")
	}
	if err := b.storeBlob(UserKey, userBlob{Email: p.Email, Name: p.Name, Role: role, IsAuthenticated: true}); err != nil {
		return err
	}
	if err := b.storeBlob(ProfileKey, p); err != nil {
		return err
	}
	if err := b.setLoggedIn(true); err != nil {
		return err
	}
	b.logger.Info("Signed in", "email", p.Email, "role", role)
	b.emit(EventLogin, p.Email)
	return nil
}

// ResolveCurrentUser returns the logged-in user, creating the profile and
// settings rows from the cache if this email has not been seen before.
func (b *Bridge) ResolveCurrentUser(ctx context.Context) (*CurrentUser, error) {
	if !b.IsLoggedIn() {
		return nil, ErrNotLoggedIn
	}
	cached := b.LoadProfile()
	cachedSettings := b.LoadSettings()
	role := b.Role()

	user := &CurrentUser{Role: role}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := b.ensureProfile(gctx, cached, role)
		user.Profile = p
		return err
	})
	g.Go(func() error {
		st, err := b.ensureSettings(gctx, cached.Email, cachedSettings)
		user.Settings = st
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if user.Role == "" {
		user.Role = user.Profile.Role
	}
	return user, nil
}

func (b *Bridge) ensureProfile(ctx context.Context, cached Profile, role string) (*models.UserProfile, error) {
	row, err := b.store.ProfileByEmail(ctx, cached.Email)
	if err != nil {
		return nil, err
	}
	if row == nil {
		row = profileRow(cached, role)
		err := b.store.CreateProfile(ctx, row)
		if errors.Is(err, store.ErrDuplicate) {
			// Created concurrently by another resolver; use theirs.
			return refetch(ctx, cached.Email, b.store.ProfileByEmail)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create profile: %w", err)
		}
		b.logger.Info("Created profile on first visit", "email", row.Email)
		return row, nil
	}

	fromDB := Profile{Name: row.Name, Email: row.Email, Phone: row.Phone, Address: row.Address, MemberSince: row.MemberSince}
	if fromDB != cached {
		if err := b.storeBlob(ProfileKey, fromDB); err != nil {
			return nil, err
		}
	}
	return row, nil
}

func (b *Bridge) ensureSettings(ctx context.Context, email string, cached Settings) (*models.UserSettings, error) {
	row, err := b.store.SettingsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if row == nil {
		row = settingsRow(email, cached)
		err := b.store.CreateSettings(ctx, row)
		if errors.Is(err, store.ErrDuplicate) {
			return refetch(ctx, email, b.store.SettingsByEmail)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create settings: %w", err)
		}
		return row, nil
	}

	fromDB := Settings{EmailUpdates: row.EmailUpdates, SMSUpdates: row.SMSUpdates, MarketingTips: row.MarketingTips, DarkMode: row.DarkMode}
	if fromDB != cached {
		if err := b.storeBlob(SettingsKey, fromDB); err != nil {
			return nil, err
		}
	}
	return row, nil
}

// refetch re-reads a row another writer just created. The row may already be
// gone again, which is reported as ErrUserGone rather than a nil row.
func refetch[T any](ctx context.Context, email string, get func(context.Context, string) (*T, error)) (*T, error) {
	row, err := get(ctx, email)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("%s: %w", email, ErrUserGone)
	}
	return row, nil
}

// SaveProfile caches p and writes it to the row of the email that was current
// before the edit, so changing the email moves the row (and its settings).
func (b *Bridge) SaveProfile(ctx context.Context, p Profile) error {
	if strings.TrimSpace(p.Email) == "" {
		return errors.New("email is required")
	}
	previous := b.LoadProfile()

	err := b.store.WithTx(ctx, func(tx *store.Store) error {
		if err := tx.UpsertProfile(ctx, profileRow(p, b.Role()), previous.Email); err != nil {
			return err
		}
		if store.NormalizeEmail(previous.Email) == store.NormalizeEmail(p.Email) {
			return nil
		}
		existing, err := tx.SettingsByEmail(ctx, previous.Email)
		if err != nil || existing == nil {
			return err
		}
		existing.Email = p.Email
		return tx.UpsertSettings(ctx, existing, previous.Email)
	})
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}

	if err := b.storeBlob(ProfileKey, p); err != nil {
		return err
	}
	b.emit(EventProfile, p.Email)
	return nil
}

// SaveSettings caches s and writes it to the current user's settings row.
func (b *Bridge) SaveSettings(ctx context.Context, s Settings) error {
	current := b.LoadProfile()
	if err := b.store.UpsertSettings(ctx, settingsRow(current.Email, s), current.Email); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	if err := b.storeBlob(SettingsKey, s); err != nil {
		return err
	}
	b.emit(EventSettings, current.Email)
	return nil
}

// Logout deletes the current user's profile and settings rows, clears the
// cache and broadcasts the change. Deleting rather than deactivating is a
// demo simplification.
func (b *Bridge) Logout(ctx context.Context) error {
	current := b.LoadProfile()
	if err := b.store.DeleteUser(ctx, current.Email); err != nil {
		return fmt.Errorf("failed to delete user rows: %w", err)
	}

	for _, key := range []string{ProfileKey, SettingsKey, UserKey} {
		if err := b.storage.Remove(key); err != nil {
			return fmt.Errorf("failed to clear %s: %w", key, err)
		}
	}
	if err := b.setLoggedIn(false); err != nil {
		return err
	}
	b.logger.Info("Logged out", "email", current.Email)
	b.emit(EventLogout, current.Email)
	return nil
}

func profileRow(p Profile, role string) *models.UserProfile {
	return &models.UserProfile{
		Email:       p.Email,
		Name:        p.Name,
		Phone:       p.Phone,
		Address:     p.Address,
		MemberSince: p.MemberSince,
		Role:        role,
	}
}

func settingsRow(email string, s Settings) *models.UserSettings {
	return &models.UserSettings{
		Email:         email,
		EmailUpdates:  s.EmailUpdates,
		SMSUpdates:    s.SMSUpdates,
		MarketingTips: s.MarketingTips,
		DarkMode:      s.DarkMode,
	}
}
