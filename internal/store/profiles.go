package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/alextreichler/bekasberkah/internal/models"
)

const (
	profileColumns  = `id, email, email_lower, name, phone, address, member_since, role, created_at, updated_at`
	settingsColumns = `id, email, email_lower, email_updates, sms_updates, marketing_tips, dark_mode, updated_at`
)

// NormalizeEmail is the key profiles and settings are deduplicated on.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func scanProfile(row rowScanner) (*models.UserProfile, error) {
	var p models.UserProfile
	var createdAt, updatedAt int64
	if err := row.Scan(&p.ID, &p.Email, &p.EmailLower, &p.Name, &p.Phone, &p.Address, &p.MemberSince, &p.Role, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	p.CreatedAt = fromUnix(createdAt)
	p.UpdatedAt = fromUnix(updatedAt)
	return &p, nil
}

func scanSettings(row rowScanner) (*models.UserSettings, error) {
	var st models.UserSettings
	var updatedAt int64
	if err := row.Scan(&st.ID, &st.Email, &st.EmailLower, &st.EmailUpdates, &st.SMSUpdates, &st.MarketingTips, &st.DarkMode, &updatedAt); err != nil {
		return nil, err
	}
	st.UpdatedAt = fromUnix(updatedAt)
	return &st, nil
}

// CreateProfile inserts p. A second profile for the same normalized email
// yields ErrDuplicate.
func (s *Store) CreateProfile(ctx context.Context, p *models.UserProfile) error {
	p.EmailLower = NormalizeEmail(p.Email)
	if p.EmailLower == "" {
		return errors.New("profile email is required")
	}
	now := s.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO profiles (email, email_lower, name, phone, address, member_since, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Email, p.EmailLower, p.Name, p.Phone, p.Address, p.MemberSince, p.Role, toUnix(p.CreatedAt), toUnix(p.UpdatedAt))
	if err != nil {
		return mapConstraintErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = id
	s.changed(ctx, TableProfiles)
	return nil
}

func (s *Store) GetProfileByID(ctx context.Context, id int64) (*models.UserProfile, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = ?`, id)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

// ProfileByEmail looks a profile up by normalized email; nil when absent.
func (s *Store) ProfileByEmail(ctx context.Context, email string) (*models.UserProfile, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE email_lower = ?`, NormalizeEmail(email))
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (s *Store) ListProfiles(ctx context.Context) ([]models.UserProfile, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+profileColumns+` FROM profiles ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	profiles := []models.UserProfile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *p)
	}
	return profiles, rows.Err()
}

// UpsertProfile writes p onto the row found under previousEmail (or p.Email
// when previousEmail is empty), moving it to p's email if that changed. With
// no such row a new one is created. An empty p.Role keeps the stored role.
func (s *Store) UpsertProfile(ctx context.Context, p *models.UserProfile, previousEmail string) error {
	lookup := previousEmail
	if strings.TrimSpace(lookup) == "" {
		lookup = p.Email
	}
	return s.WithTx(ctx, func(tx *Store) error {
		existing, err := tx.ProfileByEmail(ctx, lookup)
		if err != nil {
			return err
		}
		if existing == nil {
			p.ID = 0
			p.CreatedAt = tx.Now()
			p.UpdatedAt = p.CreatedAt
			return tx.CreateProfile(ctx, p)
		}

		p.ID = existing.ID
		p.CreatedAt = existing.CreatedAt
		p.EmailLower = NormalizeEmail(p.Email)
		if p.Role == "" {
			p.Role = existing.Role
		}
		p.UpdatedAt = tx.Now()

		var u setter
		u.set("email", p.Email)
		u.set("email_lower", p.EmailLower)
		u.set("name", p.Name)
		u.set("phone", p.Phone)
		u.set("address", p.Address)
		u.set("member_since", p.MemberSince)
		u.set("role", p.Role)
		u.set("updated_at", toUnix(p.UpdatedAt))
		return tx.updateRow(ctx, TableProfiles, existing.ID, u)
	})
}

func (s *Store) DeleteProfileByEmail(ctx context.Context, email string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM profiles WHERE email_lower = ?`, NormalizeEmail(email))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.changed(ctx, TableProfiles)
	}
	return nil
}

func (s *Store) CreateSettings(ctx context.Context, st *models.UserSettings) error {
	st.EmailLower = NormalizeEmail(st.Email)
	if st.EmailLower == "" {
		return errors.New("settings email is required")
	}
	if st.DarkMode == "" {
		st.DarkMode = "system"
	}
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = s.Now()
	}
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO settings (email, email_lower, email_updates, sms_updates, marketing_tips, dark_mode, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		st.Email, st.EmailLower, st.EmailUpdates, st.SMSUpdates, st.MarketingTips, st.DarkMode, toUnix(st.UpdatedAt))
	if err != nil {
		return mapConstraintErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	st.ID = id
	s.changed(ctx, TableSettings)
	return nil
}

func (s *Store) SettingsByEmail(ctx context.Context, email string) (*models.UserSettings, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+settingsColumns+` FROM settings WHERE email_lower = ?`, NormalizeEmail(email))
	st, err := scanSettings(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return st, err
}

// UpsertSettings mirrors UpsertProfile for the settings table.
func (s *Store) UpsertSettings(ctx context.Context, st *models.UserSettings, previousEmail string) error {
	lookup := previousEmail
	if strings.TrimSpace(lookup) == "" {
		lookup = st.Email
	}
	return s.WithTx(ctx, func(tx *Store) error {
		existing, err := tx.SettingsByEmail(ctx, lookup)
		if err != nil {
			return err
		}
		if existing == nil {
			st.ID = 0
			st.UpdatedAt = tx.Now()
			return tx.CreateSettings(ctx, st)
		}

		st.ID = existing.ID
		st.EmailLower = NormalizeEmail(st.Email)
		if st.DarkMode == "" {
			st.DarkMode = existing.DarkMode
		}
		st.UpdatedAt = tx.Now()

		var u setter
		u.set("email", st.Email)
		u.set("email_lower", st.EmailLower)
		u.set("email_updates", st.EmailUpdates)
		u.set("sms_updates", st.SMSUpdates)
		u.set("marketing_tips", st.MarketingTips)
		u.set("dark_mode", st.DarkMode)
		u.set("updated_at", toUnix(st.UpdatedAt))
		return tx.updateRow(ctx, TableSettings, existing.ID, u)
	})
}

func (s *Store) DeleteSettingsByEmail(ctx context.Context, email string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM settings WHERE email_lower = ?`, NormalizeEmail(email))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.changed(ctx, TableSettings)
	}
	return nil
}

// DeleteUser removes both the profile and settings rows of an email.
func (s *Store) DeleteUser(ctx context.Context, email string) error {
	return s.WithTx(ctx, func(tx *Store) error {
		if err := tx.DeleteProfileByEmail(ctx, email); err != nil {
			return fmt.Errorf("failed to delete profile: %w", err)
		}
		if err := tx.DeleteSettingsByEmail(ctx, email); err != nil {
			return fmt.Errorf("failed to delete settings: %w", err)
		}
		return nil
	})
}

type ProfilePatch struct {
	Email       *string
	Name        *string
	Phone       *string
	Address     *string
	MemberSince *string
	Role        *string
}

// UpdateProfile merges patch into the profile. Changing the email also moves
// the normalized key, which may yield ErrDuplicate.
func (s *Store) UpdateProfile(ctx context.Context, id int64, patch ProfilePatch) error {
	var u setter
	if patch.Email != nil {
		u.set("email", *patch.Email)
		u.set("email_lower", NormalizeEmail(*patch.Email))
	}
	setIf(&u, "name", patch.Name)
	setIf(&u, "phone", patch.Phone)
	setIf(&u, "address", patch.Address)
	setIf(&u, "member_since", patch.MemberSince)
	setIf(&u, "role", patch.Role)
	u.set("updated_at", toUnix(s.Now()))
	return s.updateRow(ctx, TableProfiles, id, u)
}

func (s *Store) DeleteProfile(ctx context.Context, id int64) error {
	return s.deleteRow(ctx, TableProfiles, id)
}

func (s *Store) BulkInsertProfiles(ctx context.Context, profiles []models.UserProfile) ([]int64, error) {
	ids := make([]int64, 0, len(profiles))
	err := s.WithTx(ctx, func(tx *Store) error {
		for i := range profiles {
			if err := tx.CreateProfile(ctx, &profiles[i]); err != nil {
				return fmt.Errorf("profile %d: %w", i, err)
			}
			ids = append(ids, profiles[i].ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

type SettingsPatch struct {
	EmailUpdates  *bool
	SMSUpdates    *bool
	MarketingTips *bool
	DarkMode      *string
}

func (s *Store) GetSettingsByID(ctx context.Context, id int64) (*models.UserSettings, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+settingsColumns+` FROM settings WHERE id = ?`, id)
	st, err := scanSettings(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return st, err
}

func (s *Store) ListSettings(ctx context.Context) ([]models.UserSettings, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+settingsColumns+` FROM settings ORDER BY updated_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.UserSettings{}
	for rows.Next() {
		st, err := scanSettings(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *st)
	}
	return out, rows.Err()
}

func (s *Store) UpdateSettings(ctx context.Context, id int64, patch SettingsPatch) error {
	var u setter
	setIf(&u, "email_updates", patch.EmailUpdates)
	setIf(&u, "sms_updates", patch.SMSUpdates)
	setIf(&u, "marketing_tips", patch.MarketingTips)
	setIf(&u, "dark_mode", patch.DarkMode)
	u.set("updated_at", toUnix(s.Now()))
	return s.updateRow(ctx, TableSettings, id, u)
}

func (s *Store) DeleteSettings(ctx context.Context, id int64) error {
	return s.deleteRow(ctx, TableSettings, id)
}

func (s *Store) BulkInsertSettings(ctx context.Context, settings []models.UserSettings) ([]int64, error) {
	ids := make([]int64, 0, len(settings))
	err := s.WithTx(ctx, func(tx *Store) error {
		for i := range settings {
			if err := tx.CreateSettings(ctx, &settings[i]); err != nil {
				return fmt.Errorf("settings %d: %w", i, err)
			}
			ids = append(ids, settings[i].ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}
