package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/alextreichler/bekasberkah/internal/models"
)

const submissionColumns = `id, seller_name, email, phone, seller_city, seller_address, preferred_contact,
	product_name, product_description, category, condition, asking_price, product_photos,
	COALESCE(tracking_code, ''), status, notes, created_at, updated_at`

type SubmissionPatch struct {
	SellerName         *string
	Email              *string
	Phone              *string
	SellerCity         *string
	SellerAddress      *string
	PreferredContact   *string
	ProductName        *string
	ProductDescription *string
	Category           *string
	Condition          *string
	AskingPrice        *int64
	ProductPhotos      *[]string
	Notes              *string
}

// submissionTransitions lists the statuses reachable from each status. An
// approval or rejection can be revoked back to pending.
var submissionTransitions = map[string][]string{
	models.SubmissionPending:  {models.SubmissionApproved, models.SubmissionRejected},
	models.SubmissionApproved: {models.SubmissionPending},
	models.SubmissionRejected: {models.SubmissionPending},
}

func validCondition(c string) bool {
	switch c {
	case models.ConditionExcellent, models.ConditionGood, models.ConditionFair:
		return true
	}
	return false
}

func scanSubmission(row rowScanner) (*models.Submission, error) {
	var sub models.Submission
	var photos string
	var createdAt, updatedAt int64
	err := row.Scan(&sub.ID, &sub.SellerName, &sub.Email, &sub.Phone, &sub.SellerCity, &sub.SellerAddress, &sub.PreferredContact,
		&sub.ProductName, &sub.ProductDescription, &sub.Category, &sub.Condition, &sub.AskingPrice, &photos,
		&sub.TrackingCode, &sub.Status, &sub.Notes, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	sub.ProductPhotos = []string{}
	if photos != "" {
		if err := json.Unmarshal([]byte(photos), &sub.ProductPhotos); err != nil {
			return nil, fmt.Errorf("submission %d: malformed product_photos: %w", sub.ID, err)
		}
	}
	sub.CreatedAt = fromUnix(createdAt)
	sub.UpdatedAt = fromUnix(updatedAt)
	return &sub, nil
}

func (s *Store) querySubmissions(ctx context.Context, where string, args ...any) ([]models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions ` + where + ` ORDER BY created_at DESC, id DESC`
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	submissions := []models.Submission{}
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		submissions = append(submissions, *sub)
	}
	return submissions, rows.Err()
}

func encodePhotos(photos []string) (string, error) {
	if photos == nil {
		photos = []string{}
	}
	b, err := json.Marshal(photos)
	return string(b), err
}

// CreateSubmission inserts sub. A missing tracking code is generated; a
// tracking code already in use yields ErrDuplicate.
func (s *Store) CreateSubmission(ctx context.Context, sub *models.Submission) error {
	if sub.Status == "" {
		sub.Status = models.SubmissionPending
	}
	if _, ok := submissionTransitions[sub.Status]; !ok {
		return fmt.Errorf("%w: submission status %q", ErrInvalidStatus, sub.Status)
	}
	if sub.Condition == "" {
		sub.Condition = models.ConditionGood
	}
	if !validCondition(sub.Condition) {
		return fmt.Errorf("%w: condition %q", ErrInvalidStatus, sub.Condition)
	}
	if sub.TrackingCode == "" {
		sub.TrackingCode = NewTrackingCode()
	} else {
		sub.TrackingCode = NormalizeTrackingCode(sub.TrackingCode)
	}
	now := s.Now()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	if sub.UpdatedAt.IsZero() {
		sub.UpdatedAt = sub.CreatedAt
	}
	photos, err := encodePhotos(sub.ProductPhotos)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO submissions (seller_name, email, phone, seller_city, seller_address, preferred_contact,
			product_name, product_description, category, condition, asking_price, product_photos,
			tracking_code, status, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := s.q.ExecContext(ctx, query, sub.SellerName, sub.Email, sub.Phone, sub.SellerCity, sub.SellerAddress, sub.PreferredContact,
		sub.ProductName, sub.ProductDescription, sub.Category, sub.Condition, sub.AskingPrice, photos,
		sub.TrackingCode, sub.Status, sub.Notes, toUnix(sub.CreatedAt), toUnix(sub.UpdatedAt))
	if err != nil {
		return mapConstraintErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	sub.ID = id
	s.changed(ctx, TableSubmissions)
	return nil
}

func (s *Store) BulkInsertSubmissions(ctx context.Context, submissions []models.Submission) ([]int64, error) {
	ids := make([]int64, 0, len(submissions))
	err := s.WithTx(ctx, func(tx *Store) error {
		for i := range submissions {
			if err := tx.CreateSubmission(ctx, &submissions[i]); err != nil {
				return fmt.Errorf("submission %d: %w", i, err)
			}
			ids = append(ids, submissions[i].ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Store) GetSubmissionByID(ctx context.Context, id int64) (*models.Submission, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id = ?`, id)
	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return sub, err
}

// SubmissionByTrackingCode is the public, unauthenticated status lookup.
func (s *Store) SubmissionByTrackingCode(ctx context.Context, code string) (*models.Submission, error) {
	code = NormalizeTrackingCode(code)
	if code == "" {
		return nil, nil
	}
	row := s.q.QueryRowContext(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE tracking_code = ?`, code)
	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return sub, err
}

func (s *Store) ListSubmissions(ctx context.Context) ([]models.Submission, error) {
	return s.querySubmissions(ctx, "")
}

func (s *Store) SubmissionsByStatus(ctx context.Context, status string) ([]models.Submission, error) {
	return s.querySubmissions(ctx, "WHERE status = ?", status)
}

// SubmissionsByEmail matches the seller email case-insensitively.
func (s *Store) SubmissionsByEmail(ctx context.Context, email string) ([]models.Submission, error) {
	return s.querySubmissions(ctx, "WHERE LOWER(email) = LOWER(?)", email)
}

func (s *Store) UpdateSubmission(ctx context.Context, id int64, patch SubmissionPatch) error {
	if patch.Condition != nil && !validCondition(*patch.Condition) {
		return fmt.Errorf("%w: condition %q", ErrInvalidStatus, *patch.Condition)
	}
	var u setter
	setIf(&u, "seller_name", patch.SellerName)
	setIf(&u, "email", patch.Email)
	setIf(&u, "phone", patch.Phone)
	setIf(&u, "seller_city", patch.SellerCity)
	setIf(&u, "seller_address", patch.SellerAddress)
	setIf(&u, "preferred_contact", patch.PreferredContact)
	setIf(&u, "product_name", patch.ProductName)
	setIf(&u, "product_description", patch.ProductDescription)
	setIf(&u, "category", patch.Category)
	setIf(&u, "condition", patch.Condition)
	setIf(&u, "asking_price", patch.AskingPrice)
	setIf(&u, "notes", patch.Notes)
	if patch.ProductPhotos != nil {
		photos, err := encodePhotos(*patch.ProductPhotos)
		if err != nil {
			return err
		}
		u.set("product_photos", photos)
	}
	u.set("updated_at", toUnix(s.Now()))
	return s.updateRow(ctx, TableSubmissions, id, u)
}

// UpdateSubmissionStatus moves a submission through pending -> approved|rejected
// (and back to pending). notes, when non-nil, replaces the admin notes.
func (s *Store) UpdateSubmissionStatus(ctx context.Context, id int64, status string, notes *string) error {
	if _, ok := submissionTransitions[status]; !ok {
		return fmt.Errorf("%w: submission status %q", ErrInvalidStatus, status)
	}
	return s.WithTx(ctx, func(tx *Store) error {
		current, err := tx.GetSubmissionByID(ctx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return fmt.Errorf("%s %d: %w", TableSubmissions, id, ErrNotFound)
		}
		if current.Status != status && !allowed(submissionTransitions, current.Status, status) {
			return fmt.Errorf("%w: submission %s -> %s", ErrInvalidTransition, current.Status, status)
		}

		var u setter
		u.set("status", status)
		setIf(&u, "notes", notes)
		u.set("updated_at", toUnix(tx.Now()))
		return tx.updateRow(ctx, TableSubmissions, id, u)
	})
}

func (s *Store) DeleteSubmission(ctx context.Context, id int64) error {
	return s.deleteRow(ctx, TableSubmissions, id)
}

func allowed(transitions map[string][]string, from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
