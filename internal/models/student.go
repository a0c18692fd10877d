package models

import "time"

// Student is the persisted row shape. Name, StudentID and Email hold
// ciphertext at rest; the service layer swaps them between plaintext and
// ciphertext at the encryption boundary, the struct itself does not care
// which form it carries.
type Student struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	StudentID    string    `db:"student_id"`
	Email        string    `db:"email"`
	Course       string    `db:"course"`
	Year         int       `db:"year"`
	Image        string    `db:"image"`
	MediaAssetID string    `db:"media_asset_id"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// StudentRecord is the API-facing shape returned to clients. Identity fields
// are plaintext by the time a record leaves the service layer.
type StudentRecord struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	StudentID    string    `json:"studentId"`
	Email        string    `json:"email"`
	Course       string    `json:"course"`
	Year         int       `json:"year"`
	Image        string    `json:"image"`
	ImageAssetID string    `json:"imageAssetId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Record re-keys the row shape into the API shape. Pure structural
// transform: identity fields pass through in whatever form the caller left
// them in (ciphertext before decryption, plaintext after).
func (s Student) Record() StudentRecord {
	return StudentRecord{
		ID:           s.ID,
		Name:         s.Name,
		StudentID:    s.StudentID,
		Email:        s.Email,
		Course:       s.Course,
		Year:         s.Year,
		Image:        s.Image,
		ImageAssetID: s.MediaAssetID,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

// StudentPatch carries the write direction for partial updates: only non-nil
// fields reach the datastore. Identity fields are expected to already be
// ciphertext when the patch hits the repository.
type StudentPatch struct {
	Name         *string
	StudentID    *string
	Email        *string
	Course       *string
	Year         *int
	Image        *string
	MediaAssetID *string
}

// Empty reports whether the patch changes nothing beyond updated_at.
func (p StudentPatch) Empty() bool {
	return p.Name == nil && p.StudentID == nil && p.Email == nil &&
		p.Course == nil && p.Year == nil && p.Image == nil && p.MediaAssetID == nil
}
