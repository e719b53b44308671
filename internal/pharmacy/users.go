package pharmacy

import (
	"context"
	"regexp"
	"strings"
)

const (
	ErrMsgAuthRequired = "Authentication required: please log in to view user information"
	ErrMsgAccessDenied = "Access denied: you can only view your own information"
)

var (
	selfReferenceWords = map[string]struct{}{
		"my": {}, "me": {}, "mine": {}, "myself": {}, "i": {},
	}
	wordPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)
)

type UserInfoRequest struct {
	Query          string `mapstructure:"query"`
	CallerUserID   string `mapstructure:"caller_user_id"`
	CallerUsername string `mapstructure:"caller_username"`
}

type UserInfoResponse struct {
	Success           bool   `json:"success"`
	Error             string `json:"error,omitempty"`
	UserID            string `json:"user_id,omitempty"`
	Username          string `json:"username,omitempty"`
	Name              string `json:"name,omitempty"`
	Email             string `json:"email,omitempty"`
	Phone             string `json:"phone,omitempty"`
	PrescriptionCount int    `json:"prescription_count"`
}

type UserPrescriptionsRequest struct {
	CallerUserID   string `mapstructure:"caller_user_id"`
	CallerUsername string `mapstructure:"caller_username"`
}

type PrescriptionDetail struct {
	PrescriptionID   string `json:"prescription_id"`
	MedicationID     string `json:"medication_id"`
	MedicationName   string `json:"medication_name"`
	PrescribedBy     string `json:"prescribed_by,omitempty"`
	Issued           string `json:"issued,omitempty"`
	Expires          string `json:"expires,omitempty"`
	RefillsRemaining int    `json:"refills_remaining"`
}

type UserPrescriptionsResponse struct {
	Success       bool                 `json:"success"`
	Error         string               `json:"error,omitempty"`
	UserID        string               `json:"user_id,omitempty"`
	Count         int                  `json:"count"`
	Prescriptions []PrescriptionDetail `json:"prescriptions,omitempty"`
}

// GetUserInfo returns the caller's own record. Queries about anyone else are
// refused.
func (c *Catalog) GetUserInfo(_ context.Context, req UserInfoRequest) (UserInfoResponse, error) {
	user, ok := c.caller(req.CallerUserID)
	if !ok {
		return UserInfoResponse{Error: ErrMsgAuthRequired}, nil
	}
	if !refersToSelf(req.Query, user) {
		return UserInfoResponse{Error: ErrMsgAccessDenied}, nil
	}
	return UserInfoResponse{
		Success:           true,
		UserID:            user.ID,
		Username:          user.Username,
		Name:              user.Name,
		Email:             user.Email,
		Phone:             user.Phone,
		PrescriptionCount: len(user.Prescriptions),
	}, nil
}

// GetUserPrescriptions lists the caller's prescriptions.
func (c *Catalog) GetUserPrescriptions(_ context.Context, req UserPrescriptionsRequest) (UserPrescriptionsResponse, error) {
	user, ok := c.caller(req.CallerUserID)
	if !ok {
		return UserPrescriptionsResponse{Error: ErrMsgAuthRequired}, nil
	}

	details := make([]PrescriptionDetail, 0, len(user.Prescriptions))
	for _, p := range user.Prescriptions {
		d := PrescriptionDetail{
			PrescriptionID:   p.ID,
			MedicationID:     p.MedicationID,
			PrescribedBy:     p.PrescribedBy,
			Issued:           p.Issued,
			Expires:          p.Expires,
			RefillsRemaining: p.RefillsRemaining,
		}
		if m, ok := c.MedicationByID(p.MedicationID); ok {
			d.MedicationName = m.Name
		}
		details = append(details, d)
	}
	return UserPrescriptionsResponse{
		Success:       true,
		UserID:        user.ID,
		Count:         len(details),
		Prescriptions: details,
	}, nil
}

// caller resolves the injected identity. An unknown id is treated as not
// logged in.
func (c *Catalog) caller(userID string) (*User, bool) {
	if strings.TrimSpace(userID) == "" {
		return nil, false
	}
	return c.UserByID(userID)
}

// refersToSelf reports whether query names the user or uses a first-person
// word. An empty query means "me".
func refersToSelf(query string, user *User) bool {
	q := normalize(query)
	if q == "" {
		return true
	}
	for _, own := range []string{user.Name, user.Username, user.Email} {
		if own != "" && q == normalize(own) {
			return true
		}
	}
	for _, word := range wordPattern.FindAllString(q, -1) {
		if _, ok := selfReferenceWords[word]; ok {
			return true
		}
	}
	return false
}
