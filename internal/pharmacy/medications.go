package pharmacy

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	DefaultSearchLimit = 5
	MaxSearchLimit     = 20
)

type MedicationByNameRequest struct {
	Name string `mapstructure:"name"`
}

func (r MedicationByNameRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("name is required")
	}
	return nil
}

type MedicationResponse struct {
	Success              bool     `json:"success"`
	Error                string   `json:"error,omitempty"`
	MedicationID         string   `json:"medication_id,omitempty"`
	Name                 string   `json:"name,omitempty"`
	NameHe               string   `json:"name_he,omitempty"`
	ActiveIngredients    []string `json:"active_ingredients,omitempty"`
	DosageForm           string   `json:"dosage_form,omitempty"`
	RequiresPrescription bool     `json:"requires_prescription"`
	Description          string   `json:"description,omitempty"`
	UsageInstructions    string   `json:"usage_instructions,omitempty"`
}

type SearchMedicationsRequest struct {
	Query string `mapstructure:"query"`
	Limit int    `mapstructure:"limit"`
}

func (r SearchMedicationsRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return errors.New("query is required")
	}
	if r.Limit < 0 {
		return fmt.Errorf("limit must be non-negative, got %d", r.Limit)
	}
	return nil
}

type MedicationSummary struct {
	MedicationID      string   `json:"medication_id"`
	Name              string   `json:"name"`
	NameHe            string   `json:"name_he,omitempty"`
	ActiveIngredients []string `json:"active_ingredients"`
}

type SearchMedicationsResponse struct {
	Success bool                `json:"success"`
	Query   string              `json:"query"`
	Count   int                 `json:"count"`
	Results []MedicationSummary `json:"results"`
}

type StockRequest struct {
	MedicationID string `mapstructure:"medication_id"`
	StoreID      string `mapstructure:"store_id"`
}

func (r StockRequest) Validate() error {
	if strings.TrimSpace(r.MedicationID) == "" {
		return errors.New("medication_id is required")
	}
	return nil
}

type StoreStock struct {
	StoreID  string `json:"store_id"`
	Name     string `json:"store_name"`
	City     string `json:"city,omitempty"`
	Quantity int    `json:"quantity"`
	InStock  bool   `json:"in_stock"`
}

type StockResponse struct {
	Success      bool         `json:"success"`
	Error        string       `json:"error,omitempty"`
	MedicationID string       `json:"medication_id,omitempty"`
	Name         string       `json:"name,omitempty"`
	InStock      bool         `json:"in_stock"`
	TotalUnits   int          `json:"total_quantity"`
	Stores       []StoreStock `json:"stores,omitempty"`
}

type PrescriptionRequirementRequest struct {
	MedicationID string `mapstructure:"medication_id"`
}

func (r PrescriptionRequirementRequest) Validate() error {
	if strings.TrimSpace(r.MedicationID) == "" {
		return errors.New("medication_id is required")
	}
	return nil
}

type PrescriptionRequirementResponse struct {
	Success              bool   `json:"success"`
	Error                string `json:"error,omitempty"`
	MedicationID         string `json:"medication_id,omitempty"`
	Name                 string `json:"name,omitempty"`
	RequiresPrescription bool   `json:"requires_prescription"`
	PrescriptionType     string `json:"prescription_type,omitempty"`
}

// GetMedicationByName looks a medication up by brand or ingredient name.
func (c *Catalog) GetMedicationByName(_ context.Context, req MedicationByNameRequest) (MedicationResponse, error) {
	m, ok := c.MedicationByName(req.Name)
	if !ok {
		return MedicationResponse{Error: fmt.Sprintf("Medication '%s' not found", strings.TrimSpace(req.Name))}, nil
	}
	return MedicationResponse{
		Success:              true,
		MedicationID:         m.ID,
		Name:                 m.Name,
		NameHe:               m.NameHe,
		ActiveIngredients:    m.ActiveIngredients,
		DosageForm:           m.DosageForm,
		RequiresPrescription: m.RequiresPrescription,
		Description:          m.Description,
		UsageInstructions:    m.UsageInstructions,
	}, nil
}

// Search returns medications matching a free-text query. Zero matches is
// still a successful lookup.
func (c *Catalog) Search(_ context.Context, req SearchMedicationsRequest) (SearchMedicationsResponse, error) {
	limit := req.Limit
	if limit == 0 {
		limit = DefaultSearchLimit
	}
	limit = min(limit, MaxSearchLimit)

	matches := c.SearchMedications(req.Query, limit)
	results := make([]MedicationSummary, 0, len(matches))
	for _, m := range matches {
		results = append(results, MedicationSummary{
			MedicationID:      m.ID,
			Name:              m.Name,
			NameHe:            m.NameHe,
			ActiveIngredients: m.ActiveIngredients,
		})
	}
	return SearchMedicationsResponse{
		Success: true,
		Query:   req.Query,
		Count:   len(results),
		Results: results,
	}, nil
}

// CheckStock reports per-store quantities, optionally for a single store.
func (c *Catalog) CheckStock(_ context.Context, req StockRequest) (StockResponse, error) {
	m, ok := c.MedicationByID(req.MedicationID)
	if !ok {
		return StockResponse{Error: fmt.Sprintf("Medication '%s' not found", req.MedicationID)}, nil
	}

	stores := c.Stores()
	if storeID := strings.TrimSpace(req.StoreID); storeID != "" {
		store, ok := c.StoreByID(storeID)
		if !ok {
			return StockResponse{Error: fmt.Sprintf("Store '%s' not found", storeID)}, nil
		}
		stores = []Store{store}
	}

	resp := StockResponse{
		Success:      true,
		MedicationID: m.ID,
		Name:         m.Name,
		Stores:       make([]StoreStock, 0, len(stores)),
	}
	for _, s := range stores {
		qty := m.Stock[s.ID]
		resp.Stores = append(resp.Stores, StoreStock{
			StoreID:  s.ID,
			Name:     s.Name,
			City:     s.City,
			Quantity: qty,
			InStock:  qty > 0,
		})
		resp.TotalUnits += qty
	}
	resp.InStock = resp.TotalUnits > 0
	return resp, nil
}

// CheckPrescriptionRequirement reports whether a medication needs a prescription.
func (c *Catalog) CheckPrescriptionRequirement(_ context.Context, req PrescriptionRequirementRequest) (PrescriptionRequirementResponse, error) {
	m, ok := c.MedicationByID(req.MedicationID)
	if !ok {
		return PrescriptionRequirementResponse{Error: fmt.Sprintf("Medication '%s' not found", req.MedicationID)}, nil
	}
	return PrescriptionRequirementResponse{
		Success:              true,
		MedicationID:         m.ID,
		Name:                 m.Name,
		RequiresPrescription: m.RequiresPrescription,
		PrescriptionType:     m.PrescriptionType,
	}, nil
}
