package pharmacy

import (
	provider "github.com/Cyclone1070/pharmassist/internal/provider/models"
	"github.com/Cyclone1070/pharmassist/internal/tool"
)

// Tool names exposed to the model.
const (
	ToolGetMedicationByName          = "get_medication_by_name"
	ToolSearchMedications            = "search_medications"
	ToolCheckStockAvailability       = "check_stock_availability"
	ToolCheckPrescriptionRequirement = "check_prescription_requirement"
	ToolGetUserInfo                  = "get_user_info"
	ToolGetUserPrescriptions         = "get_user_prescriptions"
)

// IdentityTools receive the caller's identity from the registry.
var IdentityTools = []string{ToolGetUserInfo, ToolGetUserPrescriptions}

// Tools builds every lookup tool backed by c.
func Tools(c *Catalog) []tool.Tool {
	return []tool.Tool{
		tool.New(ToolGetMedicationByName,
			"Use when the user names a specific medication (brand or active ingredient, English or Hebrew) "+
				"and wants its details. Returns the medication_id needed by the stock and prescription tools.",
			&provider.ParameterSchema{
				Type: "object",
				Properties: map[string]provider.PropertySchema{
					"name": {Type: "string", Description: "Medication name, e.g. Acamol or Paracetamol"},
				},
				Required: []string{"name"},
			},
			c.GetMedicationByName),

		tool.New(ToolSearchMedications,
			"Use when the user describes a medication only partially or asks what options exist. "+
				"Matches substrings of names and active ingredients.",
			&provider.ParameterSchema{
				Type: "object",
				Properties: map[string]provider.PropertySchema{
					"query": {Type: "string", Description: "Part of a medication name or ingredient"},
					"limit": {Type: "integer", Description: "Maximum results (default 5, max 20)"},
				},
				Required: []string{"query"},
			},
			c.Search),

		tool.New(ToolCheckStockAvailability,
			"Use when the user asks whether a medication is available or in stock. "+
				"Requires a medication_id from get_medication_by_name.",
			&provider.ParameterSchema{
				Type: "object",
				Properties: map[string]provider.PropertySchema{
					"medication_id": {Type: "string", Description: "Medication id, e.g. med_001"},
					"store_id":      {Type: "string", Description: "Optional store id to check a single store"},
				},
				Required: []string{"medication_id"},
			},
			c.CheckStock),

		tool.New(ToolCheckPrescriptionRequirement,
			"Use when the user asks whether a medication needs a prescription. "+
				"Requires a medication_id from get_medication_by_name.",
			&provider.ParameterSchema{
				Type: "object",
				Properties: map[string]provider.PropertySchema{
					"medication_id": {Type: "string", Description: "Medication id, e.g. med_001"},
				},
				Required: []string{"medication_id"},
			},
			c.CheckPrescriptionRequirement),

		tool.New(ToolGetUserInfo,
			"Use when the logged-in user asks about their own account details. "+
				"Only the caller's own information can be returned.",
			&provider.ParameterSchema{
				Type: "object",
				Properties: map[string]provider.PropertySchema{
					"query": {Type: "string", Description: "Who the user is asking about, e.g. \"my details\""},
				},
			},
			c.GetUserInfo),

		tool.New(ToolGetUserPrescriptions,
			"Use when the logged-in user asks about their own prescriptions.",
			&provider.ParameterSchema{
				Type:       "object",
				Properties: map[string]provider.PropertySchema{},
			},
			c.GetUserPrescriptions),
	}
}
