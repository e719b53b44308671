// Package pharmacy holds the medication, stock and user data behind the
// assistant's lookup tools.
package pharmacy

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var embeddedCatalog []byte

type Store struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	City string `yaml:"city"`
}

type Medication struct {
	ID                   string         `yaml:"id"`
	Name                 string         `yaml:"name"`
	NameHe               string         `yaml:"name_he"`
	ActiveIngredients    []string       `yaml:"active_ingredients"`
	DosageForm           string         `yaml:"dosage_form"`
	RequiresPrescription bool           `yaml:"requires_prescription"`
	PrescriptionType     string         `yaml:"prescription_type"`
	Description          string         `yaml:"description"`
	UsageInstructions    string         `yaml:"usage_instructions"`
	Stock                map[string]int `yaml:"stock"`
}

type Prescription struct {
	ID               string `yaml:"id"`
	MedicationID     string `yaml:"medication_id"`
	PrescribedBy     string `yaml:"prescribed_by"`
	Issued           string `yaml:"issued"`
	Expires          string `yaml:"expires"`
	RefillsRemaining int    `yaml:"refills_remaining"`
}

type User struct {
	ID            string         `yaml:"id"`
	Username      string         `yaml:"username"`
	Name          string         `yaml:"name"`
	Email         string         `yaml:"email"`
	Phone         string         `yaml:"phone"`
	Prescriptions []Prescription `yaml:"prescriptions"`
}

type catalogFile struct {
	Stores      []Store      `yaml:"stores"`
	Medications []Medication `yaml:"medications"`
	Users       []User       `yaml:"users"`
}

// Catalog is read-only after construction and safe for concurrent use.
type Catalog struct {
	stores      []Store
	medications []Medication
	users       []User

	medByID  map[string]*Medication
	userByID map[string]*User
}

// LoadCatalog reads a catalog from path, or the embedded catalog when path
// is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return ParseCatalog(embeddedCatalog)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and indexes YAML catalog data.
func ParseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	c := &Catalog{
		stores:      file.Stores,
		medications: file.Medications,
		users:       file.Users,
		medByID:     make(map[string]*Medication, len(file.Medications)),
		userByID:    make(map[string]*User, len(file.Users)),
	}

	storeIDs := make(map[string]struct{}, len(c.stores))
	for _, s := range c.stores {
		storeIDs[s.ID] = struct{}{}
	}

	for i := range c.medications {
		m := &c.medications[i]
		if m.ID == "" || m.Name == "" {
			return nil, fmt.Errorf("medication %d: id and name are required", i)
		}
		if _, dup := c.medByID[m.ID]; dup {
			return nil, fmt.Errorf("duplicate medication id %q", m.ID)
		}
		for storeID := range m.Stock {
			if _, ok := storeIDs[storeID]; !ok {
				return nil, fmt.Errorf("medication %q: unknown store %q", m.ID, storeID)
			}
		}
		c.medByID[m.ID] = m
	}

	for i := range c.users {
		u := &c.users[i]
		if u.ID == "" || u.Username == "" {
			return nil, fmt.Errorf("user %d: id and username are required", i)
		}
		if _, dup := c.userByID[u.ID]; dup {
			return nil, fmt.Errorf("duplicate user id %q", u.ID)
		}
		for _, p := range u.Prescriptions {
			if _, ok := c.medByID[p.MedicationID]; !ok {
				return nil, fmt.Errorf("prescription %q: unknown medication %q", p.ID, p.MedicationID)
			}
		}
		c.userByID[u.ID] = u
	}

	return c, nil
}

// MedicationByID returns the medication with the given id.
func (c *Catalog) MedicationByID(id string) (*Medication, bool) {
	m, ok := c.medByID[strings.TrimSpace(id)]
	return m, ok
}

// MedicationByName matches the English or Hebrew name, case-insensitively.
// Brand names win over active-ingredient matches.
func (c *Catalog) MedicationByName(name string) (*Medication, bool) {
	needle := normalize(name)
	if needle == "" {
		return nil, false
	}
	for i := range c.medications {
		m := &c.medications[i]
		if normalize(m.Name) == needle || normalize(m.NameHe) == needle {
			return m, true
		}
	}
	for i := range c.medications {
		m := &c.medications[i]
		for _, ingredient := range m.ActiveIngredients {
			if ingredientName(ingredient) == needle || normalize(ingredient) == needle {
				return m, true
			}
		}
	}
	return nil, false
}

// SearchMedications returns medications whose names or active ingredients
// contain query, in catalog order.
func (c *Catalog) SearchMedications(query string, limit int) []*Medication {
	needle := normalize(query)
	var out []*Medication
	for i := range c.medications {
		if len(out) >= limit {
			break
		}
		m := &c.medications[i]
		if matchesMedication(m, needle) {
			out = append(out, m)
		}
	}
	return out
}

// Stores returns every store in catalog order.
func (c *Catalog) Stores() []Store {
	return c.stores
}

// StoreByID returns the store with the given id.
func (c *Catalog) StoreByID(id string) (Store, bool) {
	for _, s := range c.stores {
		if s.ID == id {
			return s, true
		}
	}
	return Store{}, false
}

// UserByID returns the user with the given id.
func (c *Catalog) UserByID(id string) (*User, bool) {
	u, ok := c.userByID[id]
	return u, ok
}

// UserByUsername returns the user with the given username.
func (c *Catalog) UserByUsername(username string) (*User, bool) {
	needle := normalize(username)
	for i := range c.users {
		if normalize(c.users[i].Username) == needle {
			return &c.users[i], true
		}
	}
	return nil, false
}

func matchesMedication(m *Medication, needle string) bool {
	if needle == "" {
		return false
	}
	if strings.Contains(normalize(m.Name), needle) || strings.Contains(normalize(m.NameHe), needle) {
		return true
	}
	for _, ingredient := range m.ActiveIngredients {
		if strings.Contains(normalize(ingredient), needle) {
			return true
		}
	}
	return false
}

// ingredientName strips the strength: "Paracetamol 500mg" -> "paracetamol".
func ingredientName(ingredient string) string {
	fields := strings.Fields(normalize(ingredient))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
