// Package catalog holds the static reference data the issuance pipeline
// consults: HPK code mappings, eligibility allow-lists, required dose counts
// and the attribute disclosure policy. Everything is loaded once at startup
// and is immutable afterwards, so concurrent readers need no synchronization.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"

	"certo/internal/platform/config"
)

// HPKMapping links a Dutch pharmaceutical product code to its European
// counterparts.
type HPKMapping struct {
	VP string `json:"vp"` // vaccine prophylaxis
	MP string `json:"mp"` // medicinal product
	MA string `json:"ma"` // marketing authorization holder / manufacturer
}

// Catalog is the full reference data set.
type Catalog struct {
	HPK           map[string]HPKMapping
	EligibleMA    map[string]struct{}
	EligibleMP    map[string]struct{}
	EligibleTT    map[string]struct{}
	RequiredDoses map[string]int
	Disclosure    map[string]string
}

// Load reads all reference files named by the configuration. A missing or
// malformed file is a startup error; missing entries at lookup time are not.
func Load(cfg config.CatalogConfig) (*Catalog, error) {
	c := &Catalog{}

	if err := readJSON(cfg.HPKCodesPath, &c.HPK); err != nil {
		return nil, fmt.Errorf("load hpk codes: %w", err)
	}

	var err error
	if c.EligibleMA, err = readSet(cfg.EligibleMAPath); err != nil {
		return nil, fmt.Errorf("load eligible manufacturers: %w", err)
	}
	if c.EligibleMP, err = readSet(cfg.EligibleMPPath); err != nil {
		return nil, fmt.Errorf("load eligible medicinal products: %w", err)
	}
	if c.EligibleTT, err = readSet(cfg.EligibleTTPath); err != nil {
		return nil, fmt.Errorf("load eligible test types: %w", err)
	}
	if err := readJSON(cfg.RequiredDosesPath, &c.RequiredDoses); err != nil {
		return nil, fmt.Errorf("load required doses: %w", err)
	}
	if err := readJSON(cfg.DisclosurePath, &c.Disclosure); err != nil {
		return nil, fmt.Errorf("load disclosure policy: %w", err)
	}
	return c, nil
}

// HPKEligible reports whether the HPK code itself is on the allow-list.
// A code is eligible when we can map it to European codes.
func (c *Catalog) HPKEligible(code string) bool {
	_, ok := c.HPK[code]
	return ok
}

// ManufacturerEligible reports whether the manufacturer code is allowed.
func (c *Catalog) ManufacturerEligible(code string) bool {
	_, ok := c.EligibleMA[code]
	return ok
}

// MedicinalProductEligible reports whether the brand code is allowed.
func (c *Catalog) MedicinalProductEligible(code string) bool {
	_, ok := c.EligibleMP[code]
	return ok
}

// TestTypeEligible reports whether the test type code is allowed.
func (c *Catalog) TestTypeEligible(code string) bool {
	_, ok := c.EligibleTT[code]
	return ok
}

// LookupHPK returns the European code mapping for an HPK code.
func (c *Catalog) LookupHPK(code string) (HPKMapping, bool) {
	m, ok := c.HPK[code]
	return m, ok
}

// RequiredDosesFor returns the default total dose count for a medicinal
// product, 0 when unknown.
func (c *Catalog) RequiredDosesFor(brand string) int {
	return c.RequiredDoses[brand]
}

func readJSON(path string, target any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}

func readSet(path string) (map[string]struct{}, error) {
	var list []string
	if err := readJSON(path, &list); err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(list))
	for _, v := range list {
		set[v] = struct{}{}
	}
	return set, nil
}
