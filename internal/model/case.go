package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// TestMethod is the diagnostic test used on a leishmaniasis suspect.
type TestMethod string

const (
	TestDPP   TestMethod = "dpp"
	TestELISA TestMethod = "elisa"
	TestRIFI  TestMethod = "rifi"
	TestPCR   TestMethod = "pcr"
)

// TestResult is the outcome of a diagnostic test.
type TestResult string

const (
	ResultPositive     TestResult = "positive"
	ResultNegative     TestResult = "negative"
	ResultInconclusive TestResult = "inconclusive"
)

// CaseStatus tracks a case through follow-up.
type CaseStatus string

const (
	CaseOpen       CaseStatus = "open"
	CaseTreatment  CaseStatus = "treatment"
	CaseEuthanized CaseStatus = "euthanized"
	CaseDeceased   CaseStatus = "deceased"
	CaseClosed     CaseStatus = "closed"
)

var (
	validTestMethods = map[TestMethod]bool{TestDPP: true, TestELISA: true, TestRIFI: true, TestPCR: true}
	validResults     = map[TestResult]bool{ResultPositive: true, ResultNegative: true, ResultInconclusive: true}
	validStatuses    = map[CaseStatus]bool{
		CaseOpen: true, CaseTreatment: true, CaseEuthanized: true, CaseDeceased: true, CaseClosed: true,
	}
)

// LeishmaniasisCase is one notified canine visceral leishmaniasis case.
type LeishmaniasisCase struct {
	ID         string     `json:"id"`
	AnimalName string     `json:"animal_name"`
	Species    Species    `json:"species"`
	OwnerName  string     `json:"owner_name"`
	OwnerPhone string     `json:"owner_phone,omitempty"`
	TestMethod TestMethod `json:"test_method"`
	Result     TestResult `json:"result"`
	Status     CaseStatus `json:"status"`
	NotifiedAt time.Time  `json:"notified_at"`
	Notes      string     `json:"notes,omitempty"`
	Location   Location   `json:"location"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Normalize lower-cases enum fields and fills the default status.
func (c *LeishmaniasisCase) Normalize() {
	c.Species = Species(strings.ToLower(strings.TrimSpace(string(c.Species))))
	c.TestMethod = TestMethod(strings.ToLower(strings.TrimSpace(string(c.TestMethod))))
	c.Result = TestResult(strings.ToLower(strings.TrimSpace(string(c.Result))))
	c.Status = CaseStatus(strings.ToLower(strings.TrimSpace(string(c.Status))))
	if c.Status == "" {
		c.Status = CaseOpen
	}
}

// Validate checks required fields and enum values.
func (c *LeishmaniasisCase) Validate() error {
	if strings.TrimSpace(c.AnimalName) == "" {
		return eris.New("model: case animal_name is required")
	}
	if !validSpecies[c.Species] {
		return eris.Errorf("model: case species %q is invalid", c.Species)
	}
	if !validTestMethods[c.TestMethod] {
		return eris.Errorf("model: case test_method %q is invalid", c.TestMethod)
	}
	if !validResults[c.Result] {
		return eris.Errorf("model: case result %q is invalid", c.Result)
	}
	if !validStatuses[c.Status] {
		return eris.Errorf("model: case status %q is invalid", c.Status)
	}
	if c.NotifiedAt.IsZero() {
		return eris.New("model: case notified_at is required")
	}
	return validateLocation(c.Location)
}
