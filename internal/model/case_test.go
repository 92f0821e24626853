package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCase() LeishmaniasisCase {
	return LeishmaniasisCase{
		AnimalName: "Thor",
		Species:    SpeciesDog,
		OwnerName:  "Maria",
		TestMethod: TestDPP,
		Result:     ResultPositive,
		Status:     CaseOpen,
		NotifiedAt: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		Location:   Location{Address: "Rua Sete de Setembro, 100"},
	}
}

func TestLeishmaniasisCase_Normalize(t *testing.T) {
	c := LeishmaniasisCase{Species: " Dog ", TestMethod: "ELISA", Result: "Negative"}
	c.Normalize()
	assert.Equal(t, SpeciesDog, c.Species)
	assert.Equal(t, TestELISA, c.TestMethod)
	assert.Equal(t, ResultNegative, c.Result)
	assert.Equal(t, CaseOpen, c.Status)
}

func TestLeishmaniasisCase_Validate(t *testing.T) {
	base := validCase()
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(c *LeishmaniasisCase)
		msg    string
	}{
		{"no animal", func(c *LeishmaniasisCase) { c.AnimalName = "" }, "animal_name"},
		{"bad species", func(c *LeishmaniasisCase) { c.Species = "horse" }, "species"},
		{"bad method", func(c *LeishmaniasisCase) { c.TestMethod = "xray" }, "test_method"},
		{"bad result", func(c *LeishmaniasisCase) { c.Result = "maybe" }, "result"},
		{"bad status", func(c *LeishmaniasisCase) { c.Status = "lost" }, "status"},
		{"no date", func(c *LeishmaniasisCase) { c.NotifiedAt = time.Time{} }, "notified_at"},
		{"no address", func(c *LeishmaniasisCase) { c.Location = Location{} }, "address"},
		{"bad latitude", func(c *LeishmaniasisCase) { c.Location.Latitude = f(95) }, "latitude"},
		{"bad longitude", func(c *LeishmaniasisCase) { c.Location.Longitude = f(-181) }, "longitude"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validCase()
			tt.mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestLeishmaniasisCase_AreaBlockWithoutAddress(t *testing.T) {
	c := validCase()
	c.Location = Location{Area: "4", Block: "17"}
	assert.NoError(t, c.Validate())
}
