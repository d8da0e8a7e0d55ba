package billing

import (
	"testing"

	"consulta-backend/models"

	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"
)

func testTherapists() []models.Therapist {
	return []models.Therapist{
		{ID: 1, Name: "Sonia Martínez", CalendarTag: "sonia", Color: "#f4a", IsActive: true},
		{ID: 2, Name: "Íñigo Ruiz", CalendarTag: "iñigo", Color: "#4af", IsActive: true},
		{ID: 3, Name: "Laura Gómez", CalendarTag: "laura", Aliases: datatypes.JSON(`["Lau"]`), IsManager: true, IsActive: true},
	}
}

func TestDetectTagIsCaseAndAccentInsensitive(t *testing.T) {
	d := NewDetector(testTherapists())

	for _, title := range []string{
		"Sesión /Sonia/",
		"sesión /SONIA/",
		"SESION Pedro /sonia/",
		"Pedro López / Sonia /",
		"Sesión 10/11 /sonia/",
		"Pedro 1/2 sesión /sonia/",
		"Sesión /sonia/ 3/4",
	} {
		got := d.Detect(title)
		assert.Equal(t, uint(1), got.ID, title)
	}

	for _, title := range []string{"Cita /Iñigo/", "cita /INIGO/", "cita /inigo/"} {
		assert.Equal(t, uint(2), d.Detect(title).ID, title)
	}
}

func TestDetectRuleOrder(t *testing.T) {
	d := NewDetector(testTherapists())

	_, rule := d.DetectRule("Sesión /sonia/")
	assert.Equal(t, "exact-tag", rule)

	_, rule = d.DetectRule("Sesión /ÍNIGO/")
	assert.Equal(t, "normalized-tag", rule)

	got, rule := d.DetectRule("Supervisión con Sonia Martinez")
	assert.Equal(t, "whole-word", rule)
	assert.Equal(t, uint(1), got.ID)

	got, rule = d.DetectRule("Sesión Juan con Sonia")
	assert.Equal(t, "whole-word", rule)
	assert.Equal(t, uint(1), got.ID)

	got = d.Detect("Cita con iñigo")
	assert.Equal(t, uint(2), got.ID)

	// A tag beats a full name elsewhere in the title.
	got = d.Detect("Sonia Martínez cubre a /iñigo/")
	assert.Equal(t, uint(2), got.ID)
}

func TestDetectAliasesAndManager(t *testing.T) {
	d := NewDetector(testTherapists())

	got := d.Detect("Sesión /lau/")
	assert.Equal(t, uint(3), got.ID)
	assert.True(t, got.Manager)
}

func TestDetectUnassigned(t *testing.T) {
	d := NewDetector(testTherapists())

	for _, title := range []string{"", "Reunión equipo", "Sesión /desconocido/", "/ /", "Sesión Soniaa", "Sesión 10/11", "Soniaa/"} {
		got := d.Detect(title)
		assert.False(t, got.Assigned(), title)
		assert.Equal(t, Unassigned, got, title)
	}

	empty := NewDetector(nil)
	assert.Equal(t, Unassigned, empty.Detect("Sesión /sonia/"))
}

func TestTags(t *testing.T) {
	assert.Equal(t, []string{"sonia", "x"}, Tags("a /sonia//x/"))
	assert.Equal(t, []string{"11", "sonia"}, Tags("Sesión 10/11 /sonia/"))
	assert.Equal(t, []string{"sonia", "b", "x"}, Tags("a /sonia/ b /x/"))
	assert.Nil(t, Tags("no tags here"))
	assert.Nil(t, Tags("fecha 10/11"))
}
