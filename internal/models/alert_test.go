package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAlertTypeValid(t *testing.T) {
	for _, typ := range []AlertType{AlertTypeSecurity, AlertTypeMedical, AlertTypeFire, AlertTypeAccident, AlertTypeGhost} {
		assert.True(t, typ.Valid(), "type %s", typ)
	}
	assert.False(t, AlertType("flood").Valid())
	assert.False(t, AlertType("").Valid())
}

func TestAlertOwnedByIsCaseInsensitive(t *testing.T) {
	a := &Alert{User: "agent@alertos.com"}
	assert.True(t, a.OwnedBy("Agent@AlertOS.com"))
	assert.False(t, a.OwnedBy("other@alertos.com"))
}

func TestAlertVisibility(t *testing.T) {
	public := &Alert{Type: AlertTypeSecurity}
	assert.True(t, public.VisibleToUID("anyone"))

	ghost := &Alert{Type: AlertTypeGhost, VisibleTo: []string{"uid-1", "uid-2"}}
	assert.True(t, ghost.VisibleToUID("uid-1"))
	assert.False(t, ghost.VisibleToUID("uid-3"))

	orphanGhost := &Alert{Type: AlertTypeGhost}
	assert.False(t, orphanGhost.VisibleToUID("uid-1"))
}

func TestMarkerByTypeFallsBackToSecurity(t *testing.T) {
	assert.Equal(t, AlertTypeMedical, MarkerByType(AlertTypeMedical).Type)
	assert.Equal(t, AlertTypeSecurity, MarkerByType(AlertType("unknown")).Type)
}

func TestMarkersExcludeGhost(t *testing.T) {
	for _, m := range Markers() {
		assert.NotEqual(t, AlertTypeGhost, m.Type)
	}
	assert.Len(t, Markers(), 4)
}
