package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"hostel-ingest-service/internal/domain/entity"
)

func TestBranchResolver_Resolve(t *testing.T) {
	centro := &entity.Branch{ID: 1, Name: "Centro", RoomKeywords: datatypes.JSON(`["dormitorio", "Habitación doble"]`)}
	playa := &entity.Branch{ID: 2, Name: "Playa", RoomKeywords: datatypes.JSON(`["doble", "cabaña"]`)}
	fallback := uint(2)

	r := NewBranchResolver([]*entity.Branch{centro, playa}, &fallback)

	tests := []struct {
		room string
		want uint
	}{
		{"Dormitorio compartido 6 camas", 1},
		{"HABITACION DOBLE privada", 1}, // longest keyword wins, accents ignored
		{"Suite doble", 2},
		{"Cabana familiar", 2},
		{"Glamping", 2}, // default branch
		{"", 2},
	}
	for _, tt := range tests {
		t.Run(tt.room, func(t *testing.T) {
			b, err := r.Resolve(tt.room)
			require.NoError(t, err)
			assert.Equal(t, tt.want, b.ID)
		})
	}
}

func TestBranchResolver_Unresolved(t *testing.T) {
	r := NewBranchResolver([]*entity.Branch{
		{ID: 1, RoomKeywords: datatypes.JSON(`["dormitorio"]`)},
		{ID: 2},
	}, nil)

	_, err := r.Resolve("Suite")
	assert.ErrorIs(t, err, entity.ErrBranchUnresolved)
}

func TestBranchResolver_SingleBranchIsDefault(t *testing.T) {
	r := NewBranchResolver([]*entity.Branch{{ID: 7}}, nil)

	b, err := r.Resolve("anything")
	require.NoError(t, err)
	assert.Equal(t, uint(7), b.ID)
}

func TestBranchResolver_UnknownDefaultIgnored(t *testing.T) {
	missing := uint(99)
	r := NewBranchResolver([]*entity.Branch{{ID: 1}, {ID: 2}}, &missing)

	_, err := r.Resolve("Suite")
	assert.ErrorIs(t, err, entity.ErrBranchUnresolved)
}
