package models

import (
	"time"

	"github.com/nckmackenzie/atarah-api/internal/utils"
)

type IBase interface {
	GenIDIfEmpty()
	GenID()
	SetID(id utils.SixID)
}

type Base struct {
	ID utils.SixID `bson:"_id,omitempty" json:"id,omitempty"`
}

func (m *Base) GenIDIfEmpty() {
	if m.ID == (utils.SixID{}) {
		m.GenID()
	}
}

func (m *Base) GenID() {
	m.ID = utils.NewSixID()
}

func (m *Base) SetID(id utils.SixID) {
	m.ID = id
}

func NewBase() Base {
	return Base{
		ID: utils.NewSixID(),
	}
}

// Audit carries the timestamps every persisted document has.
type Audit struct {
	CreatedAt time.Time  `bson:"created_at" json:"createdAt"`
	UpdatedAt *time.Time `bson:"updated_at,omitempty" json:"updatedAt,omitempty"`
}

// NewAudit stamps a fresh document.
func NewAudit(now time.Time) Audit {
	return Audit{CreatedAt: now}
}

// Touch records an update time.
func (a *Audit) Touch(now time.Time) {
	a.UpdatedAt = &now
}
