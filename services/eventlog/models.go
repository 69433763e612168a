package eventlog

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"signescrow/core/events"
	"signescrow/core/types"
)

// Record is one committed contract event.
type Record struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Sequence   uint32    `gorm:"index"`
	TxHash     string    `gorm:"index;size:66"`
	Position   int       `gorm:"not null"`
	Contract   string    `gorm:"index;size:80"`
	Type       string    `gorm:"index;size:64"`
	Attributes string    `gorm:"type:text"`
	CreatedAt  time.Time `gorm:"index"`
}

// TableName pins the table name across drivers.
func (Record) TableName() string { return "contract_events" }

// BeforeCreate assigns a time-ordered primary key so rows sort in insert order.
func (r *Record) BeforeCreate(*gorm.DB) error {
	if r.ID != uuid.Nil {
		return nil
	}
	id, err := uuid.NewV7()
	if err != nil {
		return err
	}
	r.ID = id
	return nil
}

// AutoMigrate creates or updates the archive schema.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Record{})
}

func recordFrom(c events.Committed) (*Record, error) {
	if c.Event == nil {
		return nil, nil
	}
	attrs, err := json.Marshal(c.Event.Attributes)
	if err != nil {
		return nil, err
	}
	return &Record{
		Sequence:   c.Sequence,
		TxHash:     c.TxHash,
		Position:   c.Index,
		Contract:   c.Event.Contract.String(),
		Type:       c.Event.Type,
		Attributes: string(attrs),
	}, nil
}

// Committed converts the row back into the event shape streamed by the node.
func (r *Record) Committed() (events.Committed, error) {
	contract, err := types.ParsePrincipal(r.Contract)
	if err != nil {
		return events.Committed{}, err
	}
	attrs := map[string]string{}
	if r.Attributes != "" {
		if err := json.Unmarshal([]byte(r.Attributes), &attrs); err != nil {
			return events.Committed{}, err
		}
	}
	return events.Committed{
		Sequence: r.Sequence,
		TxHash:   r.TxHash,
		Index:    r.Position,
		Event:    &types.Event{Contract: contract, Type: r.Type, Attributes: attrs},
	}, nil
}
