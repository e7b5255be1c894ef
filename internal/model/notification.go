package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

const NotificationTypeClinicInvite = "clinic_invite"

// Notification is an in-app notification row. Extra carries structured
// payload; for clinic invites it holds the invite token tag used to keep
// notification creation idempotent.
type Notification struct {
	Base
	UserID  uuid.UUID `db:"user_id" json:"user_id"`
	Type    string    `db:"type" json:"type"`
	Title   string    `db:"title" json:"title"`
	Message string    `db:"message" json:"message"`
	Extra   ExtraData `db:"extra" json:"extra"`
	IsRead  bool      `db:"is_read" json:"is_read"`
}

// ExtraData is a JSONB column.
type ExtraData map[string]string

func (e ExtraData) Value() (driver.Value, error) {
	if e == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(e)
}

func (e *ExtraData) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*e = ExtraData{}
		return nil
	case []byte:
		return json.Unmarshal(v, e)
	case string:
		return json.Unmarshal([]byte(v), e)
	default:
		return fmt.Errorf("unsupported extra data type %T", src)
	}
}
