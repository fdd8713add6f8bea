package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Project struct {
	ID        uuid.UUID
	Name      string
	Data      json.RawMessage
	OwnerID   uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}
