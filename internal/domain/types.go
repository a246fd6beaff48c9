package domain

import "time"

type LocationKind string

const (
	KindRoom      LocationKind = "room"
	KindStorage   LocationKind = "storage"
	KindContainer LocationKind = "container"
	KindFurniture LocationKind = "furniture"
)

// Valid reports whether k is one of the known location kinds.
func (k LocationKind) Valid() bool {
	switch k {
	case KindRoom, KindStorage, KindContainer, KindFurniture:
		return true
	}
	return false
}

type ItemStatus string

const (
	StatusPresent ItemStatus = "present"
	StatusTaken   ItemStatus = "taken"
	StatusUnknown ItemStatus = "unknown"
)

func (s ItemStatus) Valid() bool {
	switch s {
	case StatusPresent, StatusTaken, StatusUnknown:
		return true
	}
	return false
}

// Location is a node in the storage hierarchy. Rooms have a nil ParentID.
type Location struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Kind      LocationKind `json:"kind"`
	ParentID  *string      `json:"parent_id,omitempty"`
	PhotoRef  string       `json:"photo_ref,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// IsRoot reports whether the location has no parent.
func (l *Location) IsRoot() bool {
	return l.ParentID == nil
}

type Item struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Category    string     `json:"category"`
	Description string     `json:"description,omitempty"`
	PhotoRef    string     `json:"photo_ref,omitempty"`
	Status      ItemStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Placement binds one item to its current location.
type Placement struct {
	ItemID     string    `json:"item_id"`
	LocationID string    `json:"location_id"`
	CreatedAt  time.Time `json:"created_at"`
}

type BorrowEvent struct {
	ID         string     `json:"id"`
	ItemID     string     `json:"item_id"`
	TakenBy    string     `json:"taken_by"`
	TakenAt    time.Time  `json:"taken_at"`
	DueAt      *time.Time `json:"due_at,omitempty"`
	ReturnedAt *time.Time `json:"returned_at,omitempty"`
	Note       string     `json:"note,omitempty"`
}

// Active reports whether the item has not been returned yet.
func (e *BorrowEvent) Active() bool {
	return e.ReturnedAt == nil
}
