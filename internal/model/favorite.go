package model

// AvatarType controls how a favorite's avatar is drawn.
type AvatarType string

const (
	AvatarRounded AvatarType = "rounded"
	AvatarSquared AvatarType = "squared"
)

// Favorite is a workspace member's pinned record, ordered by Position.
type Favorite struct {
	ID                string     `json:"id"`
	RecordID          string     `json:"recordId"`
	TargetObject      string     `json:"targetObject,omitempty"`
	Position          float64    `json:"position"`
	LabelIdentifier   string     `json:"labelIdentifier"`
	AvatarURL         string     `json:"avatarUrl,omitempty"`
	AvatarType        AvatarType `json:"avatarType"`
	Link              string     `json:"link"`
	WorkspaceMemberID string     `json:"workspaceMemberId,omitempty"`
}
