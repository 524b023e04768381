package model

import (
	"time"
)

// User 사용자
type User struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Name         string    `gorm:"type:varchar(100);not null" json:"name"`
	PasswordHash string    `gorm:"type:varchar(255);not null" json:"-"`
	AvatarColor  string    `gorm:"type:varchar(20);not null;default:''" json:"avatar_color"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`

	// Relations
	Designs []Design `gorm:"foreignKey:OwnerID" json:"designs,omitempty"`
}

func (User) TableName() string {
	return "users"
}

// Design 캔버스 문서
// Elements holds the element list as one JSONB blob: the server never
// edits individual elements, it stores whatever working copy the client
// saves. Version is the optimistic-concurrency counter; every durable
// save must carry the version it was based on and advances it by one.
type Design struct {
	ID          int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string     `gorm:"type:varchar(200);not null" json:"name"`
	OwnerID     int64      `gorm:"not null;index" json:"owner_id"`
	Width       float64    `gorm:"not null;default:960" json:"width"`
	Height      float64    `gorm:"not null;default:540" json:"height"`
	Elements    string     `gorm:"type:jsonb;default:'[]'" json:"-"`
	Version     int64      `gorm:"not null;default:1" json:"version"`
	IsPublic    bool       `gorm:"default:false" json:"is_public"`
	ShareCode   string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"share_code"`
	LastSavedAt *time.Time `json:"last_saved_at,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	// Relations
	Owner         User                 `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	Collaborators []DesignCollaborator `gorm:"foreignKey:DesignID" json:"collaborators,omitempty"`
	Comments      []Comment            `gorm:"foreignKey:DesignID" json:"comments,omitempty"`
}

func (Design) TableName() string {
	return "designs"
}

// DesignCollaborator 디자인 공동 작업자
type DesignCollaborator struct {
	ID       int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	DesignID int64     `gorm:"not null;uniqueIndex:idx_design_user" json:"design_id"`
	UserID   int64     `gorm:"not null;uniqueIndex:idx_design_user" json:"user_id"`
	AddedAt  time.Time `gorm:"autoCreateTime" json:"added_at"`

	// Relations
	Design Design `gorm:"foreignKey:DesignID" json:"design,omitempty"`
	User   User   `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (DesignCollaborator) TableName() string {
	return "design_collaborators"
}

// Comment 디자인 코멘트
// Append-only: never mutated or deleted once created. Mentions is a
// JSONB array of user ids resolved from @name labels; Position is an
// optional {x,y} anchor on the canvas.
type Comment struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	DesignID  int64     `gorm:"not null;index:idx_comments_design_created" json:"design_id"`
	AuthorID  int64     `gorm:"not null" json:"author_id"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Mentions  string    `gorm:"type:jsonb;default:'[]'" json:"-"`
	Position  *string   `gorm:"type:jsonb" json:"-"`
	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_comments_design_created" json:"created_at"`

	// Relations
	Design Design `gorm:"foreignKey:DesignID" json:"design,omitempty"`
	Author User   `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
}

func (Comment) TableName() string {
	return "comments"
}
