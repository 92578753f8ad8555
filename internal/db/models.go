package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User table. Rows are owned by the identity service; the engine only reads
// them and bumps LastActiveAt.
type User struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement"`
	Username     string    `gorm:"uniqueIndex;size:64;not null"`
	Email        string    `gorm:"uniqueIndex;size:128;not null"`
	PasswordHash string    `gorm:"size:255;not null"`
	Active       bool      `gorm:"default:true"`
	LastActiveAt time.Time `gorm:"index:idx_users_last_active"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

// Profile belongs to exactly one user and owns its photos, prompts and
// preferences. Location is optional.
type Profile struct {
	ID        string   `gorm:"primaryKey;size:36"`
	UserID    uint64   `gorm:"uniqueIndex;not null"`
	Name      string   `gorm:"size:100;not null"`
	Age       int      `gorm:"not null;index:idx_profiles_age"`
	Bio       string   `gorm:"size:2000;not null"`
	Latitude  *float64 `gorm:"index:idx_profiles_lat_lon,priority:1"`
	Longitude *float64 `gorm:"index:idx_profiles_lat_lon,priority:2"`

	Photos      []Photo      `gorm:"foreignKey:ProfileID"`
	Prompts     []Prompt     `gorm:"foreignKey:ProfileID"`
	Preferences *Preferences `gorm:"foreignKey:ProfileID"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// Photo is a reference to an externally stored image. Position is contiguous
// from 0 within a profile.
type Photo struct {
	ID        string    `gorm:"primaryKey;size:36"`
	ProfileID string    `gorm:"size:36;not null;index:idx_photos_profile_order,priority:1"`
	URL       string    `gorm:"size:512;not null"`
	Position  int       `gorm:"column:sort_order;not null;index:idx_photos_profile_order,priority:2"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// Prompt is a question/answer pair shown on a profile.
type Prompt struct {
	ID        string    `gorm:"primaryKey;size:36"`
	ProfileID string    `gorm:"size:36;not null;index"`
	Question  string    `gorm:"size:500;not null"`
	Answer    string    `gorm:"size:1000;not null"`
	Position  int       `gorm:"column:sort_order;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// Preferences is the matching preference set of a profile.
// MaxDistance is expressed in DistanceUnit.
type Preferences struct {
	ID            string    `gorm:"primaryKey;size:36"`
	ProfileID     string    `gorm:"size:36;uniqueIndex;not null"`
	MinAge        int       `gorm:"not null"`
	MaxAge        int       `gorm:"not null"`
	MaxDistance   float64   `gorm:"not null"`
	ActivityLevel string    `gorm:"size:16;not null;default:medium"`
	DistanceUnit  string    `gorm:"size:16;not null;default:miles"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

func (Preferences) TableName() string { return "preferences" }

// FavoriteLocation is a pinned place (park, trail) on a user's map.
type FavoriteLocation struct {
	ID          string    `gorm:"primaryKey;size:36"`
	UserID      uint64    `gorm:"not null;index"`
	Name        string    `gorm:"size:100;not null"`
	Description string    `gorm:"size:500"`
	Latitude    float64   `gorm:"not null"`
	Longitude   float64   `gorm:"not null"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

// Decision represents an actor's like/pass decision on a recipient.
//
// Composite PK: (ActorID, RecipientID)
//   - Ensures a single row per ordered pair; a new decision overwrites the old one.
//
// Indexes:
//   - idx_recipient_liked_updated_actor(recipient_id, liked, updated_at DESC, actor_id)
//     serves the "who liked me" lists with pagination.
//   - idx_actor_recipient_liked(actor_id, recipient_id, liked)
//     serves reciprocal-like checks.
//
// Blocked is set on both directions by an unmatch; a blocked row is always a pass.
type Decision struct {
	ActorID     uint64    `gorm:"primaryKey;index:idx_actor_recipient_liked,priority:1"`
	RecipientID uint64    `gorm:"primaryKey;index:idx_recipient_liked_updated_actor,priority:1;index:idx_actor_recipient_liked,priority:2"`
	Liked       bool      `gorm:"not null;type:tinyint(1);index:idx_recipient_liked_updated_actor,priority:2;index:idx_actor_recipient_liked,priority:3"`
	Blocked     bool      `gorm:"not null;type:tinyint(1);default:0"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime;index:idx_recipient_liked_updated_actor,priority:3,sort:desc"`
}

// Match is the materialised mutual like between two users.
// User1ID < User2ID always; uq_match_users enforces one row per unordered pair.
type Match struct {
	ID        string    `gorm:"primaryKey;size:36"`
	User1ID   uint64    `gorm:"column:user1_id;not null;uniqueIndex:uq_match_users,priority:1"`
	User2ID   uint64    `gorm:"column:user2_id;not null;uniqueIndex:uq_match_users,priority:2;index:idx_matches_user2"`
	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_matches_created"`
}

// OrderedPair returns a and b with the lower id first.
func OrderedPair(a, b uint64) (uint64, uint64) {
	if a < b {
		return a, b
	}
	return b, a
}

// Other returns the participant that is not userID.
func (m Match) Other(userID uint64) uint64 {
	if m.User1ID == userID {
		return m.User2ID
	}
	return m.User1ID
}

func newID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

func (p *Profile) BeforeCreate(*gorm.DB) error          { newID(&p.ID); return nil }
func (p *Photo) BeforeCreate(*gorm.DB) error            { newID(&p.ID); return nil }
func (p *Prompt) BeforeCreate(*gorm.DB) error           { newID(&p.ID); return nil }
func (p *Preferences) BeforeCreate(*gorm.DB) error      { newID(&p.ID); return nil }
func (l *FavoriteLocation) BeforeCreate(*gorm.DB) error { newID(&l.ID); return nil }

// Timestamps used in pagination cursors are stored at millisecond precision
// even when set by the caller.

func (m *Match) BeforeCreate(*gorm.DB) error {
	newID(&m.ID)
	m.CreatedAt = m.CreatedAt.Truncate(time.Millisecond)
	return nil
}

func (d *Decision) BeforeSave(*gorm.DB) error {
	d.CreatedAt = d.CreatedAt.Truncate(time.Millisecond)
	d.UpdatedAt = d.UpdatedAt.Truncate(time.Millisecond)
	return nil
}

// All lists every model for migrations.
func All() []any {
	return []any{
		&User{}, &Profile{}, &Photo{}, &Prompt{}, &Preferences{},
		&FavoriteLocation{}, &Decision{}, &Match{},
	}
}
