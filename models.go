package tours

import (
	"encoding/json"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DefaultUserPhoto is assigned when a user has no photo
const DefaultUserPhoto = "default.jpg"

// User is the user model
type User struct {
	bun.BaseModel        `bun:"table:users,alias:usr"`
	ID                   uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	Name                 string     `bun:"name,notnull" json:"name"`
	Email                string     `bun:"email,notnull,unique" json:"email"`
	Photo                string     `bun:"photo" json:"photo,omitempty"`
	Phone                string     `bun:"phone_number,nullzero" json:"phone,omitempty"`
	Role                 UserRole   `bun:"role,notnull" json:"role"`
	PasswordHash         string     `bun:"password_hash,notnull" json:"-"`
	PasswordChangedAt    *time.Time `bun:"password_changed_at,nullzero" json:"-"`
	PasswordResetToken   string     `bun:"password_reset_token,nullzero" json:"-"`
	PasswordResetExpires *time.Time `bun:"password_reset_expires,nullzero" json:"-"`
	Active               bool       `bun:"active,notnull" json:"-"`
	Version              int        `bun:"version,notnull" json:"version,omitempty"`
	CreatedAt            time.Time  `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt            time.Time  `bun:"updated_at,notnull" json:"updatedAt"`
}

// ChangedPasswordAfter reports whether the password changed after a token
// with the given issued at was minted. Second precision.
func (u *User) ChangedPasswordAfter(issuedAt time.Time) bool {
	if u == nil || u.PasswordChangedAt == nil {
		return false
	}
	return issuedAt.Unix() < u.PasswordChangedAt.Unix()
}

// ClearPasswordReset drops any pending reset token
func (u *User) ClearPasswordReset() {
	u.PasswordResetToken = ""
	u.PasswordResetExpires = nil
}

// Difficulty of a tour
type Difficulty string

const (
	DifficultyEasy      Difficulty = "easy"
	DifficultyMedium    Difficulty = "medium"
	DifficultyDifficult Difficulty = "difficult"
)

// IsValid reports whether d is a known difficulty
func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyDifficult:
		return true
	}
	return false
}

// GeoPoint is a GeoJSON point. Coordinates are [lng, lat].
type GeoPoint struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
	Address     string    `json:"address,omitempty"`
	Description string    `json:"description,omitempty"`
	Day         int       `json:"day,omitempty"`
}

// Lng returns the longitude or 0
func (p GeoPoint) Lng() float64 {
	if len(p.Coordinates) < 2 {
		return 0
	}
	return p.Coordinates[0]
}

// Lat returns the latitude or 0
func (p GeoPoint) Lat() float64 {
	if len(p.Coordinates) < 2 {
		return 0
	}
	return p.Coordinates[1]
}

// DefaultRatingsAverage is used for tours without reviews
const DefaultRatingsAverage = 4.5

// Tour is the tour model
type Tour struct {
	bun.BaseModel   `bun:"table:tours,alias:tr"`
	ID              uuid.UUID   `bun:"id,pk,type:uuid" json:"id"`
	Name            string      `bun:"name,notnull,unique" json:"name"`
	Slug            string      `bun:"slug,notnull" json:"slug"`
	Duration        int         `bun:"duration,notnull" json:"duration"`
	MaxGroupSize    int         `bun:"max_group_size,notnull" json:"maxGroupSize"`
	Difficulty      Difficulty  `bun:"difficulty,notnull" json:"difficulty"`
	RatingsAverage  float64     `bun:"ratings_average,notnull" json:"ratingsAverage"`
	RatingsQuantity int         `bun:"ratings_quantity,notnull" json:"ratingsQuantity"`
	Price           float64     `bun:"price,notnull" json:"price"`
	PriceDiscount   float64     `bun:"price_discount" json:"priceDiscount,omitempty"`
	Summary         string      `bun:"summary,notnull" json:"summary"`
	Description     string      `bun:"description" json:"description,omitempty"`
	ImageCover      string      `bun:"image_cover,notnull" json:"imageCover"`
	Images          []string    `bun:"images" json:"images"`
	StartDates      []time.Time `bun:"start_dates" json:"startDates"`
	SecretTour      bool        `bun:"secret_tour,notnull" json:"-"`
	StartLocation   *GeoPoint   `bun:"start_location,nullzero" json:"startLocation,omitempty"`
	StartLat        float64     `bun:"start_lat" json:"-"`
	StartLng        float64     `bun:"start_lng" json:"-"`
	Locations       []GeoPoint  `bun:"locations" json:"locations"`
	Guides          []uuid.UUID `bun:"guides" json:"guides"`
	Version         int         `bun:"version,notnull" json:"version,omitempty"`
	CreatedAt       time.Time   `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt       time.Time   `bun:"updated_at,notnull" json:"updatedAt"`

	GuideUsers []*User   `bun:"-" json:"guideUsers,omitempty"`
	Reviews    []*Review `bun:"-" json:"reviews,omitempty"`
}

// DurationWeeks is the duration expressed in weeks
func (t *Tour) DurationWeeks() float64 {
	return float64(t.Duration) / 7
}

// MarshalJSON adds the virtual durationWeeks field
func (t Tour) MarshalJSON() ([]byte, error) {
	type tourJSON Tour
	return json.Marshal(struct {
		tourJSON
		DurationWeeks float64 `json:"durationWeeks"`
	}{tourJSON(t), t.DurationWeeks()})
}

// HasStartLocation reports whether the tour has start coordinates
func (t *Tour) HasStartLocation() bool {
	return t.StartLocation != nil && len(t.StartLocation.Coordinates) >= 2
}

// SyncStartLocation copies the start coordinates into the indexed columns
func (t *Tour) SyncStartLocation() {
	if !t.HasStartLocation() {
		t.StartLat, t.StartLng = 0, 0
		return
	}
	t.StartLat = t.StartLocation.Lat()
	t.StartLng = t.StartLocation.Lng()
}

// RoundRating rounds to one decimal, 4.666 -> 4.7
func RoundRating(v float64) float64 {
	return math.Round(v*10) / 10
}

// Review is a user's review of a tour
type Review struct {
	bun.BaseModel `bun:"table:reviews,alias:rv"`
	ID            uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	Review        string    `bun:"review,notnull" json:"review"`
	Rating        int       `bun:"rating,notnull" json:"rating"`
	TourID        uuid.UUID `bun:"tour_id,type:uuid,notnull" json:"tour"`
	AuthorID      uuid.UUID `bun:"author_id,type:uuid,notnull" json:"user"`
	Version       int       `bun:"version,notnull" json:"version,omitempty"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"createdAt"`

	Author *User `bun:"rel:belongs-to,join:author_id=id" json:"author,omitempty"`
}

// Booking is a paid tour reservation
type Booking struct {
	bun.BaseModel     `bun:"table:bookings,alias:bk"`
	ID                uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	TourID            uuid.UUID `bun:"tour_id,type:uuid,notnull" json:"tour"`
	UserID            uuid.UUID `bun:"user_id,type:uuid,notnull" json:"user"`
	Price             float64   `bun:"price,notnull" json:"price"`
	Paid              bool      `bun:"paid,notnull" json:"paid"`
	CheckoutSessionID string    `bun:"checkout_session_id,nullzero,unique" json:"checkoutSessionId,omitempty"`
	CreatedAt         time.Time `bun:"created_at,notnull" json:"createdAt"`

	Tour *Tour `bun:"rel:belongs-to,join:tour_id=id" json:"tourDetails,omitempty"`
	User *User `bun:"rel:belongs-to,join:user_id=id" json:"userDetails,omitempty"`
}

func prepareTimestamps(created, updated *time.Time) {
	now := time.Now().UTC()
	if created != nil && created.IsZero() {
		*created = now
	}
	if updated != nil {
		*updated = now
	}
}
