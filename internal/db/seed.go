package db

import (
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// seedTables is the deletion order for a fresh start (children first).
var seedTables = []string{
	"matches", "decisions", "favorite_locations",
	"photos", "prompts", "preferences", "profiles", "users",
}

var activityLevels = []string{"low", "medium", "high"}

// SeedTestData resets the database and populates it with demo data.
//
// Behavior:
//  1. Clears every table.
//  2. Creates 20 users with hashed passwords, each with a profile near a
//     common centre, 2–4 photos, one prompt and preferences.
//  3. Generates ~200 decisions with ~70% likes; every 3rd forces a mutual like.
//  4. Materialises a match for every mutual like.
//
// Compatible with both MySQL and SQLite (AUTO_INCREMENT reset skipped for SQLite).
func SeedTestData(db *gorm.DB, log *slog.Logger) error {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	if err := reset(db); err != nil {
		return err
	}
	log.Info("cleared existing data")

	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	const users = 20
	const centreLat, centreLon = 51.5072, -0.1276

	for i := 1; i <= users; i++ {
		user := User{
			Username:     fmt.Sprintf("user%d", i),
			Email:        fmt.Sprintf("user%d@example.com", i),
			PasswordHash: string(hash),
			Active:       true,
			LastActiveAt: time.Now().Add(-time.Duration(r.Intn(48)) * time.Hour),
		}
		if err := db.Create(&user).Error; err != nil {
			return fmt.Errorf("failed to seed user: %w", err)
		}

		lat := centreLat + (r.Float64()-0.5)*0.4
		lon := centreLon + (r.Float64()-0.5)*0.6
		minAge := r.Intn(5)

		profile := Profile{
			UserID:    user.ID,
			Name:      fmt.Sprintf("Pup %d", i),
			Age:       1 + r.Intn(14),
			Bio:       "Loves fetch and long walks.",
			Latitude:  &lat,
			Longitude: &lon,
			Prompts: []Prompt{
				{Question: "Favourite toy?", Answer: "Anything that squeaks", Position: 0},
			},
			Preferences: &Preferences{
				MinAge:        minAge,
				MaxAge:        minAge + 5 + r.Intn(10),
				MaxDistance:   25,
				ActivityLevel: activityLevels[r.Intn(len(activityLevels))],
				DistanceUnit:  "miles",
			},
		}
		for p := 0; p < 2+r.Intn(3); p++ {
			profile.Photos = append(profile.Photos, Photo{
				URL:      fmt.Sprintf("https://img.example.com/%d/%d.jpg", user.ID, p),
				Position: p,
			})
		}
		if err := db.Create(&profile).Error; err != nil {
			return fmt.Errorf("failed to seed profile: %w", err)
		}
	}
	log.Info("seeded users and profiles", "count", users)

	counter := 0
	for actorID := uint64(1); actorID <= users; actorID++ {
		for j := 0; j < 12; j++ { // each user decides on ~12 others
			recipientID := uint64(r.Intn(users) + 1)
			if actorID == recipientID {
				continue
			}

			liked := r.Intn(100) < 70
			if counter%3 == 0 {
				liked = true
				if err := upsertDecision(db, recipientID, actorID, true); err != nil {
					return err
				}
			}
			if err := upsertDecision(db, actorID, recipientID, liked); err != nil {
				return err
			}
			counter++
		}
	}

	n, err := deriveMatches(db)
	if err != nil {
		return err
	}
	log.Info("seeded decisions", "count", counter, "matches", n)
	return nil
}

// SeedMinimalTestData inserts a small deterministic dataset:
//
//   - users 1..3, each with a profile (ages 3, 2, 4) and two photos
//   - user1 ↔ user2 mutual like with its match
//   - user3 → user1 like, user1 → user3 pass
func SeedMinimalTestData(db *gorm.DB) error {
	if err := reset(db); err != nil {
		return err
	}

	users := []User{
		{ID: 1, Username: "user1", Email: "u1@test.com", PasswordHash: "x", Active: true, LastActiveAt: time.Now()},
		{ID: 2, Username: "user2", Email: "u2@test.com", PasswordHash: "x", Active: true, LastActiveAt: time.Now()},
		{ID: 3, Username: "user3", Email: "u3@test.com", PasswordHash: "x", Active: true, LastActiveAt: time.Now()},
	}
	if err := db.Create(&users).Error; err != nil {
		return err
	}

	ages := map[uint64]int{1: 3, 2: 2, 3: 4}
	for _, u := range users {
		p := Profile{
			UserID: u.ID,
			Name:   u.Username,
			Age:    ages[u.ID],
			Bio:    "bio",
			Photos: []Photo{
				{URL: fmt.Sprintf("https://img.test/%d/0.jpg", u.ID), Position: 0},
				{URL: fmt.Sprintf("https://img.test/%d/1.jpg", u.ID), Position: 1},
			},
			Preferences: &Preferences{MinAge: 0, MaxAge: 20, MaxDistance: 25, ActivityLevel: "medium", DistanceUnit: "miles"},
		}
		if err := db.Create(&p).Error; err != nil {
			return err
		}
	}

	decisions := []Decision{
		{ActorID: 1, RecipientID: 2, Liked: true},  // user1 → user2 (like)
		{ActorID: 2, RecipientID: 1, Liked: true},  // user2 → user1 (like) → mutual
		{ActorID: 3, RecipientID: 1, Liked: true},  // user3 → user1 (like, non-mutual)
		{ActorID: 1, RecipientID: 3, Liked: false}, // user1 → user3 (pass)
	}
	if err := db.Create(&decisions).Error; err != nil {
		return err
	}
	return db.Create(&Match{User1ID: 1, User2ID: 2}).Error
}

func reset(db *gorm.DB) error {
	for _, t := range seedTables {
		if err := db.Exec("DELETE FROM " + t).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", t, err)
		}
	}

	// Reset auto-increment sequences
	switch db.Dialector.Name() {
	case "mysql":
		db.Exec("ALTER TABLE users AUTO_INCREMENT = 1")
	case "sqlite":
		db.Exec("DELETE FROM sqlite_sequence WHERE name = 'users'")
	}
	return nil
}

func upsertDecision(db *gorm.DB, actorID, recipientID uint64, liked bool) error {
	d := Decision{ActorID: actorID, RecipientID: recipientID, Liked: liked}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "actor_id"}, {Name: "recipient_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"liked", "updated_at"}),
	}).Create(&d).Error
	if err != nil {
		return fmt.Errorf("failed to seed decision: %w", err)
	}
	return nil
}

// deriveMatches inserts a match for every mutual like pair.
func deriveMatches(db *gorm.DB) (int, error) {
	type pair struct{ A, B uint64 }
	var pairs []pair
	err := db.Table("decisions d1").
		Select("d1.actor_id AS a, d1.recipient_id AS b").
		Joins("JOIN decisions d2 ON d2.actor_id = d1.recipient_id AND d2.recipient_id = d1.actor_id").
		Where("d1.liked = ? AND d2.liked = ? AND d1.actor_id < d1.recipient_id", true, true).
		Scan(&pairs).Error
	if err != nil {
		return 0, fmt.Errorf("failed to find mutual likes: %w", err)
	}

	for _, p := range pairs {
		m := Match{User1ID: p.A, User2ID: p.B}
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&m).Error; err != nil {
			return 0, fmt.Errorf("failed to seed match: %w", err)
		}
	}
	return len(pairs), nil
}
