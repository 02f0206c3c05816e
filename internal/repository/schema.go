package repository

import (
	"strconv"

	"github.com/penne-app/penne/internal/remote"
)

type dialect int

const (
	sqliteDialect dialect = iota
	postgresDialect
)

// placeholder returns the bind marker for the n-th (1-based) argument
func (d dialect) placeholder(n int) string {
	if d == postgresDialect {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

func (d dialect) String() string {
	if d == postgresDialect {
		return "postgres"
	}
	return "sqlite"
}

// table describes a relation's columns. Only listed columns may appear in
// queries; identifiers are never taken from callers verbatim.
type table struct {
	columns map[string]bool
	json    map[string]bool // columns stored as JSON text
}

func newTable(cols []string, jsonCols ...string) table {
	t := table{columns: map[string]bool{}, json: map[string]bool{}}
	for _, c := range cols {
		t.columns[c] = true
	}
	for _, c := range jsonCols {
		t.json[c] = true
	}
	return t
}

var tables = map[string]table{
	remote.RelHalls:       newTable([]string{"name", "operating_hours"}, "operating_hours"),
	remote.RelHallRatings: newTable([]string{"id", "user_id", "dining_hall_name", "score", "created_at", "updated_at"}),
	remote.RelMenus:       newTable([]string{"id", "dining_hall_name", "meal_type", "station", "dish", "dish_upvote", "dish_downvote", "created_at"}),
	remote.RelDishRatings: newTable([]string{"dish_id", "user_id", "upvote", "downvote", "updated_at"}),
	remote.RelComments:    newTable([]string{"id", "user_id", "dining_hall_name", "content", "created_at"}),
	remote.RelProfiles:    newTable([]string{"id", "username", "full_name", "avatar_url", "updated_at"}),
	remote.RelFriends:     newTable([]string{"user_id", "friend_id", "created_at"}),
}

var sqliteMigrations = []string{
	`CREATE TABLE IF NOT EXISTS dining_halls (
		name TEXT PRIMARY KEY,
		operating_hours TEXT NOT NULL DEFAULT '{}'
	)`,
	`CREATE TABLE IF NOT EXISTS dining_hall_ratings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		dining_hall_name TEXT NOT NULL,
		score INTEGER NOT NULL CHECK (score BETWEEN 1 AND 10),
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(user_id, dining_hall_name)
	)`,
	`CREATE TABLE IF NOT EXISTS menus (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		dining_hall_name TEXT NOT NULL,
		meal_type TEXT NOT NULL DEFAULT '',
		station TEXT NOT NULL DEFAULT '',
		dish TEXT NOT NULL,
		dish_upvote INTEGER NOT NULL DEFAULT 0 CHECK (dish_upvote >= 0),
		dish_downvote INTEGER NOT NULL DEFAULT 0 CHECK (dish_downvote >= 0),
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS dish_ratings (
		dish_id INTEGER NOT NULL,
		user_id TEXT NOT NULL,
		upvote BOOLEAN NOT NULL DEFAULT 0,
		downvote BOOLEAN NOT NULL DEFAULT 0,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (dish_id, user_id),
		CHECK (NOT (upvote AND downvote)),
		FOREIGN KEY (dish_id) REFERENCES menus(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS dining_comments (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		dining_hall_name TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS profiles (
		id TEXT PRIMARY KEY,
		username TEXT UNIQUE COLLATE NOCASE,
		full_name TEXT NOT NULL DEFAULT '',
		avatar_url TEXT NOT NULL DEFAULT '',
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS friends (
		user_id TEXT NOT NULL,
		friend_id TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (user_id, friend_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_hall_ratings_hall ON dining_hall_ratings(dining_hall_name)`,
	`CREATE INDEX IF NOT EXISTS idx_menus_hall ON menus(dining_hall_name, meal_type)`,
	`CREATE INDEX IF NOT EXISTS idx_dish_ratings_user ON dish_ratings(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_comments_hall ON dining_comments(dining_hall_name, created_at)`,
}

var postgresMigrations = []string{
	`CREATE TABLE IF NOT EXISTS dining_halls (
		name TEXT PRIMARY KEY,
		operating_hours JSONB NOT NULL DEFAULT '{}'::jsonb
	)`,
	`CREATE TABLE IF NOT EXISTS dining_hall_ratings (
		id BIGSERIAL PRIMARY KEY,
		user_id TEXT NOT NULL,
		dining_hall_name TEXT NOT NULL,
		score INTEGER NOT NULL CHECK (score BETWEEN 1 AND 10),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (user_id, dining_hall_name)
	)`,
	`CREATE TABLE IF NOT EXISTS menus (
		id BIGSERIAL PRIMARY KEY,
		dining_hall_name TEXT NOT NULL,
		meal_type TEXT NOT NULL DEFAULT '',
		station TEXT NOT NULL DEFAULT '',
		dish TEXT NOT NULL,
		dish_upvote INTEGER NOT NULL DEFAULT 0 CHECK (dish_upvote >= 0),
		dish_downvote INTEGER NOT NULL DEFAULT 0 CHECK (dish_downvote >= 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS dish_ratings (
		dish_id BIGINT NOT NULL REFERENCES menus(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		upvote BOOLEAN NOT NULL DEFAULT false,
		downvote BOOLEAN NOT NULL DEFAULT false,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (dish_id, user_id),
		CHECK (NOT (upvote AND downvote))
	)`,
	`CREATE TABLE IF NOT EXISTS dining_comments (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		dining_hall_name TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS profiles (
		id TEXT PRIMARY KEY,
		username TEXT,
		full_name TEXT NOT NULL DEFAULT '',
		avatar_url TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_profiles_username ON profiles (lower(username))`,
	`CREATE TABLE IF NOT EXISTS friends (
		user_id TEXT NOT NULL,
		friend_id TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (user_id, friend_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_hall_ratings_hall ON dining_hall_ratings(dining_hall_name)`,
	`CREATE INDEX IF NOT EXISTS idx_menus_hall ON menus(dining_hall_name, meal_type)`,
	`CREATE INDEX IF NOT EXISTS idx_dish_ratings_user ON dish_ratings(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_comments_hall ON dining_comments(dining_hall_name, created_at)`,
}
