package types

import "time"

type CacheEntry struct {
	StableID   uint64 `json:"stable_id" yaml:"stable_id"`
	Name       string `json:"name" yaml:"name"`
	LocationID uint16 `json:"location_id" yaml:"location_id"`
	LastSeen   int64  `json:"last_seen" yaml:"last_seen"`
}

type ManualEntry struct {
	Name       string `json:"name" yaml:"name" validate:"required"`
	LocationID uint16 `json:"location_id" yaml:"location_id" validate:"required"`
}

type Entity struct {
	ID                uint64 `json:"id"`
	Name              string `json:"name"`
	StableID          uint64 `json:"stable_id"`
	HomeLocationID    uint16 `json:"home_location_id"`
	CurrentLocationID uint16 `json:"current_location_id"`
	Friend            bool   `json:"friend"`
	Player            bool   `json:"player"`
	JobID             uint32 `json:"job_id"`
}

type RosterEntry struct {
	Name              string `json:"name"`
	CurrentLocationID uint16 `json:"current_location_id"`
	HomeLocationID    uint16 `json:"home_location_id"`
	StableID          uint64 `json:"stable_id"`
}

type Location struct {
	ID   uint16 `json:"id" yaml:"id" validate:"required"`
	Name string `json:"name" yaml:"name" validate:"required"`
}

type Job struct {
	ID           uint32 `json:"id" yaml:"id"`
	Abbreviation string `json:"abbreviation" yaml:"abbreviation"`
	Role         uint8  `json:"role" yaml:"role"`
}

type Policy struct {
	ShowFriendsReal                bool `json:"show_friends_real" yaml:"show_friends_real"`
	RealNamesOnlyInCompetitive     bool `json:"real_names_only_in_competitive" yaml:"real_names_only_in_competitive"`
	TestScrambleOutsideCompetitive bool `json:"test_scramble_outside_competitive" yaml:"test_scramble_outside_competitive"`
	ScrambleAllInCompetitive       bool `json:"scramble_all_in_competitive" yaml:"scramble_all_in_competitive"`
	UseCacheInCompetitive          bool `json:"use_cache_in_competitive" yaml:"use_cache_in_competitive"`
	ShowRoleTag                    bool `json:"show_role_tag" yaml:"show_role_tag"`
}

type DisplayMode string

const (
	DisplayDefault    DisplayMode = "default"
	DisplayReal       DisplayMode = "real"
	DisplayObfuscated DisplayMode = "obfuscated"
)

type TextSegment struct {
	Text    string `json:"text"`
	ColorID uint16 `json:"color_id,omitempty"`
}

type DisplayTransform struct {
	Mode       DisplayMode   `json:"mode"`
	Text       string        `json:"text"`
	Segments   []TextSegment `json:"segments,omitempty"`
	ClearTitle bool          `json:"clear_title"`
}

type EntityDisplay struct {
	EntityID  uint64           `json:"entity_id"`
	Transform DisplayTransform `json:"transform"`
}

type FriendsStatus struct {
	CacheSize          int       `json:"cache_size"`
	ManualCount        int       `json:"manual_count"`
	AllowListCount     int       `json:"allow_list_count"`
	PendingSeeds       int       `json:"pending_seeds"`
	LastSeedAt         time.Time `json:"last_seed_at"`
	LastSeedAdded      int       `json:"last_seed_added"`
	TTLDays            int       `json:"ttl_days"`
	Policy             Policy    `json:"policy"`
	Competitive        bool      `json:"competitive"`
	LoggedIn           bool      `json:"logged_in"`
	ShowFirstRunNotice bool      `json:"show_first_run_notice"`
}
