package social

import (
	_ "embed"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

type Recommendation struct {
	ID             string `yaml:"id" json:"id"`
	ExperienceSlug string `yaml:"experience_slug" json:"experienceSlug"`
	Title          string `yaml:"title" json:"title"`
	City           string `yaml:"city" json:"city"`
	MatchScore     int    `yaml:"match_score" json:"matchScore"`
	Reason         string `yaml:"reason" json:"reason"`
	Bookmarks      int    `yaml:"bookmarks" json:"bookmarks"`
	Bookmarked     bool   `yaml:"-" json:"bookmarked"`
}

type CoachTip struct {
	ID       string `yaml:"id" json:"id"`
	Category string `yaml:"category" json:"category"`
	Title    string `yaml:"title" json:"title"`
	Body     string `yaml:"body" json:"body"`
}

type Sentiment struct {
	ExperienceSlug string   `yaml:"experience_slug" json:"experienceSlug"`
	Positive       int      `yaml:"positive" json:"positive"`
	Neutral        int      `yaml:"neutral" json:"neutral"`
	Negative       int      `yaml:"negative" json:"negative"`
	Highlights     []string `yaml:"highlights" json:"highlights"`
}

type Story struct {
	ID       string    `yaml:"id" json:"id"`
	Author   string    `yaml:"author" json:"author"`
	Body     string    `yaml:"body" json:"body"`
	Likes    int       `yaml:"likes" json:"likes"`
	PostedAt time.Time `yaml:"posted_at" json:"postedAt"`
	Liked    bool      `yaml:"-" json:"liked"`
}

type Challenge struct {
	ID           string    `yaml:"id" json:"id"`
	Title        string    `yaml:"title" json:"title"`
	Description  string    `yaml:"description" json:"description"`
	Reward       string    `yaml:"reward" json:"reward"`
	Participants int       `yaml:"participants" json:"participants"`
	EndsAt       time.Time `yaml:"ends_at" json:"endsAt"`
	Joined       bool      `yaml:"-" json:"joined"`
}

type UGCItem struct {
	ID             string `yaml:"id" json:"id"`
	Author         string `yaml:"author" json:"author"`
	Caption        string `yaml:"caption" json:"caption"`
	ImageURL       string `yaml:"image_url" json:"imageUrl"`
	ExperienceSlug string `yaml:"experience_slug" json:"experienceSlug"`
	Likes          int    `yaml:"likes" json:"likes"`
	Liked          bool   `yaml:"-" json:"liked"`
}

// Catalog is the fixed content behind every feed.
type Catalog struct {
	Recommendations []Recommendation `yaml:"recommendations"`
	CoachTips       []CoachTip       `yaml:"coach_tips"`
	Sentiment       []Sentiment      `yaml:"sentiment"`
	Stories         []Story          `yaml:"stories"`
	Challenges      []Challenge      `yaml:"challenges"`
	UGC             []UGCItem        `yaml:"ugc"`
}

func DefaultCatalog() (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(catalogYAML, &c); err != nil {
		return Catalog{}, fmt.Errorf("parse social catalog: %w", err)
	}
	return c, nil
}
