package access

import (
	"fmt"
	"strings"
)

// Level is the ordered permission level carried by an access grant.
type Level string

const (
	LevelRead    Level = "read"
	LevelComment Level = "comment"
	LevelEdit    Level = "edit"
)

var levelRank = map[Level]int{
	LevelRead:    1,
	LevelComment: 2,
	LevelEdit:    3,
}

// ParseLevel validates a wire-format permission level.
func ParseLevel(raw string) (Level, error) {
	level := Level(strings.TrimSpace(strings.ToLower(raw)))
	if _, ok := levelRank[level]; !ok {
		return "", fmt.Errorf("unknown permission level %q", raw)
	}
	return level, nil
}

// AtLeast reports whether l grants at least the rights of other.
func (l Level) AtLeast(other Level) bool {
	return levelRank[l] >= levelRank[other]
}

// Valid reports whether l is one of the known levels.
func (l Level) Valid() bool {
	_, ok := levelRank[l]
	return ok
}
