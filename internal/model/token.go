package model

import (
	"time"

	"github.com/google/uuid"
)

// NewToken returns a unique, time-ordered name for a node error artifact.
func NewToken(now time.Time) string {
	return now.UTC().Format("20060102T150405.000Z") + "-" + uuid.NewString()
}
