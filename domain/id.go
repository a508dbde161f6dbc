package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// NewID returns a prefixed identifier, e.g. "sale-9f3c…". The prefix keeps
// log lines and memos readable when ids from different record kinds mix.
func NewID(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}
