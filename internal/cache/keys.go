package cache

import "fmt"

// SessionKey is the single slot holding the serialized console session.
func SessionKey() string {
	return "console:session"
}

func JobSnapshotKey(jobID string) string {
	return fmt.Sprintf("job:%s", jobID)
}

func RateLimitKey(identity string) string {
	return fmt.Sprintf("ratelimit:%s", identity)
}
