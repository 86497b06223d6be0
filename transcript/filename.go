package transcript

import (
	"fmt"
	"os"
	"time"
)

// DefaultDir is the output directory used when neither an explicit directory
// nor an environment override is provided.
const DefaultDir = "./logs"

// timestampLayout yields second granularity, filesystem safe timestamps.
const timestampLayout = "20060102_150405"

// BuildFilename composes the transcript filename convention
// <prefix>_<room>_<timestamp>.<ext>. Timestamps have second granularity, so
// two sessions in the same room more than a second apart never collide.
func BuildFilename(prefix, room string, ts time.Time, ext string) string {
	return fmt.Sprintf("%s_%s_%s.%s", prefix, room, ts.Format(timestampLayout), ext)
}

// ResolveDir picks the output directory: an explicit non-empty dir wins, then
// the value of the named environment variable, then DefaultDir. Pass an empty
// envKey to skip the environment lookup.
func ResolveDir(dir, envKey string) string {
	if dir != "" {
		return dir
	}

	if envKey != "" {
		if v := os.Getenv(envKey); v != "" {
			return v
		}
	}

	return DefaultDir
}
