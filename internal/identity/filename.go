package identity

import (
	"math/rand/v2"
	"regexp"
	"strconv"
	"time"
)

const maxFilenameLength = 100

var (
	unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)
	repeatedUnderscores = regexp.MustCompile(`_{2,}`)
)

func sanitizeFilename(name string) string {
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	name = repeatedUnderscores.ReplaceAllString(name, "_")
	if len(name) > maxFilenameLength {
		name = name[:maxFilenameLength]
	}
	return name
}

// documentFilename names a renamed document image after its holder.
// The extension is always .jpg whatever the source encoding was.
func documentFilename(firstName, lastName, number string, now time.Time) string {
	ts := strconv.FormatInt(now.UnixMilli(), 10)
	switch {
	case firstName != "" && lastName != "" && number != "":
		return sanitizeFilename(firstName+"_"+lastName+"_"+number+"_"+ts) + ".jpg"
	case number != "":
		return sanitizeFilename("passport_"+number+"_"+ts) + ".jpg"
	default:
		return "passport_" + ts + "_" + randomBase36(6) + ".jpg"
	}
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

func randomBase36(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = base36[rand.IntN(len(base36))]
	}
	return string(b)
}
