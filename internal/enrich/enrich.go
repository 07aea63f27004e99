package enrich

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// HashUserID derives the opaque identifier stored in place of a real Moodle
// user id. It takes the first 8 hex characters of the SHA-256 digest of the
// id's decimal form. 4 bytes of digest are enough to dedup a single site's
// userbase; this is not meant to resist deliberate reversal at scale.
func HashUserID(id int64) string {
	sum := sha256.Sum256([]byte(strconv.FormatInt(id, 10)))
	return hex.EncodeToString(sum[:])[:8]
}

// ClassroomLabel maps a network address to the classroom it belongs to.
// Site convention encodes the classroom in the last segment of the address:
// the last colon segment for IPv6, the last octet for IPv4.
func ClassroomLabel(addr string) string {
	var parts []string
	if strings.Contains(addr, ":") {
		parts = strings.Split(addr, ":")
	} else {
		parts = strings.Split(addr, ".")
	}

	last := parts[len(parts)-1]
	if last == "" {
		return "Unknown"
	}

	return fmt.Sprintf("Classroom %s", last)
}
