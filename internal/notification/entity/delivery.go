package entity

import (
	"strings"
	"time"

	"github.com/shandysiswandi/konkurs/internal/pkg/valueobject"
)

// DeliveryLog records one attempt to deliver a message. Destination is
// stored masked.
type DeliveryLog struct {
	ID               int64
	Channel          Channel
	Destination      string
	Purpose          Purpose
	Status           DeliveryStatus
	ProviderResponse valueobject.JSONMap
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// MaskDestination keeps the first four and last two characters of a phone
// number, and the first character and domain of an email address.
func MaskDestination(dst string) string {
	if local, domain, ok := strings.Cut(dst, "@"); ok {
		if local == "" {
			return "*@" + domain
		}
		return local[:1] + strings.Repeat("*", max(len(local)-1, 1)) + "@" + domain
	}

	if len(dst) <= 6 {
		return strings.Repeat("*", len(dst))
	}
	return dst[:4] + strings.Repeat("*", len(dst)-6) + dst[len(dst)-2:]
}
