package aqua

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/maruel/ksid"
)

// IDScheme selects how new document ids are allocated.
type IDScheme int

const (
	// UUIDs are random v4 UUIDs without hyphens, the shape CouchDB hands out.
	UUIDs IDScheme = iota
	// KSIDs are time-ordered, so documents list in creation order.
	KSIDs
)

func (s IDScheme) String() string {
	switch s {
	case UUIDs:
		return "uuid"
	case KSIDs:
		return "ksid"
	default:
		return fmt.Sprintf("ids(%d)", int(s))
	}
}

func ParseIDScheme(s string) (IDScheme, error) {
	switch strings.ToLower(s) {
	case "", "uuid":
		return UUIDs, nil
	case "ksid":
		return KSIDs, nil
	default:
		return 0, fmt.Errorf("unknown id scheme %q", s)
	}
}

func (s IDScheme) next() string {
	switch s {
	case KSIDs:
		return ksid.NewID().String()
	default:
		return strings.ReplaceAll(uuid.NewString(), "-", "")
	}
}
