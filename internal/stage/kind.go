package stage

import (
	"fmt"
	"strings"
)

// Kind identifies a pipeline stage.
type Kind int

const (
	// KindFile collects the sources to upload. It runs no transition.
	KindFile Kind = iota
	// KindDeed attaches a deed to every item and stashes its payload.
	KindDeed
	// KindDetails applies deed and custom metadata to stashed objects.
	KindDetails
	// KindThanks records the receipts of finished items.
	KindThanks
)

// String returns the stage name.
func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDeed:
		return "deed"
	case KindDetails:
		return "details"
	case KindThanks:
		return "thanks"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "file":
		return KindFile, nil
	case "deed":
		return KindDeed, nil
	case "details":
		return KindDetails, nil
	case "thanks":
		return KindThanks, nil
	default:
		return 0, fmt.Errorf("unknown stage %q", s)
	}
}
