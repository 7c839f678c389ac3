// Package destination resolves where a save lands: a writable library
// plus an optional collection within it.
package destination

import (
	"fmt"
	"strconv"
	"strings"

	"folio/internal/services"
)

// Destination is a (library, collection) pair. A nil CollectionID
// means the library root.
type Destination struct {
	LibraryID    int64
	CollectionID *int64
}

// Select resolves the destination for a save. A nil request uses the
// caller's active destination. When the resolved library is not
// writable the default personal library is substituted silently and
// the collection is dropped, since a collection from the original
// library is meaningless elsewhere. Read-only substitution is policy,
// never an error.
func Select(requested *Destination, active Destination, writable map[int64]bool, defaultLibraryID int64) Destination {
	resolved := active
	if requested != nil {
		resolved = *requested
	}
	if !writable[resolved.LibraryID] {
		return Destination{LibraryID: defaultLibraryID}
	}
	return resolved
}

// ParseTarget parses a client target token: "L<id>" selects a library
// root, "C<id>" a collection. The collection's library is resolved by
// the caller.
func ParseTarget(target string) (isCollection bool, id int64, err error) {
	target = strings.TrimSpace(target)
	if len(target) < 2 {
		return false, 0, services.Wrap(services.ErrValidation, "destination", "parse target",
			fmt.Sprintf("invalid target %q", target), nil)
	}
	id, parseErr := strconv.ParseInt(target[1:], 10, 64)
	if parseErr != nil {
		return false, 0, services.Wrap(services.ErrValidation, "destination", "parse target",
			fmt.Sprintf("invalid target %q", target), parseErr)
	}
	switch target[0] {
	case 'C':
		return true, id, nil
	case 'L':
		return false, id, nil
	default:
		return false, 0, services.Wrap(services.ErrValidation, "destination", "parse target",
			fmt.Sprintf("invalid target prefix %q", target), nil)
	}
}
