package migration

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"strconv"

	"github.com/pagekeep/pagekeep/internal/common"
)

// Unit is a single registered migration. Raw is the registered identifier
// (e.g. "001_create_tables"); its numeric prefix orders the catalog and the
// remainder is the unit's stable persisted identity. Apply runs inside the
// transaction the engine opens for it and must not commit or roll back itself.
type Unit struct {
	Raw   string
	Apply func(ctx context.Context, tx *sql.Tx) error
}

// OrderedUnit is a catalog entry: a unit plus its derived ordering key and
// persisted name.
type OrderedUnit struct {
	Prefix    int
	HasPrefix bool
	Name      string
	Unit      Unit
}

var (
	rawUnitRegex    = regexp.MustCompile(`^(\d+)[_-](.+)$`)
	bareNumberRegex = regexp.MustCompile(`^\d+[_-]?$`)
)

// Discover orders the registered units and derives their stable names.
// Ordering is by ascending numeric prefix; units without a parseable prefix
// sort last in registration order. A unit whose raw identifier yields no name
// is skipped (logged, not fatal). Two units reducing to the same derived name
// are rejected: set-difference by name would silently treat them as one unit.
func Discover(units []Unit) ([]OrderedUnit, error) {
	logger := common.GetLogger().WithComponent("catalog")

	out := make([]OrderedUnit, 0, len(units))
	seen := map[string]string{}
	for _, u := range units {
		ou, ok := parseRaw(u)
		if !ok {
			logger.Error("skipping unit with unusable identifier", "raw", u.Raw)
			continue
		}
		if prev, dup := seen[ou.Name]; dup {
			return nil, fmt.Errorf("duplicate derived name %q from units %q and %q", ou.Name, prev, u.Raw)
		}
		seen[ou.Name] = u.Raw
		out = append(out, ou)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.HasPrefix != b.HasPrefix {
			return a.HasPrefix
		}
		if !a.HasPrefix {
			// both unprefixed: keep registration order
			return false
		}
		return a.Prefix < b.Prefix
	})
	return out, nil
}

func parseRaw(u Unit) (OrderedUnit, bool) {
	if u.Raw == "" || u.Apply == nil || bareNumberRegex.MatchString(u.Raw) {
		return OrderedUnit{}, false
	}
	m := rawUnitRegex.FindStringSubmatch(u.Raw)
	if len(m) == 0 {
		// no numeric prefix: the raw identifier is the name, ordered last
		return OrderedUnit{Name: u.Raw, Unit: u}, true
	}
	idx, err := strconv.Atoi(m[1])
	if err != nil {
		return OrderedUnit{}, false
	}
	return OrderedUnit{Prefix: idx, HasPrefix: true, Name: m[2], Unit: u}, true
}
