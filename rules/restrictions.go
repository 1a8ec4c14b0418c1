package rules

import (
	"fmt"
	"slices"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/miekg/dns"
)

// RRType is the type of a DNS resource record, see the Type* constants of
// package github.com/miekg/dns.
type RRType = uint16

// loadDNSTypes loads the $dnstype modifier.  types is the "|"-separated list
// of record type names, each optionally prefixed with "~".  A type can't be
// both permitted and restricted.
func loadDNSTypes(types string) (permitted, restricted []RRType, err error) {
	if types == "" {
		return nil, nil, errors.Error("no dns record types specified")
	}

	for _, name := range strings.Split(types, "|") {
		isRestricted := strings.HasPrefix(name, "~")
		if isRestricted {
			name = name[1:]
		}

		rr, ok := dns.StringToType[strings.ToUpper(strings.TrimSpace(name))]
		if !ok || rr == dns.TypeNone {
			return nil, nil, fmt.Errorf("dns record type %q is unknown", name)
		}

		if slices.Contains(permitted, rr) || slices.Contains(restricted, rr) {
			return nil, nil, fmt.Errorf("dns record type %q is duplicated", name)
		}

		if isRestricted {
			restricted = append(restricted, rr)
		} else {
			permitted = append(permitted, rr)
		}
	}

	return permitted, restricted, nil
}

// loadApps loads the $app modifier.  apps is the "|"-separated list of
// application names, each optionally prefixed with "~".
func loadApps(apps string) (permitted, restricted []string, err error) {
	if apps == "" {
		return nil, nil, errors.Error("no apps specified")
	}

	for _, app := range strings.Split(apps, "|") {
		isRestricted := strings.HasPrefix(app, "~")
		if isRestricted {
			app = app[1:]
		}

		if app == "" || strings.ContainsAny(app, " \t") {
			return nil, nil, fmt.Errorf("invalid app name %q", app)
		}

		if isRestricted {
			restricted = append(restricted, app)
		} else {
			permitted = append(permitted, app)
		}
	}

	return permitted, restricted, nil
}

// matchList is the common matching logic of the permitted and restricted
// lists of the $app and $dnstype modifiers.  Empty lists match anything.
func matchList[T comparable](permitted, restricted []T, v T) (ok bool) {
	if slices.Contains(restricted, v) {
		return false
	}

	return len(permitted) == 0 || slices.Contains(permitted, v)
}
