package merge

import (
	"sort"
	"strings"

	"github.com/echecs92/chess-sync/internal/extract"
)

// BaseSlug derives the short hash slug for one club. The seed concatenates
// the identifying fields so two clubs only share a base when they are
// genuinely indistinguishable, and the hash keeps the slug stable across
// runs even when unrelated clubs appear or disappear.
func BaseSlug(club PublicClub) string {
	deptKey := club.DepartmentCode
	if deptKey == "" {
		deptKey = club.DepartmentSlug
	}
	if deptKey == "" {
		deptKey = club.DepartmentName
	}
	parts := make([]string, 0, 5)
	for _, p := range []string{club.ID, club.Name, club.Commune, club.PostalCode, deptKey} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	seed := strings.Join(parts, "|")
	if seed == "" {
		seed = "club"
	}
	encoded := extract.ToBase36(extract.HashString(seed))
	for len(encoded) < 6 {
		encoded = "0" + encoded
	}
	if len(encoded) > 8 {
		encoded = encoded[:8]
	}
	return "c" + encoded
}

// stableKey orders colliding clubs deterministically before suffixing. The
// department component falls back the same way BaseSlug's seed does, so two
// clubs never collide on the base yet order by different department fields.
func stableKey(club PublicClub) string {
	deptKey := club.DepartmentCode
	if deptKey == "" {
		deptKey = club.DepartmentSlug
	}
	if deptKey == "" {
		deptKey = club.DepartmentName
	}
	return strings.Join([]string{club.ID, club.Name, club.Commune, club.PostalCode, deptKey}, "|")
}

// EnsureUniqueSlugs assigns Slug on every club, suffixing hash collisions
// ("-2", "-3", ...) in stable-key order so assignment does not depend on
// crawl order.
func EnsureUniqueSlugs(clubs []*PublicClub) {
	groups := map[string][]*PublicClub{}
	for _, club := range clubs {
		base := BaseSlug(*club)
		groups[base] = append(groups[base], club)
	}
	for base, group := range groups {
		if len(group) == 1 {
			group[0].Slug = base
			continue
		}
		sort.SliceStable(group, func(i, j int) bool {
			return stableKey(*group[i]) < stableKey(*group[j])
		})
		for idx, club := range group {
			if idx == 0 {
				club.Slug = base
			} else {
				club.Slug = base + "-" + extract.ToBase36(uint32(idx+1))
			}
		}
	}
}
