package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/iota-uz/roster-sync/modules/roster/domain/roster"
)

// OrgResolution is the org a row belongs to.
type OrgResolution struct {
	Org     roster.OrgRecord
	Created bool
	Notes   []string
}

// OrgResolver maps a row to an existing org or creates one for an unseen code.
// Order: id, code, normalized name, create by code.
type OrgResolver struct {
	store     roster.Store
	index     *EntityIndex
	nameHints map[int]string
}

// NewOrgResolver builds a resolver. nameHints supplies a creation name per code for rows
// that carry a code without a name.
func NewOrgResolver(store roster.Store, index *EntityIndex, nameHints map[int]string) *OrgResolver {
	if nameHints == nil {
		nameHints = map[int]string{}
	}
	return &OrgResolver{store: store, index: index, nameHints: nameHints}
}

func (r *OrgResolver) Resolve(ctx context.Context, row roster.ImportRow) (OrgResolution, error) {
	var notes []string

	if id := strings.TrimSpace(row.OrgID); id != "" {
		if org, ok := r.index.OrgByID(id); ok {
			return OrgResolution{Org: org}, nil
		}
		notes = append(notes, fmt.Sprintf("organization id %q is not known to the store", id))
	}

	if row.OrgCode != nil {
		if org, ok := r.index.OrgByCode(*row.OrgCode); ok {
			return OrgResolution{Org: org, Notes: notes}, nil
		}
	}

	name := strings.TrimSpace(row.OrgName)
	if name != "" {
		if org, ok := r.index.OrgByName(name); ok {
			if row.OrgCode != nil {
				notes = append(notes, backfillNote(org, *row.OrgCode))
			}
			return OrgResolution{Org: org, Notes: notes}, nil
		}
	}

	if row.OrgCode != nil {
		res, err := r.create(ctx, *row.OrgCode, r.creationName(row))
		res.Notes = append(notes, res.Notes...)
		return res, err
	}

	if name != "" {
		if hint := r.closestName(name); hint != "" {
			notes = append(notes, fmt.Sprintf("closest known organization name: %q", hint))
		}
		return OrgResolution{Notes: notes}, fmt.Errorf(
			"%w: organization %q not found and cannot be created without a code", roster.ErrResolution, name)
	}
	return OrgResolution{Notes: notes}, roster.ErrResolution
}

func (r *OrgResolver) create(ctx context.Context, code int, name string) (OrgResolution, error) {
	unlock := r.index.lockCode(code)
	defer unlock()

	// Another row of this job may have created it while we waited.
	if org, ok := r.index.OrgByCode(code); ok {
		return OrgResolution{Org: org}, nil
	}

	org, err := r.store.CreateOrg(ctx, name, code)
	if err == nil {
		r.index.InsertOrg(org)
		recordOrgCreate("created")
		return OrgResolution{
			Org:     org,
			Created: true,
			Notes:   []string{fmt.Sprintf("organization %q created with code %d", org.Name, code)},
		}, nil
	}
	if !errors.Is(err, roster.ErrConflict) {
		recordOrgCreate("error")
		return OrgResolution{}, fmt.Errorf("create organization %d: %w", code, err)
	}

	recordOrgCreate("conflict")
	existing, ferr := r.store.FindOrgByCode(ctx, code)
	if ferr != nil {
		return OrgResolution{}, fmt.Errorf(
			"%w: organization code %d already exists but could not be fetched: %v", roster.ErrResolution, code, ferr)
	}
	r.index.InsertOrg(existing)
	return OrgResolution{
		Org:   existing,
		Notes: []string{fmt.Sprintf("organization code %d was created concurrently; using %s", code, existing.ID)},
	}, nil
}

func (r *OrgResolver) creationName(row roster.ImportRow) string {
	if name := strings.TrimSpace(row.OrgName); name != "" {
		return name
	}
	if name := r.nameHints[*row.OrgCode]; name != "" {
		return name
	}
	return fmt.Sprintf("Organization %d", *row.OrgCode)
}

// closestName suggests an indexed name for a miss: the best subsequence match, else the
// nearest name within a third of its length in edits.
func (r *OrgResolver) closestName(name string) string {
	key := NormalizeName(name)
	names := r.index.OrgNames()
	if ranks := fuzzy.RankFindNormalizedFold(key, names); len(ranks) > 0 {
		sort.Sort(ranks)
		return ranks[0].Target
	}

	best, bestDist := "", len(key)/3+1
	for _, candidate := range names {
		if d := fuzzy.LevenshteinDistance(key, candidate); d < bestDist {
			best, bestDist = candidate, d
		}
	}
	return best
}

func backfillNote(org roster.OrgRecord, rowCode int) string {
	if org.HasCode() {
		return fmt.Sprintf("organization %s matched by name has code %d, row has code %d", org.ID, org.Code, rowCode)
	}
	return fmt.Sprintf("organization %s matched by name has no code; code %d can be backfilled", org.ID, rowCode)
}

// collectNameHints keeps the first non-empty name given for each code.
func collectNameHints(rows []roster.ImportRow) map[int]string {
	hints := make(map[int]string)
	for _, row := range rows {
		if row.OrgCode == nil {
			continue
		}
		name := strings.TrimSpace(row.OrgName)
		if name == "" {
			continue
		}
		if _, ok := hints[*row.OrgCode]; !ok {
			hints[*row.OrgCode] = name
		}
	}
	return hints
}
