package analysis

import (
	"context"

	"github.com/cqs-dev/cqs/internal/model"
)

// RelatedResult is FindRelated's output.
type RelatedResult struct {
	SharedCallers []*model.Chunk
	SharedCallees []*model.Chunk
	SharedTypes   []*model.Chunk
}

// FindRelated returns functions co-occurring with target via shared
// callers, shared callees, or shared custom types, each resolved with a
// single batched chunk fetch.
func (a *Analyzer) FindRelated(ctx context.Context, targetName string, limit int) (*RelatedResult, error) {
	sharedCallerNames, err := a.Store.FindSharedCallers(ctx, targetName, limit)
	if err != nil {
		return nil, err
	}
	sharedCalleeNames, err := a.Store.FindSharedCallees(ctx, targetName, limit)
	if err != nil {
		return nil, err
	}

	typeNames, err := a.Store.GetTypeDependencies(ctx, targetName)
	if err != nil {
		return nil, err
	}
	var sharedTypeNames []string
	for _, t := range typeNames {
		if isCommonType(t) {
			continue
		}
		users, err := a.Store.FindSharedTypeUsers(ctx, t, limit)
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			if u != targetName {
				sharedTypeNames = append(sharedTypeNames, u)
			}
		}
	}

	allNames := dedupeStrings(append(append(append([]string{}, sharedCallerNames...), sharedCalleeNames...), sharedTypeNames...))
	byName, err := a.Store.SearchByNamesBatch(ctx, allNames, 1)
	if err != nil {
		return nil, err
	}

	resolve := func(names []string) []*model.Chunk {
		var out []*model.Chunk
		for _, n := range names {
			if results := byName[n]; len(results) > 0 {
				out = append(out, results[0].Chunk)
			}
		}
		return out
	}

	return &RelatedResult{
		SharedCallers: resolve(sharedCallerNames),
		SharedCallees: resolve(sharedCalleeNames),
		SharedTypes:   resolve(dedupeStrings(sharedTypeNames)),
	}, nil
}

// commonTypes are filtered out of "shared types" because nearly every
// function mentions them.
var commonTypes = map[string]struct{}{
	"error": {}, "string": {}, "int": {}, "bool": {}, "context.Context": {},
	"any": {}, "interface{}": {}, "byte": {}, "float64": {},
}

func isCommonType(name string) bool {
	_, ok := commonTypes[name]
	return ok
}
