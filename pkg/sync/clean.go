package sync

import (
	"context"
	"slices"

	"github.com/espace/zotsync/pkg/dedupe"
	"github.com/espace/zotsync/pkg/logging"
	"github.com/espace/zotsync/pkg/planner"
	"github.com/espace/zotsync/pkg/records"
)

// Clean clusters duplicates, merges each cluster into its canonical record
// and deletes the rest. With ResetStatus it also strips every prefixed tag.
func (s *Syncer) Clean(ctx context.Context) (*Result, error) {
	ctx, cancel, result := s.begin(ctx, CommandClean)
	defer cancel()
	m := newMachine(ctx, CommandClean, result)
	logger := logging.FromContext(ctx)

	// reject a bad threshold before any work
	engine, err := dedupe.New(s.options.Threshold)
	if err != nil {
		return result, m.fail(err)
	}

	m.enter(StateFetching)
	recs, err := s.fetch(ctx, s.options.OnlyPrefix)
	if err != nil {
		return result, m.fail(err)
	}
	result.Counts.Fetched = len(recs)

	m.enter(StateClustering)
	var clusters []dedupe.Cluster
	if s.options.Dedupe {
		clusters, err = engine.Cluster(ctx, recs)
		if err != nil {
			return result, m.fail(err)
		}
	}
	result.Counts.Clusters = len(clusters)

	m.enter(StatePlanning)
	plan := planner.New(s.options.Policy).Plan(clusters)
	if s.options.ResetStatus {
		plan.Actions = append(plan.Actions, planner.ResetStatus(postMerge(recs, plan), s.codec, nil)...)
	}
	result.Plan = plan
	logger.Info().
		Int("clusters", plan.Clusters).
		Int("actions", len(plan.Actions)).
		Int("mutations", plan.Mutations()).
		Msg("Plan computed")

	if s.options.DryRun {
		result.Counts.Merged = plan.Count(planner.ActionMergeTags)
		result.Counts.Deleted = plan.Count(planner.ActionDelete)
		result.Counts.Updated = plan.Count(planner.ActionRemoveTags)
		logger.Info().Bool("dry_run", true).Msg("Dry run completed - no changes applied")
		m.enter(StateDone)
		return result, nil
	}

	m.enter(StateApplying)
	if err := s.applyPlan(ctx, plan, recs, result); err != nil {
		return result, m.fail(err)
	}

	m.enter(StateDone)
	return result, nil
}

// postMerge is the record set as it will look after the merge actions:
// deleted members gone, canonical records carrying the merged tags.
func postMerge(recs []records.Record, plan *planner.Plan) []records.Record {
	deleted := plan.Deleted()
	merged := make(map[string][]string)
	for _, a := range plan.Actions {
		if a.Kind == planner.ActionMergeTags {
			merged[a.RecordID] = a.Tags
		}
	}
	out := make([]records.Record, 0, len(recs))
	for _, r := range recs {
		if slices.Contains(deleted, r.ID) {
			continue
		}
		if tags, ok := merged[r.ID]; ok {
			r = r.Clone()
			r.Tags = slices.Clone(tags)
		}
		out = append(out, r)
	}
	return out
}

// applyPlan executes actions one at a time. A record updated earlier in
// the plan is addressed with its fresh version. When a cluster's merge is
// skipped its deletes are skipped too, so no tag is ever lost.
func (s *Syncer) applyPlan(ctx context.Context, plan *planner.Plan, recs []records.Record, result *Result) error {
	logger := logging.FromContext(ctx)

	current := make(map[string]records.Record, len(recs))
	for _, r := range recs {
		current[r.ID] = r
	}
	blocked := make(map[int]bool)

	for _, a := range plan.Actions {
		if err := ctx.Err(); err != nil {
			return err
		}
		before := current[a.RecordID]
		version := before.Version
		if version == "" {
			version = a.Version
		}
		alog := logger.With().Str("action", a.Kind.String()).Str("record_id", a.RecordID).Logger()

		switch a.Kind {
		case planner.ActionKeep:
			alog.Debug().Int("cluster", a.Cluster).Msg("Keeping canonical record")

		case planner.ActionMergeTags, planner.ActionRemoveTags:
			if !a.Changed {
				if a.Kind == planner.ActionMergeTags {
					result.Counts.Merged++
				}
				alog.Debug().Msg("Tags already complete")
				continue
			}
			rec, err := s.repo.UpdateRecord(ctx, a.RecordID, version, records.TagsPatch(a.Tags))
			if err != nil {
				if skippable(err) {
					result.conflict(a.RecordID, a.Kind.String(), 0, err)
					if a.Kind == planner.ActionMergeTags {
						blocked[a.Cluster] = true
					}
					alog.Warn().Err(err).Msg("Action skipped")
					continue
				}
				return err
			}
			current[a.RecordID] = rec
			if a.Kind == planner.ActionMergeTags {
				result.Counts.Merged++
			} else {
				result.Counts.Updated++
			}
			alog.Info().Strs("tags", a.Tags).Msg("Tags written")
			s.updated(before, rec)

		case planner.ActionDelete:
			if blocked[a.Cluster] {
				result.Counts.Skipped++
				alog.Warn().Int("cluster", a.Cluster).Msg("Delete skipped, merge did not apply")
				continue
			}
			if err := s.repo.DeleteRecord(ctx, a.RecordID, version); err != nil {
				if skippable(err) {
					result.conflict(a.RecordID, a.Kind.String(), 0, err)
					alog.Warn().Err(err).Msg("Action skipped")
					continue
				}
				return err
			}
			delete(current, a.RecordID)
			result.Counts.Deleted++
			alog.Info().Str("title", a.Title).Msg("Record deleted")
			s.deleted(a.RecordID)
		}
	}
	return nil
}
