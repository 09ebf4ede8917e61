package sync

import (
	"errors"
	"fmt"
	"time"

	"github.com/taskloop/taskloop/internal/model"
)

// Policy decides which side of a conflicting task wins during merge.
type Policy string

const (
	PolicyServerWins Policy = "server_wins"
	PolicyClientWins Policy = "client_wins"
	PolicyMerge      Policy = "merge"
)

var ErrInvalidPolicy = errors.New("sync: invalid conflict policy")

func (p Policy) IsValid() bool {
	switch p {
	case PolicyServerWins, PolicyClientWins, PolicyMerge:
		return true
	default:
		return false
	}
}

// MergeResult holds the reconciled collection and the tasks that must be
// pushed back to the remote store.
type MergeResult struct {
	Merged   []model.Task
	ToUpload []model.Task
}

// Merge reconciles a local against a remote collection. Merged always
// contains exactly the union of ids from both sides: local-only tasks are
// kept and queued for upload, remote-only tasks are adopted, and for ids on
// both sides the policy picks the survivor.
func Merge(local, remote []model.Task, policy Policy) (MergeResult, error) {
	return mergeAt(local, remote, policy, time.Now().UTC())
}

func mergeAt(local, remote []model.Task, policy Policy, now time.Time) (MergeResult, error) {
	if !policy.IsValid() {
		return MergeResult{}, fmt.Errorf("%w: %q", ErrInvalidPolicy, policy)
	}

	remoteByID := make(map[string]model.Task, len(remote))
	for _, t := range remote {
		remoteByID[t.ID] = t
	}
	localIDs := make(map[string]bool, len(local))

	res := MergeResult{
		Merged:   make([]model.Task, 0, len(local)+len(remote)),
		ToUpload: make([]model.Task, 0),
	}

	for _, lt := range local {
		localIDs[lt.ID] = true
		rt, onRemote := remoteByID[lt.ID]
		if !onRemote {
			res.Merged = append(res.Merged, lt.Clone())
			res.ToUpload = append(res.ToUpload, lt.Clone())
			continue
		}
		merged, upload := resolve(lt, rt, policy, now)
		res.Merged = append(res.Merged, merged)
		if upload {
			res.ToUpload = append(res.ToUpload, merged.Clone())
		}
	}

	for _, rt := range remote {
		if !localIDs[rt.ID] {
			res.Merged = append(res.Merged, rt.Clone())
		}
	}
	return res, nil
}

func resolve(local, remote model.Task, policy Policy, now time.Time) (model.Task, bool) {
	switch policy {
	case PolicyClientWins:
		return local.Clone(), true
	case PolicyServerWins:
		if !remote.UpdatedAt.Before(local.UpdatedAt) {
			return remote.Clone(), false
		}
		return local.Clone(), true
	case PolicyMerge:
		return resolveMerge(local, remote, now)
	default:
		return remote.Clone(), false
	}
}

// resolveMerge takes the later side as base and unions the subtask lists by
// id; on id collision the base's item wins. Field-level conflicts inside a
// surviving subtask are deliberately not reconciled further.
func resolveMerge(local, remote model.Task, now time.Time) (model.Task, bool) {
	base, other := remote, local
	baseIsLocal := false
	if local.UpdatedAt.After(remote.UpdatedAt) {
		base, other = local, remote
		baseIsLocal = true
	}

	out := base.Clone()
	out.Subtasks = unionSubtasks(base.Subtasks, other.Subtasks)
	grew := len(out.Subtasks) > len(base.Subtasks)
	// Only a union that actually changed the base earns a fresh stamp;
	// re-merging already-reconciled sides must be a no-op.
	if grew {
		out.UpdatedAt = model.StampAfter(base.UpdatedAt, now)
	}

	// Upload whenever the merged value differs from what the remote holds.
	return out, baseIsLocal || grew
}

func unionSubtasks(base, other []model.Subtask) []model.Subtask {
	out := make([]model.Subtask, len(base))
	copy(out, base)
	seen := make(map[string]bool, len(base))
	for _, st := range base {
		seen[st.ID] = true
	}
	for _, st := range other {
		if !seen[st.ID] {
			seen[st.ID] = true
			out = append(out, st)
		}
	}
	return out
}
