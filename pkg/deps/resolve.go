package deps

import (
	"io"

	"github.com/charmbracelet/log"
)

// Resolve claims every task in backlog whose scope applies to rt and keeps
// one request per identity. A later request replaces an earlier one only
// when its preferred version is strictly greater. Winners come back in the
// order their identity was first seen; tasks that do not apply are
// returned untouched in remaining.
func Resolve(backlog []Task, rt ResolutionScope, logger *log.Logger) (winners []Request, remaining []Task) {
	if logger == nil {
		logger = log.New(io.Discard)
	}

	index := make(map[Identity]int)
	for _, t := range backlog {
		if !t.Scope.AppliesTo(rt) {
			remaining = append(remaining, t)
			continue
		}

		req := t.Request
		i, ok := index[req.Identity]
		if !ok {
			index[req.Identity] = len(winners)
			winners = append(winners, req)
			continue
		}

		current := winners[i]
		if req.Preferred.Compare(current.Preferred) > 0 {
			logger.Info("Replacing dependency",
				"artifact", req.Identity,
				"evicted", current.Preferred, "evictedRequester", current.Requester,
				"version", req.Preferred, "requester", req.Requester)
			winners[i] = req
		} else {
			logger.Debug("Dropping dependency in favor of an equal or newer request",
				"artifact", req.Identity,
				"evicted", req.Preferred, "evictedRequester", req.Requester,
				"version", current.Preferred, "requester", current.Requester)
		}
	}
	return winners, remaining
}
