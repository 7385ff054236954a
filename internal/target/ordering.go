package target

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"time"

	"github.com/duskline/duskline/internal/config"
	"github.com/duskline/duskline/models"
)

// order applies the run's ordering policy to an already-deduplicated
// target list. It never mutates the input slice in place.
func order(targets []models.Target, policy config.OrderingPolicy, degradeHard bool) ([]models.Target, error) {
	switch policy {
	case config.OrderingFileOrder, "":
		return targets, nil
	case config.OrderingLatest:
		return orderByLatest(targets), nil
	case config.OrderingStars:
		return orderByStars(targets, degradeHard)
	case config.OrderingRandom:
		return orderRandom(targets), nil
	default:
		return nil, fmt.Errorf("unsupported ordering policy %q", policy)
	}
}

func orderRandom(targets []models.Target) []models.Target {
	out := append([]models.Target(nil), targets...)
	rng := rand.New(rand.NewSource(time.Now().UnixNano())) // #nosec G404 -- scheduling order, not a security decision
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func orderByLatest(targets []models.Target) []models.Target {
	out := append([]models.Target(nil), targets...)
	sort.SliceStable(out, func(i, j int) bool {
		pi, _ := pushedAt(out[i])
		pj, _ := pushedAt(out[j])
		return pi > pj
	})
	return out
}

// orderByStars sorts descending by star metric, ties broken
// lexicographically by canonical-key. If none of the targets carry a star
// metric, the backing store had no star column; this degrades to Random
// ordering with a diagnostic, unless degradeHard requests a hard error
// instead (the operator-judgment call flagged as an Open Question).
func orderByStars(targets []models.Target, degradeHard bool) ([]models.Target, error) {
	anyStars := false
	for _, t := range targets {
		if _, ok := stars(t); ok {
			anyStars = true
			break
		}
	}
	if !anyStars {
		if degradeHard {
			return nil, fmt.Errorf("stars ordering requested but the backing store has no star column")
		}
		slog.Warn("stars ordering requested but the backing store has no star column; downgrading to random ordering")
		return orderRandom(targets), nil
	}

	out := append([]models.Target(nil), targets...)
	sort.SliceStable(out, func(i, j int) bool {
		si, _ := stars(out[i])
		sj, _ := stars(out[j])
		if si != sj {
			return si > sj
		}
		return out[i].CanonicalKey() < out[j].CanonicalKey()
	})
	return out, nil
}

func pushedAt(t models.Target) (int64, bool) {
	switch v := t.(type) {
	case models.CommitTarget:
		return v.PushedAt, v.PushedAt != 0
	case models.RepositoryTarget:
		return v.PushedAt, v.PushedAt != 0
	default:
		return 0, false
	}
}

func stars(t models.Target) (int, bool) {
	switch v := t.(type) {
	case models.CommitTarget:
		return v.Stars, v.HasStars
	case models.RepositoryTarget:
		return v.Stars, v.HasStars
	default:
		return 0, false
	}
}
