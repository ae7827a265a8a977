package services

import (
	"fmt"
	"sort"
	"sync"

	"github.com/agisfl/agisfl-server/internal/core/models"
	"github.com/agisfl/agisfl-server/internal/core/ports"
)

const (
	StrategyFedAvg  = "FedAvg"
	StrategyFedProx = "FedProx"

	// DefaultProximalMu is the mixing coefficient of the proximal-shrink
	// strategy.
	DefaultProximalMu = 0.1
)

// StrategyRegistry maps strategy names to implementations. Registration is
// administrative; lookups are concurrent-safe.
type StrategyRegistry struct {
	mu         sync.RWMutex
	strategies map[string]ports.Strategy
}

func NewStrategyRegistry() *StrategyRegistry {
	r := &StrategyRegistry{strategies: make(map[string]ports.Strategy)}
	r.Register(&FedAvgStrategy{})
	r.Register(&FedProxStrategy{Mu: DefaultProximalMu})
	return r
}

func (r *StrategyRegistry) Register(s ports.Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[s.Name()] = s
}

func (r *StrategyRegistry) Get(name string) (ports.Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, name)
	}
	return s, nil
}

func (r *StrategyRegistry) List() []models.StrategyInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]models.StrategyInfo, 0, len(r.strategies))
	for _, s := range r.strategies {
		info := models.StrategyInfo{Name: s.Name(), Description: s.Description()}
		switch s.Name() {
		case StrategyFedProx:
			info.SuitableFor = []string{"IID data", "non-IID data"}
		default:
			info.SuitableFor = []string{"IID data"}
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// FedAvgStrategy computes, per parameter key, the sample-count-weighted mean
// over the updates that carry that key. When every sample count is zero it
// falls back to an unweighted mean. The overall accuracy is always the
// unweighted arithmetic mean of contributing updates' accuracy; this
// simplification is intentional and kept for stability.
type FedAvgStrategy struct{}

func (s *FedAvgStrategy) Name() string { return StrategyFedAvg }

func (s *FedAvgStrategy) Description() string { return "Federated Averaging" }

func (s *FedAvgStrategy) Aggregate(updates []models.Update) models.AggregationResult {
	valid := validUpdates(updates)
	if len(valid) == 0 {
		return models.AggregationResult{}
	}

	var totalSamples uint
	for _, u := range valid {
		totalSamples += u.SampleCount
	}

	aggregated := make(models.ParameterSet)
	for _, key := range parameterKeys(valid) {
		if tensor := aggregateKey(valid, key, totalSamples == 0); tensor != nil {
			aggregated[key] = tensor
		}
	}

	return models.AggregationResult{
		Parameters:  aggregated,
		SampleCount: totalSamples,
		Accuracy:    meanAccuracy(valid),
	}
}

// aggregateKey averages one parameter tensor over the updates that carry the
// key. Contributions whose tensor length differs from the first contributor
// are skipped. With unweighted set, every contributor counts equally;
// otherwise each is weighted by its share of the contributors' sample total.
func aggregateKey(valid []models.Update, key string, unweighted bool) []float64 {
	var (
		length   = -1
		keyTotal uint
	)
	for _, u := range valid {
		v, ok := u.Parameters[key]
		if !ok {
			continue
		}
		if length < 0 {
			length = len(v)
		}
		if len(v) == length {
			keyTotal += u.SampleCount
		}
	}
	if length < 0 {
		return nil
	}

	// A key whose contributors all report zero samples cannot be weighted
	// by sample share; average those contributors equally instead.
	if keyTotal == 0 {
		unweighted = true
	}

	out := make([]float64, length)
	contributors := 0
	for _, u := range valid {
		v, ok := u.Parameters[key]
		if !ok || len(v) != length {
			continue
		}
		contributors++
		if !unweighted {
			weight := float64(u.SampleCount) / float64(keyTotal)
			for i, x := range v {
				out[i] += x * weight
			}
		} else {
			for i, x := range v {
				out[i] += x
			}
		}
	}
	if contributors == 0 {
		return nil
	}
	if unweighted {
		for i := range out {
			out[i] /= float64(contributors)
		}
	}
	return out
}

// FedProxStrategy first computes the weighted average, then shrinks every
// aggregated tensor toward the first update's corresponding value by the
// mixing coefficient Mu. This is a simplified stand-in for proximal
// regularization, not research-grade FedProx.
type FedProxStrategy struct {
	Mu float64
}

func (s *FedProxStrategy) Name() string { return StrategyFedProx }

func (s *FedProxStrategy) Description() string { return "Federated Proximal (simplified)" }

func (s *FedProxStrategy) Aggregate(updates []models.Update) models.AggregationResult {
	base := (&FedAvgStrategy{}).Aggregate(updates)
	if base.Empty() || len(updates) == 0 {
		return base
	}

	first := updates[0].Parameters
	for key, avg := range base.Parameters {
		ref, ok := first[key]
		if !ok || len(ref) != len(avg) {
			continue
		}
		for i := range avg {
			avg[i] = avg[i]*(1-s.Mu) + ref[i]*s.Mu
		}
	}
	return base
}

func validUpdates(updates []models.Update) []models.Update {
	valid := make([]models.Update, 0, len(updates))
	for _, u := range updates {
		if u.Valid() {
			valid = append(valid, u)
		}
	}
	return valid
}

// parameterKeys returns the union of keys across valid updates, in a stable
// order.
func parameterKeys(valid []models.Update) []string {
	seen := make(map[string]struct{})
	keys := make([]string, 0)
	for _, u := range valid {
		for k := range u.Parameters {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	return keys
}

func meanAccuracy(valid []models.Update) float64 {
	if len(valid) == 0 {
		return 0
	}
	var sum float64
	for _, u := range valid {
		sum += u.Accuracy
	}
	return sum / float64(len(valid))
}
