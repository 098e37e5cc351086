package export

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/janelia-flyem/vstack/volume"
	"github.com/janelia-flyem/vstack/voxel"
)

// ChannelStats summarizes the values of one channel.
type ChannelStats struct {
	Channel int
	Count   int64
	Min     float64
	Max     float64
	Mean    float64
	StdDev  float64

	// Range is the channel's value range as reported by the source.
	Range [2]float64
}

func (s ChannelStats) String() string {
	return fmt.Sprintf("channel %d: %d values in [%g, %g], mean %g, std dev %g, declared range [%g, %g]",
		s.Channel, s.Count, s.Min, s.Max, s.Mean, s.StdDev, s.Range[0], s.Range[1])
}

// partial holds what is needed to merge per-slab statistics.
type partial struct {
	n        int64
	mean     float64
	m2       float64
	min, max float64
}

func (p *partial) merge(q partial) {
	if q.n == 0 {
		return
	}
	if p.n == 0 {
		*p = q
		return
	}
	n := p.n + q.n
	delta := q.mean - p.mean
	p.m2 += q.m2 + delta*delta*float64(p.n)*float64(q.n)/float64(n)
	p.mean += delta * float64(q.n) / float64(n)
	p.n = n
	p.min = math.Min(p.min, q.min)
	p.max = math.Max(p.max, q.max)
}

// Summarize computes per-channel statistics over the box selected by opt.  Only
// Origin, Size, Workers and BlockDepth of opt are used.
func Summarize(ctx context.Context, src volume.Source, opt Options) ([]ChannelStats, error) {
	opt.Kind = voxel.T_float64
	o := opt.withDefaults(src)
	if err := volume.CheckRegion(o.Origin, o.Size); err != nil {
		return nil, err
	}
	channels := src.Channels()
	totals := make([]partial, channels)
	values := make([]float64, 0)
	err := readSlabs(ctx, src, o, func(_ slab, buf voxel.Buffer) error {
		vals, err := voxel.As[float64](buf)
		if err != nil {
			return err
		}
		n := len(vals) / channels
		for c := 0; c < channels; c++ {
			values = values[:0]
			for i := 0; i < n; i++ {
				values = append(values, vals[i*channels+c])
			}
			if len(values) == 0 {
				continue
			}
			mean, variance := stat.MeanVariance(values, nil)
			if len(values) == 1 {
				variance = 0
			}
			totals[c].merge(partial{
				n:    int64(len(values)),
				mean: mean,
				m2:   variance * float64(len(values)-1),
				min:  floats.Min(values),
				max:  floats.Max(values),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]ChannelStats, channels)
	for c, p := range totals {
		s := ChannelStats{Channel: c, Count: p.n, Min: p.min, Max: p.max, Mean: p.mean}
		if p.n > 1 {
			s.StdDev = math.Sqrt(p.m2 / float64(p.n-1))
		}
		lo, hi, err := volume.ReadValueRangeAs[float64](src, c)
		if err != nil {
			return nil, err
		}
		s.Range = [2]float64{lo, hi}
		out[c] = s
	}
	return out, nil
}
