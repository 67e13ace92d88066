package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"go.ngs.io/weather-maps-api/internal/domain"
)

const (
	baseTimeFrequency  = 12 * time.Hour
	validTimeFrequency = 6 * time.Hour

	// DefaultDiscoveryWindow is how far back base times are listed when no
	// query time is given.
	DefaultDiscoveryWindow = 7 * 24 * time.Hour
)

// TimeService lists the base and valid times a client can request.
type TimeService struct {
	models *Models
	window time.Duration
	log    *zap.Logger
}

// NewTimeService creates a TimeService. A non-positive window uses
// DefaultDiscoveryWindow.
func NewTimeService(models *Models, window time.Duration, log *zap.Logger) *TimeService {
	if window <= 0 {
		window = DefaultDiscoveryWindow
	}
	return &TimeService{models: models, window: window, log: log}
}

func (s *TimeService) discoverable(model domain.ModelID, plot domain.PlotType) (Registration, error) {
	if plot.Dir() == "" {
		return Registration{}, domain.NewError(domain.CodeInvalidArgument, "invalid variable type: %q", plot)
	}
	reg, err := s.models.Resolve(model)
	if err != nil {
		return Registration{}, err
	}
	if !reg.Discoverable || reg.Source == nil {
		return Registration{}, domain.NewError(domain.CodeNotSupported, "time discovery is not supported for model %s", model)
	}
	return reg, nil
}

// BaseTimes lists forecast base times, every 12 hours, that exist in the
// model's store. With a query time only that instant is checked. Otherwise
// the window ending at the store's last time is listed.
func (s *TimeService) BaseTimes(ctx context.Context, model domain.ModelID, plot domain.PlotType, query *time.Time) ([]domain.TimeOption, error) {
	reg, err := s.discoverable(model, plot)
	if err != nil {
		return nil, err
	}
	times, err := s.baseTimes(ctx, reg, plot, query)
	if err != nil {
		return nil, err
	}
	out := make([]domain.TimeOption, 0, len(times))
	for _, t := range times {
		out = append(out, domain.NewTimeOption(t))
	}
	return out, nil
}

func (s *TimeService) baseTimes(ctx context.Context, reg Registration, plot domain.PlotType, query *time.Time) ([]time.Time, error) {
	var start, end time.Time
	if query != nil {
		start, end = query.UTC(), query.UTC()
	} else {
		axis, err := reg.Source.TimeAxis(ctx)
		if err != nil {
			return nil, domain.WrapError(domain.CodeUpstream, err, "failed to read time axis of %s", reg.ID)
		}
		if len(axis) == 0 {
			s.log.Warn("store has no times", zap.String("model", string(reg.ID)))
			return nil, nil
		}
		end = axis[len(axis)-1]
		start = end.Add(-s.window)
	}

	sub, err := reg.Source.Subset(ctx, domain.SubsetQuery{
		Start:     start,
		End:       end,
		Frequency: baseTimeFrequency,
		Variables: []string{reg.Variables.Primary(plot)},
		LeadTimes: domain.DefaultLeadTimes(),
	})
	if err != nil {
		return nil, domain.WrapError(domain.CodeUpstream, err, "error getting base times for %s", reg.ID)
	}
	return sub.Times, nil
}

// ValidTimes returns base+lead for each published lead time, as a single
// inner list. The base is the query time, or else the latest base time.
func (s *TimeService) ValidTimes(ctx context.Context, model domain.ModelID, plot domain.PlotType, query *time.Time) ([][]domain.TimeOption, error) {
	reg, err := s.discoverable(model, plot)
	if err != nil {
		return nil, err
	}
	base, ok, err := s.validBase(ctx, reg, plot, query)
	if err != nil {
		return nil, err
	}
	if !ok {
		return [][]domain.TimeOption{}, nil
	}
	leads := domain.DefaultLeadTimes()
	options := make([]domain.TimeOption, 0, len(leads))
	for _, lead := range leads {
		options = append(options, domain.NewTimeOption(base.Add(lead)))
	}
	return [][]domain.TimeOption{options}, nil
}

// Range returns the request for every published valid time of one forecast:
// the one issued at base, or the latest one when base is nil. ok is false
// when the store lists no base time.
func (s *TimeService) Range(ctx context.Context, model domain.ModelID, plot domain.PlotType, base *time.Time) (r domain.TimeRange, ok bool, err error) {
	reg, err := s.discoverable(model, plot)
	if err != nil {
		return r, false, err
	}
	b, ok, err := s.validBase(ctx, reg, plot, base)
	if err != nil || !ok {
		return r, false, err
	}
	r.BaseTime = b.Unix()
	for _, lead := range domain.DefaultLeadTimes() {
		r.ValidTime = append(r.ValidTime, b.Add(lead).Unix())
	}
	return r, true, nil
}

// validBase picks the base time for valid-time listing and checks that the
// store carries the plot's variable and lead times for it.
func (s *TimeService) validBase(ctx context.Context, reg Registration, plot domain.PlotType, query *time.Time) (time.Time, bool, error) {
	var base time.Time
	if query != nil {
		base = query.UTC()
	} else {
		times, err := s.baseTimes(ctx, reg, plot, nil)
		if err != nil {
			return time.Time{}, false, err
		}
		if len(times) == 0 {
			return time.Time{}, false, nil
		}
		base = times[len(times)-1]
	}

	if _, err := reg.Source.Subset(ctx, domain.SubsetQuery{
		Start:     base,
		End:       base,
		Frequency: validTimeFrequency,
		Variables: []string{reg.Variables.Primary(plot)},
		LeadTimes: domain.DefaultLeadTimes(),
	}); err != nil {
		return time.Time{}, false, domain.WrapError(domain.CodeUpstream, err, "error loading data for %s", reg.ID)
	}
	return base, true, nil
}
