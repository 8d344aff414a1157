package workers

import (
	"context"
	"log/slog"
	"reflect"
	"time"

	"tink/contract"
)

type NamedChannel struct {
	Name    string
	Channel any
}

// ChannelCapacityWorker periodically samples the length and capacity of
// buffered channels. Reading len and cap never blocks the channel users.
type ChannelCapacityWorker struct {
	log            *slog.Logger
	channels       []NamedChannel
	observer       contract.CapacityObserver
	metricInterval time.Duration
	warnPercent    int
}

func NewChannelCapacityWorker(log *slog.Logger, channels []NamedChannel, observer contract.CapacityObserver,
	metricInterval time.Duration, warnPercent int) *ChannelCapacityWorker {
	return &ChannelCapacityWorker{
		log:            log,
		channels:       channels,
		observer:       observer,
		metricInterval: metricInterval,
		warnPercent:    warnPercent,
	}
}

func (w *ChannelCapacityWorker) Run(ctx context.Context) error {
	if w.metricInterval <= 0 {
		return nil
	}
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.Sample()
		}
	}
}

// Sample reports every channel once.
func (w *ChannelCapacityWorker) Sample() {
	for _, nc := range w.channels {
		v := reflect.ValueOf(nc.Channel)
		if v.Kind() != reflect.Chan {
			w.log.Error("Provided object is not a channel", "name", nc.Name)
			continue
		}
		capacity, length := v.Cap(), v.Len()
		if w.observer != nil {
			w.observer.ObserveCapacity(nc.Name, length, capacity)
		}
		if capacity > 0 && w.warnPercent > 0 && length*100 >= capacity*w.warnPercent {
			w.log.Warn("Channel close to saturation", "name", nc.Name, "length", length, "capacity", capacity)
		}
	}
}
