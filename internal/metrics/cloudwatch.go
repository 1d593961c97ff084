package metrics

import (
	"context"

	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"cryptodash/logger"
)

// putMetric is swapped in tests.
var putMetric = logger.PublishMetric

type datum struct {
	name  string
	value float64
	unit  cwtypes.StandardUnit
}

// ForwardToCloudWatch subscribes a forwarder that publishes each refresh event
// through the client set up by logger.InitCloudWatch. Every datum carries
// logger.PanelDimensions, the same set the default dashboard queries.
func ForwardToCloudWatch(ctx context.Context) SubscriptionID {
	return Subscribe(func(ev Event) {
		dims := logger.PanelDimensions(ev.Panel)
		for _, d := range datums(ev) {
			putMetric(ctx, d.name, d.value, d.unit, dims)
		}
	})
}

func datums(ev Event) []datum {
	switch ev.Type {
	case EventFetchFailed:
		return []datum{{"fetch_failed", 1, cwtypes.StandardUnitCount}}
	case EventCycleFinished:
		return []datum{
			{"refresh_" + ev.Status.String(), 1, cwtypes.StandardUnitCount},
			{"refresh_duration_ms", float64(ev.Duration.Milliseconds()), cwtypes.StandardUnitMilliseconds},
		}
	default:
		return nil
	}
}
