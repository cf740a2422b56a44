package parser

import (
	"time"

	"github.com/rafaeljc/fitbit-ingest/internal/timeseries"
)

// Intraday measurement names.
const (
	MeasurementHeartRateIntraday = "HeartRate_Intraday"
	MeasurementStepsIntraday     = "Steps_Intraday"
)

type intradaySeries struct {
	Dataset []struct {
		Time  string `json:"time"`
		Value Number `json:"value"`
	} `json:"dataset"`
}

// Intraday parses the one-day detail series of resource ("heart" or "steps")
// recorded on day. Each sample becomes an integer "value" point.
func Intraday(body []byte, resource, measurement string, day time.Time, opt Options) ([]timeseries.Point, error) {
	endpoint := "intraday_" + resource
	key := "activities-" + resource + "-intraday"

	var series intradaySeries
	if err := decodeKey(endpoint, body, key, &series); err != nil {
		return nil, err
	}

	date := day.Format(dateLayout)
	points := make([]timeseries.Point, 0, len(series.Dataset))
	for _, sample := range series.Dataset {
		ts, err := opt.wallClock(endpoint, date+"T"+sample.Time)
		if err != nil {
			return nil, err
		}
		points = append(points, timeseries.NewPoint(measurement, ts, opt.deviceTags(), map[string]any{
			"value": sample.Value.Int(),
		}))
	}
	return points, nil
}
