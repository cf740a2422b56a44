package parser

import (
	"time"

	"github.com/rafaeljc/fitbit-ingest/internal/timeseries"
)

type trackerDay struct {
	DateTime string `json:"dateTime"`
	Value    Number `json:"value"`
}

func trackerSeries(endpoint string, body []byte, resource string) ([]trackerDay, error) {
	var days []trackerDay
	if err := decodeKey(endpoint, body, "activities-tracker-"+resource, &days); err != nil {
		return nil, err
	}
	return days, nil
}

// ActivityMinutes parses one tracker minutes series (e.g. minutesVeryActive)
// into "Activity Minutes" points whose single field is named after resource.
func ActivityMinutes(body []byte, resource string, opt Options) ([]timeseries.Point, error) {
	endpoint := "activity_" + resource
	days, err := trackerSeries(endpoint, body, resource)
	if err != nil {
		return nil, err
	}

	points := make([]timeseries.Point, 0, len(days))
	for _, d := range days {
		ts, err := opt.midnight(endpoint, d.DateTime)
		if err != nil {
			return nil, err
		}
		points = append(points, timeseries.NewPoint("Activity Minutes", ts, opt.deviceTags(), map[string]any{
			resource: d.Value.Int(),
		}))
	}
	return points, nil
}

// TrackerTotal parses a daily total series (distance, calories, steps).
func TrackerTotal(body []byte, resource, measurement string, opt Options) ([]timeseries.Point, error) {
	endpoint := "tracker_" + resource
	days, err := trackerSeries(endpoint, body, resource)
	if err != nil {
		return nil, err
	}

	points := make([]timeseries.Point, 0, len(days))
	for _, d := range days {
		ts, err := opt.midnight(endpoint, d.DateTime)
		if err != nil {
			return nil, err
		}
		points = append(points, timeseries.NewPoint(measurement, ts, opt.deviceTags(), map[string]any{
			"value": d.Value.Float(),
		}))
	}
	return points, nil
}

// heartZoneFields names the four default heart rate zones in API order.
var heartZoneFields = [...]string{"Normal", "Fat Burn", "Cardio", "Peak"}

// HeartSummary parses daily heart rate zone minutes ("HR zones") and, where
// reported, the resting heart rate ("RestingHR").
func HeartSummary(body []byte, opt Options) ([]timeseries.Point, error) {
	const endpoint = "heart_summary"

	var days []struct {
		DateTime string `json:"dateTime"`
		Value    struct {
			HeartRateZones []struct {
				Minutes Number `json:"minutes"`
			} `json:"heartRateZones"`
			RestingHeartRate Number `json:"restingHeartRate"`
		} `json:"value"`
	}
	if err := decodeKey(endpoint, body, "activities-heart", &days); err != nil {
		return nil, err
	}

	var points []timeseries.Point
	for _, d := range days {
		ts, err := opt.midnight(endpoint, d.DateTime)
		if err != nil {
			return nil, err
		}

		fields := make(map[string]any, len(heartZoneFields))
		for i, name := range heartZoneFields {
			var minutes int64
			if i < len(d.Value.HeartRateZones) {
				minutes = d.Value.HeartRateZones[i].Minutes.IntOr(0)
			}
			fields[name] = minutes
		}
		points = append(points, timeseries.NewPoint("HR zones", ts, opt.deviceTags(), fields))

		if d.Value.RestingHeartRate.Valid() {
			points = append(points, timeseries.NewPoint("RestingHR", ts, opt.deviceTags(), map[string]any{
				"value": d.Value.RestingHeartRate.Int(),
			}))
		}
	}
	return points, nil
}

// Battery parses the devices list into a single "DeviceBatteryLevel" point for
// the first device, stamped with its last sync time.
func Battery(body []byte, opt Options) ([]timeseries.Point, error) {
	const endpoint = "devices"

	var devices []struct {
		LastSyncTime string `json:"lastSyncTime"`
		BatteryLevel Number `json:"batteryLevel"`
	}
	if err := decode(endpoint, body, &devices); err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, missing(endpoint, "devices[0]")
	}

	d := devices[0]
	if d.LastSyncTime == "" {
		return nil, missing(endpoint, "lastSyncTime")
	}
	ts, err := opt.wallClock(endpoint, d.LastSyncTime)
	if err != nil {
		return nil, err
	}
	return []timeseries.Point{
		timeseries.NewPoint("DeviceBatteryLevel", ts, nil, map[string]any{"value": d.BatteryLevel.Float()}),
	}, nil
}

// UnknownActivity names activities logged without a name.
const UnknownActivity = "Unknown-Activity"

// Activity is one entry of the recent activities list.
type Activity struct {
	// ID identifies the activity across passes: UTC start time and name.
	ID      string
	Name    string
	Start   time.Time
	HasGPS  bool
	TCXLink string
}

// RecentActivities parses the activities list into "Activity Records" points
// and returns the activities so GPS tracks can be fetched.
func RecentActivities(body []byte, opt Options) ([]Activity, []timeseries.Point, error) {
	const endpoint = "activities_list"

	var list []struct {
		ActivityName     *string `json:"activityName"`
		StartTime        string  `json:"startTime"`
		ActiveDuration   Number  `json:"activeDuration"`
		AverageHeartRate Number  `json:"averageHeartRate"`
		Calories         Number  `json:"calories"`
		Duration         Number  `json:"duration"`
		Distance         Number  `json:"distance"`
		Steps            Number  `json:"steps"`
		HasGPS           bool    `json:"hasGps"`
		TCXLink          string  `json:"tcxLink"`
	}
	if err := decodeKey(endpoint, body, "activities", &list); err != nil {
		return nil, nil, err
	}

	activities := make([]Activity, 0, len(list))
	points := make([]timeseries.Point, 0, len(list))
	for _, a := range list {
		start, err := opt.offsetTime(endpoint, a.StartTime)
		if err != nil {
			return nil, nil, err
		}

		name := UnknownActivity
		if a.ActivityName != nil {
			name = *a.ActivityName
		}

		fields := map[string]any{}
		setIfValid(fields, "ActiveDuration", a.ActiveDuration, true)
		setIfValid(fields, "AverageHeartRate", a.AverageHeartRate, true)
		setIfValid(fields, "calories", a.Calories, true)
		setIfValid(fields, "duration", a.Duration, true)
		setIfValid(fields, "distance", a.Distance, false)
		setIfValid(fields, "steps", a.Steps, true)

		points = append(points, timeseries.NewPoint("Activity Records", start, map[string]string{"ActivityName": name}, fields))
		activities = append(activities, Activity{
			ID:      start.Format(time.RFC3339) + "-" + name,
			Name:    name,
			Start:   start,
			HasGPS:  a.HasGPS,
			TCXLink: a.TCXLink,
		})
	}
	return activities, points, nil
}

func setIfValid(fields map[string]any, name string, n Number, integer bool) {
	if !n.Valid() {
		return
	}
	if integer {
		fields[name] = n.Int()
		return
	}
	fields[name] = n.Float()
}

// offsetTime parses a timestamp carrying its own UTC offset, falling back to
// the user's location when the offset is missing.
func (o Options) offsetTime(endpoint, value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	return o.wallClock(endpoint, value)
}
