package parser_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/fitbit-ingest/internal/parser"
	"github.com/rafaeljc/fitbit-ingest/internal/timeseries"
)

// plusOne is a fixed +01:00 zone so expectations do not depend on tzdata.
var plusOne = time.FixedZone("UTC+1", 3600)

var opts = parser.Options{Device: "Charge6", Location: plusOne}

func utc(value string) time.Time {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		panic(err)
	}
	return t
}

func TestIntraday(t *testing.T) {
	body := []byte(`{
		"activities-heart": [{"dateTime": "2024-01-05", "value": {}}],
		"activities-heart-intraday": {
			"dataset": [
				{"time": "00:00:01", "value": 62},
				{"time": "00:00:06", "value": 63}
			],
			"datasetInterval": 1,
			"datasetType": "second"
		}
	}`)
	day := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)

	points, err := parser.Intraday(body, "heart", parser.MeasurementHeartRateIntraday, day, opts)
	require.NoError(t, err)
	require.Len(t, points, 2)

	assert.Equal(t, "HeartRate_Intraday", points[0].Measurement)
	assert.Equal(t, utc("2024-01-04T23:00:01Z"), points[0].Time)
	assert.Equal(t, time.UTC, points[0].Time.Location())
	assert.Equal(t, map[string]string{"Device": "Charge6"}, points[0].Tags)
	assert.Equal(t, map[string]any{"value": int64(62)}, points[0].Fields)
	assert.Equal(t, int64(63), points[1].Fields["value"])
}

func TestIntraday_MissingSeries(t *testing.T) {
	_, err := parser.Intraday([]byte(`{"activities-steps":[]}`), "steps", parser.MeasurementStepsIntraday, time.Now(), opts)
	require.Error(t, err)
	assert.ErrorIs(t, err, parser.ErrMissingField)

	var perr *parser.Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "intraday_steps", perr.Endpoint)
}

func TestDailyParsers(t *testing.T) {
	tests := []struct {
		name        string
		parse       func([]byte, parser.Options) ([]timeseries.Point, error)
		body        string
		wantCount   int
		measurement string
		time        time.Time
		fields      map[string]any
	}{
		{
			name:        "hrv",
			parse:       parser.HRV,
			body:        `{"hrv":[{"dateTime":"2024-01-05","value":{"dailyRmssd":34.5,"deepRmssd":30.1}}]}`,
			wantCount:   1,
			measurement: "HRV",
			time:        utc("2024-01-04T23:00:00Z"),
			fields:      map[string]any{"dailyRmssd": 34.5, "deepRmssd": 30.1},
		},
		{
			name:        "breathing rate",
			parse:       parser.BreathingRate,
			body:        `{"br":[{"dateTime":"2024-01-05","value":{"breathingRate":15.2}},{"dateTime":"2024-01-06","value":{"breathingRate":14.8}}]}`,
			wantCount:   2,
			measurement: "BreathingRate",
			time:        utc("2024-01-04T23:00:00Z"),
			fields:      map[string]any{"value": 15.2},
		},
		{
			name:        "skin temperature",
			parse:       parser.SkinTemperature,
			body:        `{"tempSkin":[{"dateTime":"2024-01-05","value":{"nightlyRelative":-0.4}}]}`,
			wantCount:   1,
			measurement: "Skin Temperature Variation",
			time:        utc("2024-01-04T23:00:00Z"),
			fields:      map[string]any{"RelativeValue": -0.4},
		},
		{
			name:        "spo2 intraday",
			parse:       parser.SpO2Intraday,
			body:        `[{"dateTime":"2024-01-05","minutes":[{"value":95.7,"minute":"2024-01-05T03:10:00"},{"value":96.1,"minute":"2024-01-05T03:11:00"}]}]`,
			wantCount:   2,
			measurement: "SPO2_Intraday",
			time:        utc("2024-01-05T02:10:00Z"),
			fields:      map[string]any{"value": 95.7},
		},
		{
			name:        "spo2 summary",
			parse:       parser.SpO2Summary,
			body:        `[{"dateTime":"2024-01-05","value":{"avg":96.2,"min":93.1,"max":98.9}}]`,
			wantCount:   1,
			measurement: "SPO2",
			time:        utc("2024-01-04T23:00:00Z"),
			fields:      map[string]any{"avg": 96.2, "min": 93.1, "max": 98.9},
		},
		{
			name:        "weight and bmi",
			parse:       parser.Weight,
			body:        `{"weight":[{"bmi":23.4,"date":"2024-01-05","logId":1,"source":"API","time":"07:30:00","weight":72.5}]}`,
			wantCount:   2,
			measurement: "weight",
			time:        utc("2024-01-05T06:30:00Z"),
			fields:      map[string]any{"value": 72.5},
		},
		{
			name:        "heart summary",
			parse:       parser.HeartSummary,
			body:        `{"activities-heart":[{"dateTime":"2024-01-05","value":{"heartRateZones":[{"name":"Out of Range","minutes":1200},{"name":"Fat Burn","minutes":60},{"name":"Cardio","minutes":5},{"name":"Peak"}],"restingHeartRate":58}}]}`,
			wantCount:   2,
			measurement: "HR zones",
			time:        utc("2024-01-04T23:00:00Z"),
			fields:      map[string]any{"Normal": int64(1200), "Fat Burn": int64(60), "Cardio": int64(5), "Peak": int64(0)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			points, err := tt.parse([]byte(tt.body), opts)
			require.NoError(t, err)
			require.Len(t, points, tt.wantCount)

			assert.Equal(t, tt.measurement, points[0].Measurement)
			assert.Equal(t, tt.time, points[0].Time)
			assert.Equal(t, tt.fields, points[0].Fields)
			assert.Equal(t, "Charge6", points[0].Tags["Device"])
		})
	}
}

func TestDailyParsers_MissingKey(t *testing.T) {
	tests := []struct {
		name  string
		parse func([]byte, parser.Options) ([]timeseries.Point, error)
	}{
		{"hrv", parser.HRV},
		{"breathing rate", parser.BreathingRate},
		{"skin temperature", parser.SkinTemperature},
		{"weight", parser.Weight},
		{"sleep", parser.Sleep},
		{"heart summary", parser.HeartSummary},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.parse([]byte(`{"errors":[]}`), opts)
			assert.ErrorIs(t, err, parser.ErrMissingField)
		})
	}
}

func TestDailyParsers_EmptySeries(t *testing.T) {
	points, err := parser.HRV([]byte(`{"hrv":[]}`), opts)
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestHeartSummary_RestingHeartRate(t *testing.T) {
	body := []byte(`{"activities-heart":[
		{"dateTime":"2024-01-05","value":{"heartRateZones":[],"restingHeartRate":58}},
		{"dateTime":"2024-01-06","value":{"heartRateZones":[]}}
	]}`)

	points, err := parser.HeartSummary(body, opts)
	require.NoError(t, err)
	require.Len(t, points, 3)

	assert.Equal(t, "RestingHR", points[1].Measurement)
	assert.Equal(t, map[string]any{"value": int64(58)}, points[1].Fields)
	assert.Equal(t, "HR zones", points[2].Measurement)
	assert.Equal(t, int64(0), points[2].Fields["Peak"])
}

func TestWeight_EmitsBMI(t *testing.T) {
	body := []byte(`{"weight":[{"bmi":23.4,"date":"2024-01-05","time":"07:30:00","weight":72.5}]}`)

	points, err := parser.Weight(body, opts)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, "bmi", points[1].Measurement)
	assert.Equal(t, 23.4, points[1].Fields["value"])
	assert.Equal(t, points[0].Time, points[1].Time)
}

func TestTrackerSeries(t *testing.T) {
	t.Run("activity minutes", func(t *testing.T) {
		body := []byte(`{"activities-tracker-minutesVeryActive":[{"dateTime":"2024-01-05","value":"42"}]}`)
		points, err := parser.ActivityMinutes(body, "minutesVeryActive", opts)
		require.NoError(t, err)
		require.Len(t, points, 1)
		assert.Equal(t, "Activity Minutes", points[0].Measurement)
		assert.Equal(t, map[string]any{"minutesVeryActive": int64(42)}, points[0].Fields)
	})

	t.Run("total steps", func(t *testing.T) {
		body := []byte(`{"activities-tracker-steps":[{"dateTime":"2024-01-05","value":"10234"}]}`)
		points, err := parser.TrackerTotal(body, "steps", "Total Steps", opts)
		require.NoError(t, err)
		require.Len(t, points, 1)
		assert.Equal(t, "Total Steps", points[0].Measurement)
		assert.Equal(t, map[string]any{"value": 10234.0}, points[0].Fields)
	})

	t.Run("malformed value", func(t *testing.T) {
		body := []byte(`{"activities-tracker-distance":[{"dateTime":"2024-01-05","value":"far"}]}`)
		_, err := parser.TrackerTotal(body, "distance", "distance", opts)
		var perr *parser.Error
		assert.ErrorAs(t, err, &perr)
	})
}

func TestBattery(t *testing.T) {
	body := []byte(`[{"battery":"High","batteryLevel":81,"deviceVersion":"Charge 6","id":"1","lastSyncTime":"2024-01-05T10:11:12.000","type":"TRACKER"}]`)

	points, err := parser.Battery(body, opts)
	require.NoError(t, err)
	require.Len(t, points, 1)

	assert.Equal(t, "DeviceBatteryLevel", points[0].Measurement)
	assert.Equal(t, utc("2024-01-05T09:11:12Z"), points[0].Time)
	assert.Equal(t, map[string]any{"value": 81.0}, points[0].Fields)
}

func TestBattery_NoDevices(t *testing.T) {
	_, err := parser.Battery([]byte(`[]`), opts)
	assert.ErrorIs(t, err, parser.ErrMissingField)
}

func TestRecentActivities(t *testing.T) {
	body := []byte(`{"activities":[
		{"activityName":"Run","startTime":"2024-01-05T07:00:00.000+01:00","activeDuration":1800000,"averageHeartRate":150,"calories":320,"duration":1850000,"distance":5.2,"steps":6000,"hasGps":true,"tcxLink":"https://api.fitbit.com/1/user/-/activities/1.tcx"},
		{"startTime":"2024-01-04T18:30:00.000+01:00","calories":80}
	],"pagination":{}}`)

	activities, points, err := parser.RecentActivities(body, opts)
	require.NoError(t, err)
	require.Len(t, activities, 2)
	require.Len(t, points, 2)

	run := activities[0]
	assert.Equal(t, "Run", run.Name)
	assert.Equal(t, "2024-01-05T06:00:00Z-Run", run.ID)
	assert.True(t, run.HasGPS)
	assert.Equal(t, "https://api.fitbit.com/1/user/-/activities/1.tcx", run.TCXLink)

	assert.Equal(t, "Activity Records", points[0].Measurement)
	assert.Equal(t, map[string]string{"ActivityName": "Run"}, points[0].Tags)
	assert.Equal(t, map[string]any{
		"ActiveDuration":   int64(1800000),
		"AverageHeartRate": int64(150),
		"calories":         int64(320),
		"duration":         int64(1850000),
		"distance":         5.2,
		"steps":            int64(6000),
	}, points[0].Fields)

	assert.Equal(t, parser.UnknownActivity, activities[1].Name)
	assert.False(t, activities[1].HasGPS)
	assert.Equal(t, map[string]any{"calories": int64(80)}, points[1].Fields)
}

func TestNumber(t *testing.T) {
	tests := []struct {
		input string
		valid bool
		want  any
	}{
		{`12.5`, true, 12.5},
		{`"12.5"`, true, 12.5},
		{`null`, false, nil},
		{`""`, false, nil},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var n parser.Number
			require.NoError(t, n.UnmarshalJSON([]byte(tt.input)))
			assert.Equal(t, tt.valid, n.Valid())
			assert.Equal(t, tt.want, n.Float())
		})
	}

	var n parser.Number
	assert.Error(t, n.UnmarshalJSON([]byte(`"abc"`)))
}
