package parser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/fitbit-ingest/internal/parser"
)

const track = `<?xml version="1.0" encoding="UTF-8"?>
<TrainingCenterDatabase xmlns="http://www.garmin.com/xmlschemas/TrainingCenterDatabase/v2">
  <Activities>
    <Activity Sport="Running">
      <Id>2024-01-05T07:00:00.000+01:00</Id>
      <Lap StartTime="2024-01-05T07:00:00.000+01:00">
        <Track>
          <Trackpoint>
            <Time>2024-01-05T07:00:00.000+01:00</Time>
            <Position>
              <LatitudeDegrees>52.52</LatitudeDegrees>
              <LongitudeDegrees>13.40</LongitudeDegrees>
            </Position>
            <AltitudeMeters>34.5</AltitudeMeters>
            <DistanceMeters>0.0</DistanceMeters>
            <HeartRateBpm><Value>120</Value></HeartRateBpm>
          </Trackpoint>
          <Trackpoint>
            <Time>2024-01-05T07:00:10.000+01:00</Time>
          </Trackpoint>
          <Trackpoint>
            <Time>2024-01-05T07:00:20.000+01:00</Time>
            <Position>
              <LatitudeDegrees>52.521</LatitudeDegrees>
              <LongitudeDegrees>13.401</LongitudeDegrees>
            </Position>
            <DistanceMeters>50.0</DistanceMeters>
          </Trackpoint>
        </Track>
      </Lap>
      <Lap StartTime="2024-01-05T07:10:00.000+01:00">
        <Track>
          <Trackpoint>
            <Time>2024-01-05T07:10:00Z</Time>
            <Position>
              <LatitudeDegrees>52.53</LatitudeDegrees>
              <LongitudeDegrees>13.41</LongitudeDegrees>
            </Position>
          </Trackpoint>
        </Track>
      </Lap>
    </Activity>
  </Activities>
</TrainingCenterDatabase>`

func TestTCX(t *testing.T) {
	points, err := parser.TCX([]byte(track), "2024-01-05T06:00:00Z-Run")
	require.NoError(t, err)
	require.Len(t, points, 3)

	first := points[0]
	assert.Equal(t, "GPS", first.Measurement)
	assert.Equal(t, map[string]string{"ActivityID": "2024-01-05T06:00:00Z-Run"}, first.Tags)
	assert.Equal(t, utc("2024-01-05T06:00:00Z"), first.Time)
	assert.Equal(t, map[string]any{
		"lat":        52.52,
		"lon":        13.40,
		"altitude":   34.5,
		"distance":   0.0,
		"heart_rate": int64(120),
	}, first.Fields)

	second := points[1]
	assert.InDelta(t, 9.0, second.Fields["speed_kph"], 1e-9) // 50 m in 20 s
	assert.NotContains(t, second.Fields, "heart_rate")

	third := points[2]
	assert.Equal(t, utc("2024-01-05T07:10:00Z"), third.Time)
	assert.NotContains(t, third.Fields, "speed_kph")
}

func TestTCX_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not xml", `{"errors":[]}`},
		{"wrong root", `<gpx></gpx>`},
		{"wrong namespace", `<TrainingCenterDatabase xmlns="urn:other"></TrainingCenterDatabase>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parser.TCX([]byte(tt.body), "id")
			var perr *parser.Error
			assert.ErrorAs(t, err, &perr)
		})
	}
}
