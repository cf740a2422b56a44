package parser

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"time"

	"github.com/rafaeljc/fitbit-ingest/internal/timeseries"
)

// TCXNamespace is the Garmin Training Center Database schema namespace.
const TCXNamespace = "http://www.garmin.com/xmlschemas/TrainingCenterDatabase/v2"

type tcxDocument struct {
	XMLName     xml.Name        `xml:"TrainingCenterDatabase"`
	Trackpoints []tcxTrackpoint `xml:"Activities>Activity>Lap>Track>Trackpoint"`
}

type tcxTrackpoint struct {
	Time     string `xml:"Time"`
	Position *struct {
		Latitude  float64 `xml:"LatitudeDegrees"`
		Longitude float64 `xml:"LongitudeDegrees"`
	} `xml:"Position"`
	Altitude  *float64 `xml:"AltitudeMeters"`
	Distance  *float64 `xml:"DistanceMeters"`
	HeartRate *struct {
		Value int64 `xml:"Value"`
	} `xml:"HeartRateBpm"`
}

// TCX parses a GPS track into "GPS" points tagged with activityID.
// Trackpoints without a position are skipped. speed_kph is derived from the
// distance covered since the previous positioned trackpoint.
func TCX(body []byte, activityID string) ([]timeseries.Point, error) {
	const endpoint = "activity_tcx"

	var doc tcxDocument
	if err := xml.NewDecoder(bytes.NewReader(body)).Decode(&doc); err != nil {
		return nil, &Error{Endpoint: endpoint, Err: err}
	}
	if doc.XMLName.Space != "" && doc.XMLName.Space != TCXNamespace {
		return nil, &Error{Endpoint: endpoint, Err: fmt.Errorf("unexpected namespace %q", doc.XMLName.Space)}
	}

	tags := map[string]string{"ActivityID": activityID}

	var (
		points   []timeseries.Point
		prevTime time.Time
		prevDist *float64
	)
	for _, tp := range doc.Trackpoints {
		if tp.Time == "" || tp.Position == nil {
			continue
		}
		ts, err := time.Parse(time.RFC3339, tp.Time)
		if err != nil {
			return nil, &Error{Endpoint: endpoint, Err: err}
		}

		fields := map[string]any{
			"lat": tp.Position.Latitude,
			"lon": tp.Position.Longitude,
		}
		if tp.Altitude != nil {
			fields["altitude"] = *tp.Altitude
		}
		if tp.Distance != nil {
			fields["distance"] = *tp.Distance
		}
		if tp.HeartRate != nil {
			fields["heart_rate"] = tp.HeartRate.Value
		}
		if prevDist != nil && tp.Distance != nil {
			if elapsed := ts.Sub(prevTime).Seconds(); elapsed > 0 {
				fields["speed_kph"] = (*tp.Distance - *prevDist) / elapsed * 3.6
			}
		}
		prevTime, prevDist = ts, tp.Distance

		points = append(points, timeseries.NewPoint("GPS", ts, tags, fields))
	}
	return points, nil
}
