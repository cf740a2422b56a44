package parser

import "github.com/rafaeljc/fitbit-ingest/internal/timeseries"

// HRV parses daily heart rate variability.
func HRV(body []byte, opt Options) ([]timeseries.Point, error) {
	var days []struct {
		DateTime string `json:"dateTime"`
		Value    struct {
			DailyRmssd Number `json:"dailyRmssd"`
			DeepRmssd  Number `json:"deepRmssd"`
		} `json:"value"`
	}
	if err := decodeKey("hrv", body, "hrv", &days); err != nil {
		return nil, err
	}

	points := make([]timeseries.Point, 0, len(days))
	for _, d := range days {
		ts, err := opt.midnight("hrv", d.DateTime)
		if err != nil {
			return nil, err
		}
		points = append(points, timeseries.NewPoint("HRV", ts, opt.deviceTags(), map[string]any{
			"dailyRmssd": d.Value.DailyRmssd.Float(),
			"deepRmssd":  d.Value.DeepRmssd.Float(),
		}))
	}
	return points, nil
}

// BreathingRate parses the nightly breathing rate.
func BreathingRate(body []byte, opt Options) ([]timeseries.Point, error) {
	var days []struct {
		DateTime string `json:"dateTime"`
		Value    struct {
			BreathingRate Number `json:"breathingRate"`
		} `json:"value"`
	}
	if err := decodeKey("breathing_rate", body, "br", &days); err != nil {
		return nil, err
	}

	points := make([]timeseries.Point, 0, len(days))
	for _, d := range days {
		ts, err := opt.midnight("breathing_rate", d.DateTime)
		if err != nil {
			return nil, err
		}
		points = append(points, timeseries.NewPoint("BreathingRate", ts, opt.deviceTags(), map[string]any{
			"value": d.Value.BreathingRate.Float(),
		}))
	}
	return points, nil
}

// SkinTemperature parses the nightly skin temperature relative to baseline.
func SkinTemperature(body []byte, opt Options) ([]timeseries.Point, error) {
	var days []struct {
		DateTime string `json:"dateTime"`
		Value    struct {
			NightlyRelative Number `json:"nightlyRelative"`
		} `json:"value"`
	}
	if err := decodeKey("skin_temperature", body, "tempSkin", &days); err != nil {
		return nil, err
	}

	points := make([]timeseries.Point, 0, len(days))
	for _, d := range days {
		ts, err := opt.midnight("skin_temperature", d.DateTime)
		if err != nil {
			return nil, err
		}
		points = append(points, timeseries.NewPoint("Skin Temperature Variation", ts, opt.deviceTags(), map[string]any{
			"RelativeValue": d.Value.NightlyRelative.Float(),
		}))
	}
	return points, nil
}

// SpO2Intraday parses per-minute oxygen saturation. The payload is a bare array
// with one entry per night.
func SpO2Intraday(body []byte, opt Options) ([]timeseries.Point, error) {
	var nights []struct {
		Minutes []struct {
			Minute string `json:"minute"`
			Value  Number `json:"value"`
		} `json:"minutes"`
	}
	if err := decode("spo2_intraday", body, &nights); err != nil {
		return nil, err
	}

	var points []timeseries.Point
	for _, night := range nights {
		for _, m := range night.Minutes {
			ts, err := opt.wallClock("spo2_intraday", m.Minute)
			if err != nil {
				return nil, err
			}
			points = append(points, timeseries.NewPoint("SPO2_Intraday", ts, opt.deviceTags(), map[string]any{
				"value": m.Value.Float(),
			}))
		}
	}
	return points, nil
}

// SpO2Summary parses the nightly oxygen saturation summary.
func SpO2Summary(body []byte, opt Options) ([]timeseries.Point, error) {
	var days []struct {
		DateTime string `json:"dateTime"`
		Value    struct {
			Avg Number `json:"avg"`
			Max Number `json:"max"`
			Min Number `json:"min"`
		} `json:"value"`
	}
	if err := decode("spo2_summary", body, &days); err != nil {
		return nil, err
	}

	points := make([]timeseries.Point, 0, len(days))
	for _, d := range days {
		ts, err := opt.midnight("spo2_summary", d.DateTime)
		if err != nil {
			return nil, err
		}
		points = append(points, timeseries.NewPoint("SPO2", ts, opt.deviceTags(), map[string]any{
			"avg": d.Value.Avg.Float(),
			"max": d.Value.Max.Float(),
			"min": d.Value.Min.Float(),
		}))
	}
	return points, nil
}

// Weight parses the weight log into one "weight" and one "bmi" point per entry.
func Weight(body []byte, opt Options) ([]timeseries.Point, error) {
	var entries []struct {
		Date   string `json:"date"`
		Time   string `json:"time"`
		Weight Number `json:"weight"`
		BMI    Number `json:"bmi"`
	}
	if err := decodeKey("weight", body, "weight", &entries); err != nil {
		return nil, err
	}

	points := make([]timeseries.Point, 0, 2*len(entries))
	for _, e := range entries {
		ts, err := opt.wallClock("weight", e.Date+"T"+e.Time)
		if err != nil {
			return nil, err
		}
		points = append(points,
			timeseries.NewPoint("weight", ts, opt.deviceTags(), map[string]any{"value": e.Weight.Float()}),
			timeseries.NewPoint("bmi", ts, opt.deviceTags(), map[string]any{"value": e.BMI.Float()}),
		)
	}
	return points, nil
}
