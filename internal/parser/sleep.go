package parser

import (
	"encoding/json"
	"fmt"

	"github.com/rafaeljc/fitbit-ingest/internal/timeseries"
)

// SleepKind is the shape of a sleep log's level data. Trackers with heart
// rate report stages; older trackers, or nights too short for staging,
// report the classic asleep/restless/awake levels.
type SleepKind string

const (
	SleepStages  SleepKind = "stages"
	SleepClassic SleepKind = "classic"
)

// Sleep level values written to the "level" field.
var sleepLevels = map[string]int64{
	"deep":     0,
	"light":    1,
	"asleep":   1,
	"rem":      2,
	"restless": 2,
	"wake":     3,
	"awake":    3,
	"unknown":  4,
}

type levelMinutes struct {
	Minutes int64 `json:"minutes"`
}

type stagesSummary struct {
	Deep  levelMinutes `json:"deep"`
	Light levelMinutes `json:"light"`
	REM   levelMinutes `json:"rem"`
	Wake  levelMinutes `json:"wake"`
}

type classicSummary struct {
	Asleep   levelMinutes `json:"asleep"`
	Restless levelMinutes `json:"restless"`
	Awake    levelMinutes `json:"awake"`
}

type sleepLog struct {
	Type                SleepKind `json:"type"`
	StartTime           string    `json:"startTime"`
	EndTime             string    `json:"endTime"`
	IsMainSleep         bool      `json:"isMainSleep"`
	Efficiency          Number    `json:"efficiency"`
	MinutesAfterWakeup  Number    `json:"minutesAfterWakeup"`
	MinutesAsleep       Number    `json:"minutesAsleep"`
	MinutesToFallAsleep Number    `json:"minutesToFallAsleep"`
	TimeInBed           Number    `json:"timeInBed"`
	MinutesAwake        Number    `json:"minutesAwake"`
	Levels              struct {
		Summary json.RawMessage `json:"summary"`
		Data    []struct {
			DateTime string `json:"dateTime"`
			Level    string `json:"level"`
			Seconds  Number `json:"seconds"`
		} `json:"data"`
	} `json:"levels"`
}

// kind returns the declared variant, inferring it from the summary keys for
// logs that omit the type.
func (l *sleepLog) kind() SleepKind {
	if l.Type != "" {
		return l.Type
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(l.Levels.Summary, &keys); err == nil {
		if _, ok := keys["light"]; ok {
			return SleepStages
		}
	}
	return SleepClassic
}

// stageMinutes returns light, REM and deep minutes. Classic logs have no deep
// sleep; asleep and restless stand in for light and REM.
func (l *sleepLog) stageMinutes() (light, rem, deep int64, err error) {
	switch k := l.kind(); k {
	case SleepStages:
		var s stagesSummary
		if err := json.Unmarshal(l.Levels.Summary, &s); err != nil {
			return 0, 0, 0, err
		}
		return s.Light.Minutes, s.REM.Minutes, s.Deep.Minutes, nil
	case SleepClassic:
		var s classicSummary
		if err := json.Unmarshal(l.Levels.Summary, &s); err != nil {
			return 0, 0, 0, err
		}
		return s.Asleep.Minutes, s.Restless.Minutes, 0, nil
	default:
		return 0, 0, 0, fmt.Errorf("unknown sleep log type %q", k)
	}
}

func mainSleepTag(main bool) string {
	if main {
		return "True"
	}
	return "False"
}

// Sleep parses the sleep log into one "Sleep Summary" point per log and a
// "Sleep Levels" point per level segment, closed by a wake point at the end
// of the log.
func Sleep(body []byte, opt Options) ([]timeseries.Point, error) {
	const endpoint = "sleep"

	var logs []sleepLog
	if err := decodeKey(endpoint, body, "sleep", &logs); err != nil {
		return nil, err
	}

	var points []timeseries.Point
	for i := range logs {
		l := &logs[i]
		tags := opt.deviceTags()
		tags["isMainSleep"] = mainSleepTag(l.IsMainSleep)

		start, err := opt.wallClock(endpoint, l.StartTime)
		if err != nil {
			return nil, err
		}
		if len(l.Levels.Summary) == 0 {
			return nil, missing(endpoint, "levels.summary")
		}
		light, rem, deep, err := l.stageMinutes()
		if err != nil {
			return nil, &Error{Endpoint: endpoint, Err: err}
		}

		points = append(points, timeseries.NewPoint("Sleep Summary", start, tags, map[string]any{
			"efficiency":          l.Efficiency.Int(),
			"minutesAfterWakeup":  l.MinutesAfterWakeup.Int(),
			"minutesAsleep":       l.MinutesAsleep.Int(),
			"minutesToFallAsleep": l.MinutesToFallAsleep.Int(),
			"minutesInBed":        l.TimeInBed.Int(),
			"minutesAwake":        l.MinutesAwake.Int(),
			"minutesLight":        light,
			"minutesREM":          rem,
			"minutesDeep":         deep,
		}))

		for _, seg := range l.Levels.Data {
			level, ok := sleepLevels[seg.Level]
			if !ok {
				return nil, &Error{Endpoint: endpoint, Err: fmt.Errorf("unknown sleep level %q", seg.Level)}
			}
			ts, err := opt.wallClock(endpoint, seg.DateTime)
			if err != nil {
				return nil, err
			}
			points = append(points, timeseries.NewPoint("Sleep Levels", ts, tags, map[string]any{
				"level":            level,
				"duration_seconds": seg.Seconds.Int(),
			}))
		}

		end, err := opt.wallClock(endpoint, l.EndTime)
		if err != nil {
			return nil, err
		}
		points = append(points, timeseries.NewPoint("Sleep Levels", end, tags, map[string]any{
			"level":            sleepLevels["wake"],
			"duration_seconds": nil,
		}))
	}
	return points, nil
}
