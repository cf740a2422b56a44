package fitbit

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rafaeljc/fitbit-ingest/internal/window"
)

// Intraday resources and their detail level.
const (
	ResourceHeart = "heart"
	ResourceSteps = "steps"
)

// Activity minute series read from the tracker.
var ActivityMinuteResources = []string{
	"minutesSedentary",
	"minutesLightlyActive",
	"minutesFairlyActive",
	"minutesVeryActive",
}

// Daily tracker totals and the measurement each is stored as.
var TrackerTotals = []struct {
	Resource    string
	Measurement string
}{
	{"distance", "distance"},
	{"calories", "calories"},
	{"steps", "Total Steps"},
}

// recentActivitiesLimit is the page size of the activities list call.
const recentActivitiesLimit = 50

// Endpoints builds requests against a Fitbit API base URL.
type Endpoints struct {
	base string
}

// NewEndpoints returns builders rooted at baseURL.
func NewEndpoints(baseURL string) Endpoints {
	return Endpoints{base: strings.TrimRight(baseURL, "/")}
}

func (e Endpoints) user(version, path string) string {
	return e.base + "/" + version + "/user/-/" + path
}

func (e Endpoints) span(path string, w window.FetchWindow) string {
	return e.user("1", fmt.Sprintf("%s/date/%s/%s.json", path, w.StartDate(), w.EndDate()))
}

// IntradayDetail returns the finest detail level available for resource.
func IntradayDetail(resource string) string {
	if resource == ResourceHeart {
		return "1sec"
	}
	return "1min"
}

// Intraday is the one-day detail series of resource on day.
func (e Endpoints) Intraday(resource string, day time.Time) Request {
	path := fmt.Sprintf("activities/%s/date/%s/1d/%s.json", resource, window.Date(day).Format(window.DateLayout), IntradayDetail(resource))
	return Get("intraday_"+resource, e.user("1", path))
}

// HRV is the daily heart rate variability summary.
func (e Endpoints) HRV(w window.FetchWindow) Request {
	return Get("hrv", e.span("hrv", w))
}

// BreathingRate is the nightly breathing rate.
func (e Endpoints) BreathingRate(w window.FetchWindow) Request {
	return Get("breathing_rate", e.span("br", w))
}

// SkinTemperature is the nightly relative skin temperature.
func (e Endpoints) SkinTemperature(w window.FetchWindow) Request {
	return Get("skin_temperature", e.span("temp/skin", w))
}

// SpO2Intraday is the per-minute oxygen saturation over w.
func (e Endpoints) SpO2Intraday(w window.FetchWindow) Request {
	path := fmt.Sprintf("spo2/date/%s/%s/all.json", w.StartDate(), w.EndDate())
	return Get("spo2_intraday", e.user("1", path))
}

// SpO2Summary is the nightly oxygen saturation summary.
func (e Endpoints) SpO2Summary(w window.FetchWindow) Request {
	return Get("spo2_summary", e.span("spo2", w))
}

// Weight is the weight and BMI log.
func (e Endpoints) Weight(w window.FetchWindow) Request {
	return Get("weight", e.span("body/log/weight", w))
}

// Sleep is the sleep log, including stage levels.
func (e Endpoints) Sleep(w window.FetchWindow) Request {
	path := fmt.Sprintf("sleep/date/%s/%s.json", w.StartDate(), w.EndDate())
	return Get("sleep", e.user("1.2", path))
}

// ActivityMinutes is one tracker minutes series.
func (e Endpoints) ActivityMinutes(resource string, w window.FetchWindow) Request {
	return Get("activity_"+resource, e.span("activities/tracker/"+resource, w))
}

// TrackerTotal is one daily tracker total series.
func (e Endpoints) TrackerTotal(resource string, w window.FetchWindow) Request {
	return Get("tracker_"+resource, e.span("activities/tracker/"+resource, w))
}

// HeartSummary is the daily heart rate zones and resting heart rate.
func (e Endpoints) HeartSummary(w window.FetchWindow) Request {
	return Get("heart_summary", e.span("activities/heart", w))
}

// Devices lists the paired devices with battery and last sync.
func (e Endpoints) Devices() Request {
	return Get("devices", e.user("1", "devices.json"))
}

// Profile is the user profile.
func (e Endpoints) Profile() Request {
	return Get("profile", e.user("1", "profile.json"))
}

// RecentActivities lists logged activities that started before the day after end.
func (e Endpoints) RecentActivities(end time.Time) Request {
	req := Get("activities_list", e.user("1", "activities/list.json"))
	req.Query = url.Values{
		"beforeDate": {window.Date(end).AddDate(0, 0, 1).Format(window.DateLayout)},
		"sort":       {"desc"},
		"limit":      {strconv.Itoa(recentActivitiesLimit)},
		"offset":     {"0"},
	}
	return req
}

// TCX downloads an activity's GPS track. link is the tcxLink of the activity.
func (e Endpoints) TCX(link string) Request {
	req := Get("activity_tcx", link)
	req.Query = url.Values{"includePartialTCX": {"false"}}
	req.Header = http.Header{"Accept": {"application/vnd.garmin.tcx+xml"}}
	return req
}
