package ncapi

import (
	"net/url"
	"strconv"
)

// License is the normalized device record produced at the client boundary.
// Both response shapes the backend emits (top-level fields and fields nested
// under a "message" key) decode into this one type; callers never see the
// raw payload shape.
type License struct {
	LicenseID     string `json:"licenseId"`
	LicenseKey    string `json:"licenseKey"`
	StoreHours    string `json:"storeHours"`
	TimezoneName  string `json:"timezoneName"`
	HostName      string `json:"hostName"`
	DealerName    string `json:"dealerName"`
	ServerVersion string `json:"serverVersion"`
	UIVersion     string `json:"uiVersion"`
	PiStatus      int    `json:"piStatus"`
	DaysOffline   int    `json:"daysOffline"`
}

// LicensePage is one page of the license listing.
type LicensePage struct {
	Licenses []License
	Page     int
}

// ListFilters mirrors the backend's license listing query parameters.
// Zero-valued optional fields are sent as empty strings, matching the
// portal's own requests.
type ListFilters struct {
	Search          string
	SortColumn      string
	SortOrder       string
	PiStatus        *int
	Active          string
	Assigned        string
	TimezoneName    string
	DaysOfflineFrom *int
	DaysOfflineTo   *int
}

// OnlineFilters returns the filter set for online, active, assigned devices
// sorted by status. Used by the screenshot health check.
func OnlineFilters() ListFilters {
	online := 1
	return ListFilters{
		SortColumn: "PiStatus",
		SortOrder:  "desc",
		PiStatus:   &online,
		Active:     "true",
		Assigned:   "true",
	}
}

// ZoneFilters returns OnlineFilters narrowed to one timezone zone label.
func ZoneFilters(zone string) ListFilters {
	f := OnlineFilters()
	f.TimezoneName = zone
	return f
}

// OfflineWindowFilters returns the filter set for devices offline for a
// number of days within [from, to].
func OfflineWindowFilters(from, to int) ListFilters {
	offline := 0
	return ListFilters{
		SortColumn:      "TimeIn",
		SortOrder:       "desc",
		PiStatus:        &offline,
		DaysOfflineFrom: &from,
		DaysOfflineTo:   &to,
	}
}

// query converts the filters plus pagination into URL query values.
func (f ListFilters) query(page, pageSize int) url.Values {
	v := url.Values{}
	v.Set("page", strconv.Itoa(page))
	v.Set("pageSize", strconv.Itoa(pageSize))
	v.Set("search", f.Search)
	v.Set("sortColumn", f.SortColumn)
	v.Set("sortOrder", f.SortOrder)
	v.Set("includeAdmin", "false")
	if f.PiStatus != nil {
		v.Set("piStatus", strconv.Itoa(*f.PiStatus))
	}
	v.Set("active", f.Active)
	v.Set("assigned", f.Assigned)
	if f.TimezoneName != "" {
		v.Set("timezoneName", f.TimezoneName)
	}
	if f.DaysOfflineFrom != nil {
		v.Set("daysOfflineFrom", strconv.Itoa(*f.DaysOfflineFrom))
	}
	if f.DaysOfflineTo != nil {
		v.Set("daysOfflineTo", strconv.Itoa(*f.DaysOfflineTo))
	}
	return v
}
