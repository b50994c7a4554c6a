package weather

import (
	"encoding/xml"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// GAirmet is one graphical AIRMET forecast area
type GAirmet struct {
	ReceiptTime  string     `json:"receipt_time,omitempty"`
	IssueTime    string     `json:"issue_time,omitempty"`
	ExpireTime   string     `json:"expire_time,omitempty"`
	ValidTime    string     `json:"valid_time,omitempty"`
	Product      string     `json:"product,omitempty"`
	Tag          string     `json:"tag,omitempty"`
	ForecastHour int        `json:"forecast_hour"`
	HazardType   string     `json:"hazard_type,omitempty"`
	Severity     string     `json:"severity,omitempty"`
	GeometryType string     `json:"geometry_type,omitempty"`
	Points       []Position `json:"points"`
}

// AirmetResponse is the G-AIRMET query result
type AirmetResponse struct {
	Results    int       `json:"airmet_results"`
	Components []GAirmet `json:"airmet_components"`
}

type gairmetXML struct {
	XMLName xml.Name `xml:"response"`
	Errors  []string `xml:"errors>error"`
	Data    struct {
		NumResults string `xml:"num_results,attr"`
		Items      []struct {
			ReceiptTime  string `xml:"receipt_time"`
			IssueTime    string `xml:"issue_time"`
			ExpireTime   string `xml:"expire_time"`
			ValidTime    string `xml:"valid_time"`
			Product      string `xml:"product"`
			Tag          string `xml:"tag"`
			ForecastHour int    `xml:"forecast_hour"`
			Hazard       struct {
				Type     string `xml:"type,attr"`
				Severity string `xml:"severity,attr"`
			} `xml:"hazard"`
			GeometryType string `xml:"geometry_type"`
			Points       []struct {
				Longitude float64 `xml:"longitude"`
				Latitude  float64 `xml:"latitude"`
			} `xml:"area>point"`
		} `xml:"GAIRMET"`
	} `xml:"data"`
}

// GAirmetURL builds the data server query for the UTC day containing now
func GAirmetURL(baseURL string, bbox BoundingBox, now time.Time) string {
	day := now.UTC().Truncate(24 * time.Hour)

	q := url.Values{}
	q.Set("requestType", "retrieve")
	q.Set("dataSource", "gairmets")
	q.Set("startTime", day.Format(time.RFC3339))
	q.Set("endTime", day.AddDate(0, 0, 1).Format(time.RFC3339))
	q.Set("format", "xml")
	q.Set("boundingBox", fmt.Sprintf("%s,%s,%s,%s",
		formatCoord(bbox.MinLat), formatCoord(bbox.MinLon), formatCoord(bbox.MaxLat), formatCoord(bbox.MaxLon)))

	return baseURL + "/dataserver?" + q.Encode()
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ParseGAirmets decodes a data server G-AIRMET XML response
func ParseGAirmets(raw []byte) (*AirmetResponse, error) {
	var doc gairmetXML
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: g-airmet response: %v", ErrMalformedUpstreamData, err)
	}
	if len(doc.Errors) > 0 {
		return nil, fmt.Errorf("%w: g-airmet response: %s", ErrMalformedUpstreamData, doc.Errors[0])
	}

	resp := &AirmetResponse{Components: make([]GAirmet, 0, len(doc.Data.Items))}
	for _, item := range doc.Data.Items {
		g := GAirmet{
			ReceiptTime:  item.ReceiptTime,
			IssueTime:    item.IssueTime,
			ExpireTime:   item.ExpireTime,
			ValidTime:    item.ValidTime,
			Product:      item.Product,
			Tag:          item.Tag,
			ForecastHour: item.ForecastHour,
			HazardType:   item.Hazard.Type,
			Severity:     item.Hazard.Severity,
			GeometryType: item.GeometryType,
			Points:       make([]Position, 0, len(item.Points)),
		}
		for _, p := range item.Points {
			g.Points = append(g.Points, Position{p.Longitude, p.Latitude})
		}
		resp.Components = append(resp.Components, g)
	}

	resp.Results = len(resp.Components)
	if doc.Data.NumResults != "" {
		n, err := strconv.Atoi(doc.Data.NumResults)
		if err != nil {
			return nil, fmt.Errorf("%w: g-airmet num_results %q", ErrMalformedUpstreamData, doc.Data.NumResults)
		}
		resp.Results = n
	}

	return resp, nil
}
