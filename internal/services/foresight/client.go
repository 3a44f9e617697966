package foresight

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fleetwatch-backend/internal/models"
)

// DefaultReportTimeFields are tried in order when the configured field is absent
var DefaultReportTimeFields = []string{"lastupdate", "gpsdate", "lastreport", "date"}

// Client fetches unit telemetry from the Foresight Flex API
type Client struct {
	url              string
	authHeader       string
	userID           string
	connCode         string
	reportTimeFields []string
	httpClient       *http.Client
}

type Options struct {
	URL             string
	AuthHeader      string
	UserID          string
	ConnCode        string
	ReportTimeField string
	Timeout         time.Duration
	HTTPClient      *http.Client
}

// NewClient creates a Foresight client. Requests are bounded by opts.Timeout.
func NewClient(opts Options) *Client {
	if opts.AuthHeader == "" {
		log.Printf("⚠️  FORESIGHT_AUTH_HEADER not set - requests will likely be rejected")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	fields := DefaultReportTimeFields
	if opts.ReportTimeField != "" {
		fields = append([]string{opts.ReportTimeField}, DefaultReportTimeFields...)
	}

	return &Client{
		url:              opts.URL,
		authHeader:       opts.AuthHeader,
		userID:           opts.UserID,
		connCode:         opts.ConnCode,
		reportTimeFields: fields,
		httpClient:       httpClient,
	}
}

// searchRequest is the usersearchplatform request body
type searchRequest struct {
	UserID         string `json:"userid"`
	RequestType    int    `json:"requesttype"`
	IsDeleted      int    `json:"isdeleted"`
	PageIndex      int    `json:"pageindex"`
	OrderBy        string `json:"orderby"`
	OrderDirection string `json:"orderdirection"`
	ConnCode       string `json:"conncode"`
	Elements       int    `json:"elements"`
	IDs            string `json:"ids"`
	Method         string `json:"method"`
	PageSize       int    `json:"pagesize"`
	Prefix         bool   `json:"prefix"`
}

type searchResponse struct {
	ForesightFlexAPI struct {
		Data []map[string]flexString `json:"DATA"`
	} `json:"ForesightFlexAPI"`
}

// FetchError carries the fallback cause for a failed fetch
type FetchError struct {
	Cause string
	Err   error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return e.Cause
	}
	return fmt.Sprintf("%s: %v", e.Cause, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetch returns a snapshot for the fleet. Failures never propagate: they
// produce the fallback sentinel snapshot carrying the cause.
func (c *Client) Fetch(ctx context.Context, fleet models.Fleet) models.Snapshot {
	units, err := c.FetchUnits(ctx, fleet)
	if err != nil {
		cause := models.CauseNetwork
		var fe *FetchError
		if errors.As(err, &fe) {
			cause = fe.Cause
		}
		log.Printf("❌ [%s] Foresight fetch failed: %v", fleet.ID, err)
		return models.NewFallbackSnapshot(fleet.ID, cause, time.Now())
	}
	return models.Snapshot{
		FleetID:   fleet.ID,
		Units:     units,
		FetchedAt: time.Now(),
	}
}

// FetchUnits makes the API call and maps the records to samples
func (c *Client) FetchUnits(ctx context.Context, fleet models.Fleet) ([]models.UnitSample, error) {
	body, err := json.Marshal(searchRequest{
		UserID:         c.userID,
		RequestType:    0,
		IsDeleted:      0,
		PageIndex:      1,
		OrderBy:        "name",
		OrderDirection: "ASC",
		ConnCode:       c.connCode,
		Elements:       1,
		IDs:            strings.Join(fleet.UnitIDs, ","),
		Method:         "usersearchplatform",
		PageSize:       len(fleet.UnitIDs) + 5,
		Prefix:         true,
	})
	if err != nil {
		return nil, &FetchError{Cause: models.CauseInvalidResponse, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, &FetchError{Cause: models.CauseNetwork, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authHeader != "" {
		req.Header.Set("Authorization", c.authHeader)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Cause: models.CauseNetwork, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, &FetchError{Cause: models.CauseAuthentication}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &FetchError{Cause: fmt.Sprintf("HTTP Error: %d", resp.StatusCode)}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Cause: models.CauseNetwork, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	var parsed searchResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &FetchError{Cause: models.CauseInvalidResponse, Err: err}
	}

	records := parsed.ForesightFlexAPI.Data
	if len(records) == 0 {
		return nil, &FetchError{Cause: models.CauseEmptyUnitList}
	}

	units := make([]models.UnitSample, 0, len(records))
	for _, rec := range records {
		units = append(units, c.toSample(rec))
	}
	return units, nil
}

func (c *Client) toSample(rec map[string]flexString) models.UnitSample {
	name := rec["name"].String()
	if name == "" {
		name = "N/A"
	}
	id := rec["unitid"].String()
	if id == "" {
		id = name
	}
	location := rec["location"].String()
	if location == "" {
		location = "Dirección no disponible"
	}

	var reportTime string
	for _, field := range c.reportTimeFields {
		if v := rec[field].String(); v != "" {
			reportTime = v
			break
		}
	}

	speed := rec["speed_dunit"].Float()
	if speed < 0 {
		speed = 0
	}

	return models.UnitSample{
		UnitName:       name,
		UnitID:         id,
		IgnitionOn:     strings.EqualFold(rec["ignition"].String(), "true"),
		SpeedKph:       speed,
		Latitude:       rec["ylat"].Float(),
		Longitude:      rec["xlong"].Float(),
		LastReportTime: reportTime,
		LocationText:   location,
	}
}

// flexString accepts JSON strings, numbers, booleans and null
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*f = ""
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(trimmed)
	return nil
}

func (f flexString) String() string {
	return strings.TrimSpace(string(f))
}

// Float parses the value, returning 0 when it is not a finite number
func (f flexString) Float() float64 {
	v, err := strconv.ParseFloat(f.String(), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
