package frequencies

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/iancoleman/orderedmap"

	"github.com/yegors/co-wx/internal/stations"
	"github.com/yegors/co-wx/internal/weather"
	"github.com/yegors/co-wx/pkg/logger"
)

const feed = "frequencies"

// AirportFrequencies maps a frequency description to its MHz value, in feed order
type AirportFrequencies struct {
	Frequencies *orderedmap.OrderedMap `json:"frequencies"`
}

// Service looks up published airport frequencies
type Service struct {
	upstream weather.Upstream
	urlTmpl  string
	token    string
	logger   *logger.Logger
}

// NewService creates a new frequency lookup service. urlTmpl carries {code} and {token} placeholders.
func NewService(upstream weather.Upstream, urlTmpl, token string, log *logger.Logger) *Service {
	return &Service{
		upstream: upstream,
		urlTmpl:  urlTmpl,
		token:    token,
		logger:   log.Named("frequencies"),
	}
}

// Airport returns the frequencies for an airport
func (s *Service) Airport(ctx context.Context, code string) (*AirportFrequencies, error) {
	code = stations.NormalizeCode(code)
	if code == "" {
		return nil, fmt.Errorf("%w: empty airport code", weather.ErrNotFound)
	}

	endpoint := strings.NewReplacer(
		"{code}", url.PathEscape(code),
		"{token}", url.QueryEscape(s.token),
	).Replace(s.urlTmpl)

	raw, err := s.upstream.FetchJSON(ctx, feed, endpoint, nil)
	if err != nil {
		return nil, err
	}

	freqs, err := Parse(raw, s.logger)
	if err != nil {
		return nil, fmt.Errorf("airport %s: %w", code, err)
	}
	return freqs, nil
}

type airportDoc struct {
	Code  string            `json:"ident"`
	Freqs []json.RawMessage `json:"freqs"`
}

type freqDoc struct {
	Description  *json.RawMessage `json:"description"`
	FrequencyMHz *json.RawMessage `json:"frequency_mhz"`
}

// Parse decodes an airport database document. Entries without a description
// or frequency are skipped; a document with no usable entries has no data.
func Parse(raw []byte, log *logger.Logger) (*AirportFrequencies, error) {
	var doc airportDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: airport document: %v", weather.ErrMalformedUpstreamData, err)
	}

	out := orderedmap.New()
	for i, entry := range doc.Freqs {
		var f freqDoc
		if err := json.Unmarshal(entry, &f); err != nil {
			log.Warn("Skipping malformed frequency entry",
				logger.String("airport", doc.Code),
				logger.Int("index", i),
				logger.Error(err))
			continue
		}

		desc := scalarString(f.Description)
		mhz := scalarString(f.FrequencyMHz)
		if desc == "" || mhz == "" {
			log.Debug("Skipping incomplete frequency entry",
				logger.String("airport", doc.Code),
				logger.Int("index", i))
			continue
		}
		out.Set(desc, mhz)
	}

	if len(out.Keys()) == 0 {
		return nil, fmt.Errorf("%w: no frequencies published", weather.ErrNoDataAvailable)
	}
	return &AirportFrequencies{Frequencies: out}, nil
}

// scalarString renders a JSON string or number; anything else is empty
func scalarString(raw *json.RawMessage) string {
	if raw == nil {
		return ""
	}

	var s string
	if err := json.Unmarshal(*raw, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var n json.Number
	if err := json.Unmarshal(*raw, &n); err == nil {
		return n.String()
	}
	return ""
}
