package weather

import (
	"encoding/json"
	"fmt"
)

// Position is a GeoJSON position: longitude first, then latitude
type Position [2]float64

// Lon returns the position's longitude
func (p Position) Lon() float64 { return p[0] }

// Lat returns the position's latitude
func (p Position) Lat() float64 { return p[1] }

// BoundingBox is an inclusive latitude/longitude region
type BoundingBox struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLon float64 `json:"max_lon"`
}

// Contains reports whether (lat, lon) lies inside the box, edges included
func (b BoundingBox) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// Valid reports whether the box is non-inverted
func (b BoundingBox) Valid() bool {
	return b.MinLat <= b.MaxLat && b.MinLon <= b.MaxLon
}

// HazardProperties are the SIGMET attributes carried through unchanged
type HazardProperties struct {
	ID         flexString `json:"id"`
	IssueTime  flexString `json:"issueTime"`
	FIR        flexString `json:"fir"`
	ATSU       flexString `json:"atsu"`
	Sequence   flexString `json:"sequence"`
	Phenomenon flexString `json:"phenomenon"`
	Start      flexString `json:"start"`
	End        flexString `json:"end"`
}

// HazardFeature is one SIGMET GeoJSON feature
type HazardFeature struct {
	Type       string           `json:"type"`
	Geometry   json.RawMessage  `json:"geometry"`
	Properties HazardProperties `json:"properties"`

	// Rings is the geometry normalized to rings of positions
	Rings [][]Position `json:"-"`
}

type geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// ParseHazards decodes a GeoJSON FeatureCollection of SIGMETs. Polygon,
// MultiPolygon, LineString and Point geometries are normalized to rings;
// other or missing geometries yield no rings.
func ParseHazards(raw []byte) ([]HazardFeature, error) {
	var collection struct {
		Features []HazardFeature `json:"features"`
	}
	if err := json.Unmarshal(raw, &collection); err != nil {
		return nil, fmt.Errorf("%w: sigmet feed: %v", ErrMalformedUpstreamData, err)
	}

	for i := range collection.Features {
		f := &collection.Features[i]
		rings, err := normalizeGeometry(f.Geometry)
		if err != nil {
			return nil, fmt.Errorf("%w: sigmet feature %d: %v", ErrMalformedUpstreamData, i, err)
		}
		f.Rings = rings
	}

	if collection.Features == nil {
		return []HazardFeature{}, nil
	}
	return collection.Features, nil
}

func normalizeGeometry(raw json.RawMessage) ([][]Position, error) {
	if isNull(raw) {
		return nil, nil
	}

	var g geometry
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, err
	}
	if isNull(g.Coordinates) {
		return nil, nil
	}

	switch g.Type {
	case "Point":
		var p []float64
		if err := json.Unmarshal(g.Coordinates, &p); err != nil {
			return nil, err
		}
		return [][]Position{toPositions([][]float64{p})}, nil

	case "LineString":
		var line [][]float64
		if err := json.Unmarshal(g.Coordinates, &line); err != nil {
			return nil, err
		}
		return [][]Position{toPositions(line)}, nil

	case "Polygon":
		var poly [][][]float64
		if err := json.Unmarshal(g.Coordinates, &poly); err != nil {
			return nil, err
		}
		rings := make([][]Position, 0, len(poly))
		for _, ring := range poly {
			rings = append(rings, toPositions(ring))
		}
		return rings, nil

	case "MultiPolygon":
		var multi [][][][]float64
		if err := json.Unmarshal(g.Coordinates, &multi); err != nil {
			return nil, err
		}
		var rings [][]Position
		for _, poly := range multi {
			for _, ring := range poly {
				rings = append(rings, toPositions(ring))
			}
		}
		return rings, nil
	}

	return nil, nil
}

// toPositions drops entries with fewer than two ordinates
func toPositions(coords [][]float64) []Position {
	out := make([]Position, 0, len(coords))
	for _, c := range coords {
		if len(c) < 2 {
			continue
		}
		out = append(out, Position{c[0], c[1]})
	}
	return out
}

// IsWithinRegion reports whether any vertex of any ring lies inside bbox.
// A polygon that spans the box with no vertex inside it is not matched.
func IsWithinRegion(f HazardFeature, bbox BoundingBox) bool {
	for _, ring := range f.Rings {
		for _, p := range ring {
			if bbox.Contains(p.Lat(), p.Lon()) {
				return true
			}
		}
	}
	return false
}

// FilterHazards returns the features within bbox in input order; never nil
func FilterHazards(features []HazardFeature, bbox BoundingBox) []HazardFeature {
	out := make([]HazardFeature, 0, len(features))
	for _, f := range features {
		if IsWithinRegion(f, bbox) {
			out = append(out, f)
		}
	}
	return out
}
