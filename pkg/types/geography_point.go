package types

import (
	"database/sql/driver"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// SRIDWGS84 is the spatial reference every stored point is tagged with.
const SRIDWGS84 = 4326

const (
	wkbPointType = 1
	ewkbSRIDFlag = 0x20000000
)

// GeographyPoint is a WGS84 point. Lng maps to the X axis and Lat to the Y axis
// in every encoding handled here.
type GeographyPoint struct {
	Lat float64 `json:"latitude"`
	Lng float64 `json:"longitude"`
}

// NewGeographyPoint validates the coordinate ranges.
func NewGeographyPoint(lat, lng float64) (GeographyPoint, error) {
	p := GeographyPoint{Lat: lat, Lng: lng}
	if err := p.Validate(); err != nil {
		return GeographyPoint{}, err
	}
	return p, nil
}

func (g GeographyPoint) Validate() error {
	if math.IsNaN(g.Lat) || g.Lat < -90 || g.Lat > 90 {
		return fmt.Errorf("geography: latitude %v out of range", g.Lat)
	}
	if math.IsNaN(g.Lng) || g.Lng < -180 || g.Lng > 180 {
		return fmt.Errorf("geography: longitude %v out of range", g.Lng)
	}
	return nil
}

// EWKT renders the point as SRID=4326;POINT(lng lat).
func (g GeographyPoint) EWKT() string {
	return fmt.Sprintf("SRID=%d;POINT(%s %s)", SRIDWGS84, formatCoord(g.Lng), formatCoord(g.Lat))
}

// Value produces an EWKT literal so Postgres can cast the geography.
func (g GeographyPoint) Value() (driver.Value, error) {
	return g.EWKT(), nil
}

// Scan accepts WKT/EWKT text, raw WKB/EWKB bytes, or hex encoded EWKB as
// returned by PostGIS for geography columns.
func (g *GeographyPoint) Scan(value interface{}) error {
	if value == nil {
		*g = GeographyPoint{}
		return nil
	}

	switch v := value.(type) {
	case string:
		return g.fromString(v)
	case []byte:
		text := strings.TrimSpace(string(v))
		if looksLikeText(text) || isHex(text) {
			return g.fromString(text)
		}
		return g.fromWKB(v)
	default:
		if stringer, ok := value.(fmt.Stringer); ok {
			return g.fromString(stringer.String())
		}
		return fmt.Errorf("geography: unsupported scan type %T", value)
	}
}

func (g *GeographyPoint) fromString(raw string) error {
	raw = strings.TrimSpace(raw)
	if looksLikeText(raw) {
		return g.fromText(raw)
	}
	if isHex(raw) {
		decoded, err := hex.DecodeString(raw)
		if err != nil {
			return fmt.Errorf("geography: decode hex: %w", err)
		}
		return g.fromWKB(decoded)
	}
	return fmt.Errorf("geography: unsupported text %q", raw)
}

func (g *GeographyPoint) fromText(raw string) error {
	if strings.HasPrefix(strings.ToUpper(raw), "SRID=") {
		if idx := strings.Index(raw, ";"); idx != -1 {
			raw = raw[idx+1:]
		}
	}

	raw = strings.TrimSpace(raw)
	upper := strings.ToUpper(raw)
	if !strings.HasPrefix(upper, "POINT") || !strings.HasSuffix(raw, ")") {
		return fmt.Errorf("geography: unsupported text %q", raw)
	}
	open := strings.Index(raw, "(")
	if open == -1 {
		return fmt.Errorf("geography: unsupported text %q", raw)
	}

	content := strings.TrimSpace(raw[open+1 : len(raw)-1])
	segments := strings.Fields(content)
	if len(segments) != 2 {
		return fmt.Errorf("geography: unexpected POINT content %q", content)
	}

	lng, err := parseCoord(segments[0])
	if err != nil {
		return err
	}
	lat, err := parseCoord(segments[1])
	if err != nil {
		return err
	}

	g.Lng = lng
	g.Lat = lat
	return nil
}

func (g *GeographyPoint) fromWKB(raw []byte) error {
	if len(raw) < 21 {
		return fmt.Errorf("geography: wkb too short")
	}

	var order binary.ByteOrder
	switch raw[0] {
	case 0:
		order = binary.BigEndian
	case 1:
		order = binary.LittleEndian
	default:
		return fmt.Errorf("geography: invalid byte order %d", raw[0])
	}

	geomType := order.Uint32(raw[1:5])
	offset := 5
	if geomType&ewkbSRIDFlag != 0 {
		offset += 4
		geomType &^= ewkbSRIDFlag
	}
	if geomType != wkbPointType {
		return fmt.Errorf("geography: unexpected geometry type %d", geomType)
	}
	if len(raw) < offset+16 {
		return fmt.Errorf("geography: wkb too short")
	}

	g.Lng = math.Float64frombits(order.Uint64(raw[offset : offset+8]))
	g.Lat = math.Float64frombits(order.Uint64(raw[offset+8 : offset+16]))
	return nil
}

func looksLikeText(raw string) bool {
	upper := strings.ToUpper(raw)
	return strings.HasPrefix(upper, "SRID=") || strings.HasPrefix(upper, "POINT")
}

func isHex(raw string) bool {
	if len(raw) < 42 || len(raw)%2 != 0 {
		return false
	}
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseCoord(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("geography: empty coordinate")
	}

	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("geography: parse coordinate %w", err)
	}
	return f, nil
}
