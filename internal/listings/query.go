package listings

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/angelmondragon/geodirectory-backend/pkg/db"
)

const (
	// MapResultLimit caps every public map query.
	MapResultLimit = 50

	minSearchRunes = 3
)

// ViewportQuery is the normalized input of the public map query. A nil BBox
// and an empty Search both mean "no filter".
type ViewportQuery struct {
	BBox   *db.BBox
	Search string
}

// NewViewportQuery normalizes raw inputs. Search terms shorter than three
// characters are dropped.
func NewViewportQuery(box *db.BBox, search string) ViewportQuery {
	term := strings.TrimSpace(search)
	if utf8.RuneCountInString(term) < minSearchRunes {
		term = ""
	}
	if box != nil {
		normalized := box.Normalized()
		box = &normalized
	}
	return ViewportQuery{BBox: box, Search: term}
}

// ParseBBoxCSV parses "west,south,east,north". Anything other than four
// finite numbers yields nil.
func ParseBBoxCSV(raw string) *db.BBox {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return nil
	}
	return ParseBBoxBounds(parts[0], parts[1], parts[2], parts[3])
}

// ParseBBoxBounds builds a box from four separately supplied bounds.
func ParseBBoxBounds(west, south, east, north string) *db.BBox {
	values := make([]float64, 0, 4)
	for _, raw := range []string{west, south, east, north} {
		v, ok := parseBound(raw)
		if !ok {
			return nil
		}
		values = append(values, v)
	}
	return &db.BBox{West: values[0], South: values[1], East: values[2], North: values[3]}
}

func parseBound(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Fingerprint identifies the query for the viewport cache. Two queries that
// select the same rows share a fingerprint.
func (q ViewportQuery) Fingerprint() string {
	var b strings.Builder
	b.WriteString("bbox=")
	if q.BBox != nil {
		for i, v := range []float64{q.BBox.West, q.BBox.South, q.BBox.East, q.BBox.North} {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
		}
	}
	b.WriteString(";q=")
	b.WriteString(strings.ToLower(q.Search))
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds a case-folded LIKE pattern matching term anywhere.
func containsPattern(term string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(term)) + "%"
}
