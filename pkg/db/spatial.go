package db

import (
	"fmt"

	"gorm.io/gorm"
)

// BBox is a viewport in degrees. West/East bound longitude (X), South/North
// bound latitude (Y).
type BBox struct {
	West  float64
	South float64
	East  float64
	North float64
}

// CrossesAntimeridian reports whether the box wraps past 180 degrees.
func (b BBox) CrossesAntimeridian() bool {
	return b.West > b.East
}

// Normalized orders the latitude bounds. Longitude is left untouched because
// West > East is a legitimate antimeridian crossing.
func (b BBox) Normalized() BBox {
	if b.South > b.North {
		b.South, b.North = b.North, b.South
	}
	return b
}

// BBoxPredicate returns a WHERE fragment selecting rows whose point column
// falls inside box, together with its bind arguments. On postgres the
// fragment is served by the GIST index on column::geometry.
func BBoxPredicate(conn *gorm.DB, column string, box BBox) (string, []any) {
	box = box.Normalized()
	if conn.Dialector.Name() == "sqlite" {
		return sqliteBBox(column, box)
	}
	return postgresBBox(column, box)
}

func postgresBBox(column string, box BBox) (string, []any) {
	envelope := fmt.Sprintf("%s::geometry && ST_MakeEnvelope(?, ?, ?, ?, 4326)", column)
	if !box.CrossesAntimeridian() {
		return envelope, []any{box.West, box.South, box.East, box.North}
	}
	return "(" + envelope + " OR " + envelope + ")", []any{
		box.West, box.South, 180.0, box.North,
		-180.0, box.South, box.East, box.North,
	}
}

func sqliteBBox(column string, box BBox) (string, []any) {
	lat := fmt.Sprintf("geo_y(%s) BETWEEN ? AND ?", column)
	if !box.CrossesAntimeridian() {
		return fmt.Sprintf("(geo_x(%s) BETWEEN ? AND ? AND %s)", column, lat),
			[]any{box.West, box.East, box.South, box.North}
	}
	return fmt.Sprintf("((geo_x(%s) >= ? OR geo_x(%s) <= ?) AND %s)", column, column, lat),
		[]any{box.West, box.East, box.South, box.North}
}
