// Package geojson renders flight plans and restricted areas as GeoJSON.
package geojson

import (
	"github.com/paulmach/orb"
	orbjson "github.com/paulmach/orb/geojson"

	"dronenav/internal/geo"
	"dronenav/internal/model"
)

// FlightPathName is the name property of every flight feature.
const FlightPathName = "Drone Flight Path"

// FromFlightResponse returns one LineString feature per drone flight, made of
// all its delivery waypoints in order. No flights yield an empty collection.
func FromFlightResponse(resp model.FlightResponse) *orbjson.FeatureCollection {
	fc := orbjson.NewFeatureCollection()
	for _, dp := range resp.DronePaths {
		var line orb.LineString
		for _, d := range dp.Deliveries {
			for _, p := range d.FlightPath {
				line = append(line, point(p))
			}
		}
		f := orbjson.NewFeature(line)
		f.Properties["name"] = FlightPathName
		fc.Append(f)
	}
	return fc
}

// FromAreas returns one Polygon feature per restricted area.
func FromAreas(areas []geo.RestrictedArea) *orbjson.FeatureCollection {
	fc := orbjson.NewFeatureCollection()
	for _, a := range areas {
		ring := make(orb.Ring, len(a.Vertices))
		for i, v := range a.Vertices {
			ring[i] = point(v)
		}
		f := orbjson.NewFeature(orb.Polygon{ring})
		f.ID = a.ID
		f.Properties["name"] = a.Name
		fc.Append(f)
	}
	return fc
}

// Merge appends the features of others to fc.
func Merge(fc *orbjson.FeatureCollection, others ...*orbjson.FeatureCollection) *orbjson.FeatureCollection {
	for _, o := range others {
		fc.Features = append(fc.Features, o.Features...)
	}
	return fc
}

func point(p geo.Position) orb.Point { return orb.Point{p.Lng, p.Lat} }
