package geojson

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dronenav/internal/geo"
	"dronenav/internal/model"
)

func TestFromFlightResponse(t *testing.T) {
	id := 7
	resp := model.FlightResponse{TotalCost: 12, TotalMoves: 4, DronePaths: []model.DronePath{{
		DroneID: "1",
		Deliveries: []model.Delivery{
			{DeliveryID: &id, FlightPath: []geo.Position{{Lng: 0, Lat: 0}, {Lng: 1, Lat: 0}, {Lng: 1, Lat: 0}}},
			{DeliveryID: nil, FlightPath: []geo.Position{{Lng: 1, Lat: 0}, {Lng: 0, Lat: 0}}},
		},
	}}}

	b, err := json.Marshal(FromFlightResponse(resp))
	require.NoError(t, err)

	var doc struct {
		Type     string `json:"type"`
		Features []struct {
			Type       string            `json:"type"`
			Properties map[string]string `json:"properties"`
			Geometry   struct {
				Type        string       `json:"type"`
				Coordinates [][2]float64 `json:"coordinates"`
			} `json:"geometry"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(b, &doc))
	assert.Equal(t, "FeatureCollection", doc.Type)
	require.Len(t, doc.Features, 1)
	f := doc.Features[0]
	assert.Equal(t, "Feature", f.Type)
	assert.Equal(t, FlightPathName, f.Properties["name"])
	assert.Equal(t, "LineString", f.Geometry.Type)
	assert.Equal(t, [][2]float64{{0, 0}, {1, 0}, {1, 0}, {1, 0}, {0, 0}}, f.Geometry.Coordinates)
}

func TestFromFlightResponseEmpty(t *testing.T) {
	b, err := json.Marshal(FromFlightResponse(model.FlightResponse{}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"FeatureCollection","features":[]}`, string(b))
}

func TestFromAreas(t *testing.T) {
	areas := []geo.RestrictedArea{{Name: "square", ID: 3, Vertices: []geo.Position{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}}}
	fc := Merge(FromFlightResponse(model.FlightResponse{}), FromAreas(areas))
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "Polygon", fc.Features[0].Geometry.GeoJSONType())
	assert.Equal(t, "square", fc.Features[0].Properties["name"])
}
