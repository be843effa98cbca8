package track

import (
	"context"
	"encoding/xml"
	"errors"
	"time"

	"github.com/Kartikhehe/terr-aqua-survey-platform-backend/internal/apperr"

	"github.com/jackc/pgx/v5"
)

const gpxCreator = "terr-aqua-survey-platform"

type gpxDoc struct {
	XMLName xml.Name `xml:"gpx"`
	Version string   `xml:"version,attr"`
	Creator string   `xml:"creator,attr"`
	Xmlns   string   `xml:"xmlns,attr"`
	Trk     gpxTrk   `xml:"trk"`
}

type gpxTrk struct {
	Name    string `xml:"name"`
	Segment gpxSeg `xml:"trkseg"`
}

type gpxSeg struct {
	Points []gpxPoint `xml:"trkpt"`
}

// gpxPoint field order follows the GPX 1.1 trkpt schema: ele, time, hdop.
type gpxPoint struct {
	Lat  float64  `xml:"lat,attr"`
	Lon  float64  `xml:"lon,attr"`
	Ele  *float64 `xml:"ele,omitempty"`
	Time string   `xml:"time,omitempty"`
	HDOP *float64 `xml:"hdop,omitempty"`
}

// ExportGPX renders every point of the project as one GPX 1.1 track with
// a single segment, ordered by recorded_at. Free-text fields are escaped
// by the XML encoder.
func (s *Service) ExportGPX(ctx context.Context, userID, projectID string) ([]byte, error) {
	name, err := s.projectNameForOwner(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT lat, lng, accuracy_m, elevation_m, recorded_at
		FROM track_points
		WHERE project_id=$1 AND user_id=$2
		ORDER BY recorded_at
	`, projectID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	doc := gpxDoc{
		Version: "1.1",
		Creator: gpxCreator,
		Xmlns:   "http://www.topografix.com/GPX/1/1",
		Trk:     gpxTrk{Name: name},
	}
	for rows.Next() {
		var (
			lat, lng   float64
			accuracy   *float64
			elevation  *float64
			recordedAt time.Time
		)
		if err := rows.Scan(&lat, &lng, &accuracy, &elevation, &recordedAt); err != nil {
			return nil, err
		}
		doc.Trk.Segment.Points = append(doc.Trk.Segment.Points, gpxPoint{
			Lat:  lat,
			Lon:  lng,
			Ele:  elevation,
			Time: recordedAt.UTC().Format(time.RFC3339),
			HDOP: accuracy,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), body...), nil
}

func (s *Service) projectNameForOwner(ctx context.Context, userID, projectID string) (string, error) {
	var name, ownerID string
	err := s.db.QueryRow(ctx, `
		SELECT name, user_id FROM projects WHERE id=$1
	`, projectID).Scan(&name, &ownerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperr.New(apperr.KindNotFound, "project not found")
		}
		return "", err
	}
	if ownerID != userID {
		return "", apperr.New(apperr.KindAuthorization, "project belongs to another user")
	}
	return name, nil
}
