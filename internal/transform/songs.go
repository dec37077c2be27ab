package transform

import (
	"sort"

	"sparkify_etl/internal/schema"
)

// Songs projects the songs dimension. Duplicate song_ids keep the last
// record in input order. Rows come back sorted by song_id.
func Songs(records []schema.SongRecord) []schema.SongRow {
	byID := make(map[string]schema.SongRow, len(records))
	for _, r := range records {
		byID[r.SongID] = schema.SongRow{
			SongID:   r.SongID,
			Title:    r.Title,
			ArtistID: r.ArtistID,
			Year:     int32(r.Year),
			Duration: float32(r.Duration),
		}
	}

	out := make([]schema.SongRow, 0, len(byID))
	for _, row := range byID {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SongID < out[j].SongID })
	return out
}

// Artists projects the artists dimension. Duplicate artist_ids keep the
// last record in input order. Rows come back sorted by artist_id.
func Artists(records []schema.SongRecord) []schema.ArtistRow {
	byID := make(map[string]schema.ArtistRow, len(records))
	for _, r := range records {
		byID[r.ArtistID] = schema.ArtistRow{
			ArtistID:  r.ArtistID,
			Name:      r.ArtistName,
			Location:  r.ArtistLocation,
			Latitude:  toFloat32(r.ArtistLatitude),
			Longitude: toFloat32(r.ArtistLongitude),
		}
	}

	out := make([]schema.ArtistRow, 0, len(byID))
	for _, row := range byID {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ArtistID < out[j].ArtistID })
	return out
}

func toFloat32(v *float64) *float32 {
	if v == nil {
		return nil
	}
	f := float32(*v)
	return &f
}
