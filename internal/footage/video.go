// Package footage finds and downloads source videos with yt-dlp.
package footage

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrTooLong marks a video rejected for exceeding the duration limit
var ErrTooLong = errors.New("video too long")

// Video is one search hit
type Video struct {
	Title       string  `json:"title"`
	ID          string  `json:"video_id"`
	Description string  `json:"description"`
	Duration    float64 `json:"duration"`
	ViewCount   int64   `json:"view_count"`
	URL         string  `json:"url"`
	Thumbnail   string  `json:"thumbnail"`
	Channel     string  `json:"channel"`
	UploadDate  string  `json:"upload_date"`
}

// Length returns the duration as a time.Duration
func (v Video) Length() time.Duration {
	return time.Duration(v.Duration * float64(time.Second))
}

// WatchURL builds the canonical watch URL for a video id
func WatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}

type playlist struct {
	Entries []struct {
		ID          string   `json:"id"`
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Duration    *float64 `json:"duration"`
		ViewCount   *int64   `json:"view_count"`
		Channel     string   `json:"channel"`
		UploadDate  string   `json:"upload_date"`
		Thumbnails  []struct {
			URL string `json:"url"`
		} `json:"thumbnails"`
		Thumbnail string `json:"thumbnail"`
	} `json:"entries"`
}

// parseSearch maps a --flat-playlist -J dump to videos
func parseSearch(data []byte) ([]Video, error) {
	var pl playlist
	if err := json.Unmarshal(data, &pl); err != nil {
		return nil, fmt.Errorf("failed to parse yt-dlp output: %w", err)
	}

	videos := make([]Video, 0, len(pl.Entries))
	for _, e := range pl.Entries {
		if e.ID == "" {
			continue
		}
		v := Video{
			Title:       orDefault(e.Title, "No title"),
			ID:          e.ID,
			Description: orDefault(e.Description, "No desc"),
			URL:         WatchURL(e.ID),
			Thumbnail:   e.Thumbnail,
			Channel:     orDefault(e.Channel, "Unknown channel"),
			UploadDate:  orDefault(e.UploadDate, "No date"),
		}
		if e.Duration != nil {
			v.Duration = *e.Duration
		}
		if e.ViewCount != nil {
			v.ViewCount = *e.ViewCount
		}
		if v.Thumbnail == "" && len(e.Thumbnails) > 0 {
			v.Thumbnail = e.Thumbnails[len(e.Thumbnails)-1].URL
		}
		videos = append(videos, v)
	}
	return videos, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// Unique merges result lists in order, dropping repeated URLs
func Unique(lists ...[]Video) []Video {
	seen := make(map[string]bool)
	var out []Video
	for _, list := range lists {
		for _, v := range list {
			if seen[v.URL] {
				continue
			}
			seen[v.URL] = true
			out = append(out, v)
		}
	}
	return out
}
