package web

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/justestif/go-jellyfin-mood-mixer/internal/db"
	"github.com/justestif/go-jellyfin-mood-mixer/internal/mixes"
	"github.com/justestif/go-jellyfin-mood-mixer/internal/ranking"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

type badRequestError string

func (e badRequestError) Error() string { return string(e) }

func errBadRequest(msg string) error { return badRequestError(msg) }

type exportRequest struct {
	Target string `json:"target"`
}

type syncRequest struct {
	Source string `json:"source"`
	Force  bool   `json:"force"`
}

type moodJSON struct {
	Name   string   `json:"name"`
	Title  string   `json:"title"`
	Genres []string `json:"genres"`
}

type mixJSON struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Source        string    `json:"source"`
	Mood          string    `json:"mood,omitempty"`
	MoodMode      string    `json:"mood_mode"`
	SeedID        *string   `json:"seed_id,omitempty"`
	TargetMinutes float64   `json:"target_minutes"`
	TotalMinutes  float64   `json:"total_minutes"`
	Duration      string    `json:"duration"`
	ItemCount     int       `json:"item_count"`
	ExportTarget  *string   `json:"export_target,omitempty"`
	PlaylistID    *string   `json:"playlist_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type mixItemJSON struct {
	Position    int     `json:"position"`
	ItemID      string  `json:"item_id"`
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Artist      string  `json:"artist,omitempty"`
	Minutes     float64 `json:"minutes"`
	Score       float64 `json:"score"`
	MoodMatches int     `json:"mood_matches"`
}

type mixDetailJSON struct {
	mixJSON
	Items []mixItemJSON `json:"items"`
}

type groupItemJSON struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

type groupJSON struct {
	Name      string          `json:"name"`
	Mood      string          `json:"mood,omitempty"`
	TopGenres []string        `json:"top_genres"`
	Minutes   float64         `json:"minutes"`
	Duration  string          `json:"duration"`
	Items     []groupItemJSON `json:"items"`
}

type groupsJSON struct {
	Groups   []groupJSON `json:"groups"`
	Outliers int         `json:"outliers"`
	Total    int         `json:"total"`
}

func toMoodsJSON() []moodJSON {
	moods := ranking.Moods()
	out := make([]moodJSON, len(moods))
	for i, m := range moods {
		out[i] = moodJSON{Name: m.String(), Title: m.Title(), Genres: ranking.MoodGenres(m)}
	}
	return out
}

func toMixJSON(m db.Mix) mixJSON {
	return mixJSON{
		ID:            m.ID.String(),
		Name:          m.Name,
		Source:        m.Source,
		Mood:          m.Mood,
		MoodMode:      m.MoodMode,
		SeedID:        m.SeedID,
		TargetMinutes: m.TargetMinutes,
		TotalMinutes:  m.TotalMinutes,
		Duration:      ranking.FormatDuration(m.TotalMinutes),
		ItemCount:     m.ItemCount,
		ExportTarget:  m.ExportTarget,
		PlaylistID:    m.PlaylistID,
		CreatedAt:     m.CreatedAt,
	}
}

func toDetailJSON(d mixes.Detail) mixDetailJSON {
	items := make([]mixItemJSON, len(d.Items))
	for i, it := range d.Items {
		items[i] = mixItemJSON{
			Position:    it.Position,
			ItemID:      it.ItemID,
			Name:        it.Name,
			Type:        it.Type,
			Artist:      it.Artist,
			Minutes:     it.Minutes(),
			Score:       it.Score,
			MoodMatches: it.MoodMatches,
		}
	}
	return mixDetailJSON{mixJSON: toMixJSON(d.Mix), Items: items}
}

func toGroupsJSON(res mixes.GroupsResult) groupsJSON {
	groups := make([]groupJSON, len(res.Groups))
	for i, g := range res.Groups {
		items := make([]groupItemJSON, len(g.Items))
		for j, it := range g.Items {
			items[j] = groupItemJSON{ID: it.ID, Name: it.Name, Type: it.Type}
		}
		topGenres := g.TopGenres
		if topGenres == nil {
			topGenres = []string{}
		}
		groups[i] = groupJSON{
			Name:      g.Name,
			Mood:      string(g.Mood),
			TopGenres: topGenres,
			Minutes:   g.Minutes,
			Duration:  g.Duration(),
			Items:     items,
		}
	}
	return groupsJSON{Groups: groups, Outliers: len(res.Outliers), Total: res.Total}
}

// decodeJSON reads a JSON body into v, rejecting unknown fields.
// An empty body is accepted only when allowEmpty is set.
func decodeJSON(r *http.Request, v any, allowEmpty bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			if allowEmpty {
				return nil
			}
			return errBadRequest("request body is required")
		}
		return errBadRequest("invalid JSON body: " + err.Error())
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
