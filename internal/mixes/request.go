package mixes

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/justestif/go-jellyfin-mood-mixer/internal/db"
	"github.com/justestif/go-jellyfin-mood-mixer/internal/ranking"
)

// Mood modes accepted in a GenerateRequest.
const (
	ModeFilter = "filter"
	ModeBoost  = "boost"
)

// GenerateRequest describes a mix to build from a synced catalog.
type GenerateRequest struct {
	Name          string   `json:"name" validate:"max=200"`
	Source        string   `json:"source" validate:"omitempty,oneof=jellyfin spotify"`
	Mood          string   `json:"mood" validate:"omitempty,mood"`
	MoodMode      string   `json:"mood_mode" validate:"omitempty,oneof=filter boost"`
	SeedID        string   `json:"seed_id" validate:"max=128"`
	IncludeSeed   bool     `json:"include_seed"`
	TargetMinutes float64  `json:"target_minutes" validate:"gte=0,lte=1440"`
	Limit         int      `json:"limit" validate:"gte=0,lte=500"`
	Types         []string `json:"types" validate:"omitempty,dive,oneof=movie episode track"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("mood", func(fl validator.FieldLevel) bool {
		_, ok := ranking.ParseMood(fl.Field().String())
		return ok
	})
	return v
}

// validate checks field constraints and requires a mood or a seed.
func (r GenerateRequest) validate(v *validator.Validate) error {
	if err := v.Struct(r); err != nil {
		return validationError(err)
	}
	if strings.TrimSpace(r.Mood) == "" && strings.TrimSpace(r.SeedID) == "" {
		return fmt.Errorf("%w: a mood or a seed_id is required", ErrInvalidRequest)
	}
	return nil
}

// normalize fills defaults after validation.
func (r *GenerateRequest) normalize() {
	if r.Source == "" {
		r.Source = db.SourceJellyfin
	}
	if r.MoodMode == "" {
		r.MoodMode = ModeFilter
	}
	if m, ok := ranking.ParseMood(r.Mood); ok {
		r.Mood = string(m)
	}
	r.SeedID = strings.TrimSpace(r.SeedID)
}

func (r GenerateRequest) moodMode() ranking.MoodMode {
	if r.MoodMode == ModeBoost {
		return ranking.MoodBoost
	}
	return ranking.MoodFilter
}

// validationError turns validator output into a single ErrInvalidRequest.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "mood":
			msgs = append(msgs, fmt.Sprintf("%s: unknown mood %q", fe.Field(), fe.Value()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s: must be one of [%s]", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(msgs, "; "))
}
