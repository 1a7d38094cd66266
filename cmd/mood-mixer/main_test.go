package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/justestif/go-jellyfin-mood-mixer/internal/db"
	"github.com/justestif/go-jellyfin-mood-mixer/internal/mixes"
	"github.com/justestif/go-jellyfin-mood-mixer/internal/ranking"
)

func TestMoodsCommand(t *testing.T) {
	var buf bytes.Buffer
	root := &cli.Command{
		Name:     "mood-mixer",
		Writer:   &buf,
		Commands: []*cli.Command{moodsCommand()},
	}

	require.NoError(t, root.Run(context.Background(), []string{"mood-mixer", "moods"}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, len(ranking.Moods()))
	assert.True(t, strings.HasPrefix(lines[0], string(ranking.Moods()[0])))
	assert.Contains(t, buf.String(), "Jazz")
}

func TestRun_MissingConfigFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.yaml")

	err := run(context.Background(), []string{"mood-mixer", "--config", missing, "status"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading config file")
}

func TestPrintMix(t *testing.T) {
	ticks := int64(3 * ranking.TicksPerMinute)
	d := &mixes.Detail{
		Mix: db.Mix{
			ID:           uuid.MustParse("8f0c3f52-4d0e-4c43-9d5f-8f4f7f7b2a10"),
			Name:         "Chill mix",
			ItemCount:    2,
			TotalMinutes: 6,
		},
		Items: []db.MixItem{
			{Position: 0, Name: "Blue in Green", Artist: "Miles Davis", RuntimeTicks: &ticks, Score: 1},
			{Position: 1, Name: "Heat", RuntimeTicks: &ticks, Score: 0.5},
		},
	}

	var buf bytes.Buffer
	printMix(&buf, d)
	out := buf.String()

	assert.Contains(t, out, "Chill mix (8f0c3f52-4d0e-4c43-9d5f-8f4f7f7b2a10)")
	assert.Contains(t, out, "2 items, "+ranking.FormatDuration(6))
	assert.Contains(t, out, "  1. Miles Davis - Blue in Green")
	assert.Contains(t, out, "  2. Heat")
	assert.Contains(t, out, "0.500")
}

func TestPrintMix_Empty(t *testing.T) {
	var buf bytes.Buffer
	printMix(&buf, &mixes.Detail{Mix: db.Mix{Name: "Dark mix"}})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2)
}
