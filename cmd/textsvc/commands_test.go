package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textservice/internal/attribute"
	"textservice/internal/config"
	"textservice/internal/store"
)

func TestParseColor(t *testing.T) {
	c, err := parseColor("#FF8000")
	require.NoError(t, err)
	assert.Equal(t, attribute.RGB(0xFF, 0x80, 0x00), c)
	assert.Equal(t, "#FF8000", formatColor(c))

	c, err = parseColor("none")
	require.NoError(t, err)
	assert.Equal(t, attribute.ColorNone, c.Type)
	assert.Equal(t, "-", formatColor(c))

	for _, bad := range []string{"fff", "GGGGGG", "#1234567"} {
		_, err := parseColor(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseLine(t *testing.T) {
	ls, err := parseLine("Squiggle")
	require.NoError(t, err)
	assert.Equal(t, attribute.LineSquiggle, ls)
	assert.Equal(t, "squiggle", formatLine(ls, false))
	assert.Equal(t, "solid+bold", formatLine(attribute.LineSolid, true))
	assert.Equal(t, "none", formatLine(attribute.LineNone, true))

	_, err = parseLine("wavy")
	assert.Error(t, err)
}

func TestFormatAttr(t *testing.T) {
	assert.Equal(t, "input", formatAttr(attribute.AttrInput))
	assert.Equal(t, "converted", formatAttr(attribute.AttrConverted))
	assert.Equal(t, "other", formatAttr(attribute.AttrOther))
}

func TestValidationHints(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Styles.Backend = "mongo"
	cfg.Keys.ToggleModifiers = []string{"hyper"}

	err := cfg.Validate()
	var verrs config.ValidationErrors
	require.True(t, errors.As(err, &verrs))

	hints := validationHints(verrs)
	require.Len(t, hints, 2)
	assert.Contains(t, hints[0], "styles:")
	assert.Contains(t, hints[1], "keys:")

	assert.Empty(t, validationHints(nil))
}

func TestPrintMigrationStatus(t *testing.T) {
	var buf bytes.Buffer
	printMigrationStatus(&buf, "/tmp/styles.db", &store.MigrationStatus{
		CurrentVersion: 1,
		LatestVersion:  2,
		Pending:        []store.Migration{{Version: 2, Description: "Index style_overrides by update time"}},
	})
	assert.Equal(t, "Database: /tmp/styles.db\n"+
		"Schema version: 1 of 2\n"+
		"  pending 2: Index style_overrides by update time\n", buf.String())
}
