package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bf2/archbot/internal/bot"
	"github.com/bf2/archbot/internal/forge"
	"github.com/bf2/archbot/internal/labels"
	"github.com/bf2/archbot/internal/transition"
)

func TestPrintOutcome(t *testing.T) {
	testEnv(t)

	printOutcome(7, &bot.Outcome{
		Mutations:   []forge.Mutation{forge.EditLabels{Number: 7, Add: []string{labels.TypeADR}}},
		Annotations: []transition.Annotation{{Path: "_adr/1/index.adoc", Position: 4, Body: transition.MessageSuspect}},
	})
	out := ui.Out.(*bytes.Buffer).String()
	assert.Contains(t, out, `#7 labels: add "type: adr"`)
	assert.Contains(t, out, "_adr/1/index.adoc")
}

func TestPrintOutcome_NoChanges(t *testing.T) {
	testEnv(t)

	printOutcome(7, &bot.Outcome{})
	assert.Contains(t, ui.Out.(*bytes.Buffer).String(), "#7 needs no changes")
}
