package forge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bf2/archbot/internal/labels"
)

func TestLabelDiff(t *testing.T) {
	before := labels.NewSet(labels.TypeInfra, labels.StateNeedsReviewers, "keep")
	after := labels.NewSet("keep", labels.TypeADR, labels.StateBeingReviewed)

	m, ok := LabelDiff(4, before, after)
	require.True(t, ok)
	assert.Equal(t, 4, m.Target())
	assert.Equal(t, []string{labels.TypeADR, labels.StateBeingReviewed}, m.Add)
	assert.Equal(t, []string{labels.TypeInfra, labels.StateNeedsReviewers}, m.Remove)

	_, ok = LabelDiff(4, after, after.Clone())
	assert.False(t, ok)
}

func TestLabelsAfter(t *testing.T) {
	pr := PullRequest{Number: 3, Labels: []string{labels.TypeInfra}}
	got := pr.LabelsAfter([]Mutation{
		EditLabels{Number: 3, Add: []string{labels.TypeAP}, Remove: []string{labels.TypeInfra}},
		EditLabels{Number: 9, Add: []string{"other"}},
		PostComment{Number: 3, Body: "hi"},
	})
	assert.Equal(t, []string{labels.TypeAP}, got)
	assert.True(t, pr.HasLabel(labels.TypeInfra))
}

func TestMutationStrings(t *testing.T) {
	assert.Equal(t, `#1 labels: add "a" "b", remove "c"`,
		EditLabels{Number: 1, Add: []string{"a", "b"}, Remove: []string{"c"}}.String())
	assert.Equal(t, `#2 comment: "first ..."`, PostComment{Number: 2, Body: "first\nsecond"}.String())
	assert.Equal(t, `#5 review comment on _adr/1/index.adoc:4: "Suspect state transition"`,
		ReviewComment{Number: 5, Path: "_adr/1/index.adoc", Position: 4, Body: "Suspect state transition"}.String())
}
