package memory

import (
	"testing"

	"eino_voice_shop/pkg"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeToken(t *testing.T) {
	mem := Merge("my token: AbC.123_x and customer token: Zz-9", "", pkg.Memory{})
	assert.Equal(t, "Zz-9", mem.CustomerToken)

	kept := Merge("nothing new here", "", mem)
	assert.Equal(t, "Zz-9", kept.CustomerToken)
}

func TestMergeLocationNeedsBothCoordinates(t *testing.T) {
	mem := Merge("I am at lat: 28.61 long: 77.38", "", pkg.Memory{})
	require.NotNil(t, mem.Location)
	assert.InDelta(t, 28.61, mem.Location.Lat, 1e-9)
	assert.InDelta(t, 77.38, mem.Location.Long, 1e-9)

	partial := Merge("latitude: 10.5 only", "", pkg.Memory{})
	assert.Nil(t, partial.Location)

	// a lone latitude leaves the previous location in place
	kept := Merge("lat: 1.0", "", mem)
	assert.Equal(t, mem.Location, kept.Location)
}

func TestMergeShoppingList(t *testing.T) {
	mem := Merge("I need milk, brown bread and eggs. Thanks!", "", pkg.Memory{})
	assert.Equal(t, []string{"milk", "brown bread", "eggs"}, mem.Lists.Shopping)
}

func TestMergeDropsShortAndStopWords(t *testing.T) {
	mem := Merge("add ox, the, tea", "", pkg.Memory{})
	assert.Equal(t, []string{"tea"}, mem.Lists.Shopping)
}

func TestMergeIsIdempotent(t *testing.T) {
	utterances := []string{
		"remember to buy apples and pears",
		"i love dark chocolate. my favorite snack is popcorn",
		"don't forget olive oil, rice",
	}

	for _, u := range utterances {
		once := Merge(u, "ok", pkg.Memory{})
		twice := Merge(u, "ok", once)
		assert.Equal(t, once.Lists.Shopping, twice.Lists.Shopping, u)
		assert.Equal(t, once.Preferences.Interests, twice.Preferences.Interests, u)
	}
}

func TestMergeShoppingIgnoresCaseOfExistingItems(t *testing.T) {
	start := pkg.Memory{Lists: pkg.Lists{Shopping: []string{"Milk"}}}
	mem := Merge("i need milk", "", start)
	assert.Equal(t, []string{"Milk"}, mem.Lists.Shopping)
}

func TestMergePreferences(t *testing.T) {
	mem := Merge("I enjoy spicy food! My favorite fruit is mango", "", pkg.Memory{})
	assert.Equal(t, []string{"spicy food", "fruit is mango"}, mem.Preferences.Interests)
}

func TestMergeDoesNotMutateInput(t *testing.T) {
	start := pkg.Memory{
		Lists:   pkg.Lists{Shopping: make([]string, 1, 8)},
		Context: map[string]any{"k": "v"},
	}
	start.Lists.Shopping[0] = "tea"

	out := Merge("add coffee", "", start)

	assert.Equal(t, []string{"tea"}, start.Lists.Shopping)
	assert.Equal(t, []string{"tea", "coffee"}, out.Lists.Shopping)
	out.Context["k"] = "changed"
	assert.Equal(t, "v", start.Context["k"])
}

func TestRemovalIsRecognizedButNotApplied(t *testing.T) {
	start := pkg.Memory{Lists: pkg.Lists{Shopping: []string{"milk"}}}

	ex := Extract("i no longer need milk")
	assert.Equal(t, []string{"milk"}, ex.Removals)

	out := Apply(start, ex)
	assert.Equal(t, []string{"milk"}, out.Lists.Shopping)
}
